package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port          string `envconfig:"PORT" default:"8081"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"text"`
	HTTPRateLimit int    `envconfig:"HTTP_RATE_LIMIT" default:"60"` // mutating requests per minute and IP

	// Storage
	DataBackend  string `envconfig:"DATA_BACKEND" default:"sqlite"`
	SQLiteDBPath string `envconfig:"SQLITE_DB_PATH" default:"./data/picocompta.db"`

	// AMQP, optional. Without a URL the server syncs the ledger in-process.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"picocompta"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"ledger_sync"`

	// Receipts ledger
	LedgerBackend            string `envconfig:"LEDGER_BACKEND" default:"none"`
	GoogleSpreadsheetID      string `envconfig:"GOOGLE_SPREADSHEET_ID"`
	GoogleLedgerSheetName    string `envconfig:"GOOGLE_LEDGER_SHEET_NAME" default:"Recettes"`
	GoogleServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleOAuthClientJSON    string `envconfig:"GOOGLE_OAUTH_CLIENT_JSON"`
	GoogleOAuthClientFile    string `envconfig:"GOOGLE_OAUTH_CLIENT_FILE"`
	GoogleOAuthTokenJSON     string `envconfig:"GOOGLE_OAUTH_TOKEN_JSON"`
	GoogleOAuthTokenFile     string `envconfig:"GOOGLE_OAUTH_TOKEN_FILE" default:"./data/token.json"`
	OAuthRedirectPort        int    `envconfig:"OAUTH_REDIRECT_PORT" default:"8085"`

	// Ledger sync
	SyncBatchSize  int           `envconfig:"SYNC_BATCH_SIZE" default:"10"`
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"30s"`
	SyncMaxRetries int           `envconfig:"SYNC_MAX_RETRIES" default:"3"`

	// Scheduler
	LiabilityCron       string `envconfig:"LIABILITY_CRON" default:"0 7 * * *"`
	ReminderCron        string `envconfig:"REMINDER_CRON" default:"0 8 * * 1"`
	LedgerRepublishCron string `envconfig:"LEDGER_REPUBLISH_CRON" default:"*/15 * * * *"`

	// Invoice PDF
	PDFOutputDir string        `envconfig:"PDF_OUTPUT_DIR" default:"./data/factures"`
	PDFCacheSize int           `envconfig:"PDF_CACHE_SIZE" default:"32"`
	PDFCacheTTL  time.Duration `envconfig:"PDF_CACHE_TTL" default:"10m"`
}

// Load reads the configuration from the environment. Malformed numbers and
// durations are reported rather than replaced by defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}

// UsesAMQP reports whether ledger sync goes through the message broker.
func (c *Config) UsesAMQP() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}
	if c.HTTPRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid HTTP rate limit %d: must be at least 1", c.HTTPRateLimit))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(filepath.Dir(c.SQLiteDBPath)); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	validLedgers := []string{"none", "memory", "sheets"}
	if !slices.Contains(validLedgers, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validLedgers))
	}
	if c.LedgerBackend == "sheets" {
		errors = append(errors, c.validateSheets()...)
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	}

	for name, spec := range map[string]string{
		"LIABILITY_CRON":        c.LiabilityCron,
		"REMINDER_CRON":         c.ReminderCron,
		"LEDGER_REPUBLISH_CRON": c.LedgerRepublishCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", name, spec, err))
		}
	}

	if c.PDFCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid PDF cache size %d: must be at least 1", c.PDFCacheSize))
	}
	if c.PDFCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid PDF cache TTL %v: must be positive", c.PDFCacheTTL))
	}

	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger")
	}
	if c.GoogleLedgerSheetName == "" {
		errors = append(errors, "Google ledger sheet name is required when using sheets ledger")
	}

	hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
	hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
	hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
	if !hasServiceAccount {
		if !hasClient {
			errors = append(errors, "either a service account or GOOGLE_OAUTH_CLIENT_FILE/GOOGLE_OAUTH_CLIENT_JSON must be provided for sheets ledger")
		}
		if !hasToken {
			errors = append(errors, "either a service account or GOOGLE_OAUTH_TOKEN_FILE/GOOGLE_OAUTH_TOKEN_JSON must be provided for sheets ledger")
		}
	}

	for label, path := range map[string]string{
		"service account": serviceAccountPath(c),
		"OAuth client":    oauthPath(c.GoogleOAuthClientJSON, c.GoogleOAuthClientFile, hasServiceAccount),
		"OAuth token":     oauthPath(c.GoogleOAuthTokenJSON, c.GoogleOAuthTokenFile, hasServiceAccount),
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google %s file does not exist: %s", label, path))
		}
	}
	return errors
}

// serviceAccountPath is the file to check, unless inline JSON is given.
func serviceAccountPath(c *Config) string {
	if c.GoogleServiceAccountJSON != "" {
		return ""
	}
	return c.GoogleServiceAccountFile
}

// oauthPath is the OAuth file that will actually be read, if any.
func oauthPath(inline, file string, serviceAccount bool) string {
	if serviceAccount || inline != "" {
		return ""
	}
	return file
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
