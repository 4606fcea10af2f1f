package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"picocompta/internal/core"
	ports "picocompta/internal/sheets"
)

const (
	DefaultLedgerSheet = "Recettes"

	receiptLabel  = "Encaissement"
	reversalLabel = "Annulation"
)

// ledgerHeader is written on the first row of an empty yearly sheet.
var ledgerHeader = []any{
	"Date d'encaissement", "N° facture", "Client", "Objet", "Nature",
	"Montant HT", "Montant TTC", "Type", "ID facture", "Version",
}

// Config selects the spreadsheet and the credentials. Service account
// credentials win over an OAuth client+token pair.
type Config struct {
	SpreadsheetID string
	LedgerSheet   string // base name, prefixed with the receipt year

	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string

	RowCacheTTL time.Duration
}

// Client writes the receipts register ("livre des recettes") into one
// sheet per year, e.g. "2024 Recettes".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerBase    string

	mu                 sync.Mutex
	cacheValidDuration time.Duration
	rowCounts          map[string]cachedRows
}

type cachedRows struct {
	count     int
	expiresAt time.Time
}

var _ ports.Ledger = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, cfg), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string, cfg Config) *Client {
	base := strings.TrimSpace(cfg.LedgerSheet)
	if base == "" {
		base = DefaultLedgerSheet
	}
	ttl := cfg.RowCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		ledgerBase:         base,
		cacheValidDuration: ttl,
		rowCounts:          make(map[string]cachedRows),
	}
}

// newSheetsService builds the Sheets service from a service account, or
// from an OAuth client and a token produced by cmd/oauth-init.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	saJSON, err := inlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile, "service account")
	if err != nil {
		return nil, err
	}
	if saJSON == nil {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			if saJSON, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
		}
	}
	if saJSON != nil {
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account", "credentials_size", len(saJSON))
		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	httpClient, err := oauthHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token")
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func oauthHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile, "oauth token")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_*)")
	}

	oc, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tok, err := parseToken(tokenJSON)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return oc.Client(base, tok), nil
}

func parseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	return &tok, nil
}

func inlineOrFile(inline, path, what string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return b, nil
}

// newHTTPClientWithPooling is the transport under the OAuth client.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// SheetName returns the ledger sheet holding receipts of year.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.ledgerBase, year)
}

// AppendLedgerEntry writes e on the first free row of the sheet for the
// receipt year and returns the A1 reference of that row.
func (c *Client) AppendLedgerEntry(ctx context.Context, e core.LedgerEntry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if e.InvoiceNumber <= 0 {
		return "", errors.New("ledger entry without invoice number")
	}
	sheet := c.SheetName(e.ReceiptDate.Year())

	rows, err := c.rowCount(ctx, sheet)
	if isMissingSheet(err) {
		if err := c.addSheet(ctx, sheet); err != nil {
			return "", err
		}
		rows, err = 0, nil
	}
	if err != nil {
		return "", err
	}
	if rows == 0 {
		if err := c.writeRow(ctx, sheet, 1, ledgerHeader); err != nil {
			return "", err
		}
		rows = 1
	}

	next := rows + 1
	if err := c.writeRow(ctx, sheet, next, ledgerRow(e)); err != nil {
		c.invalidateRowCache(sheet)
		return "", err
	}
	c.storeRowCount(sheet, next)

	ref := fmt.Sprintf("%s!A%d:J%d", sheet, next, next)
	slog.DebugContext(ctx, "Ledger row written", "ref", ref, "invoice_number", e.InvoiceNumber, "reversal", e.Reversal)
	return ref, nil
}

// addSheet creates the yearly sheet the first time a receipt of that year
// is recorded.
func (c *Client) addSheet(ctx context.Context, sheet string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Ledger sheet created", "sheet", sheet)
	return nil
}

func isMissingSheet(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Unable to parse range")
}

func (c *Client) writeRow(ctx context.Context, sheet string, row int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:J%d", sheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// rowCount returns the number of used rows in column A, served from a short
// lived cache since only this client appends to the ledger.
func (c *Client) rowCount(ctx context.Context, sheet string) (int, error) {
	c.mu.Lock()
	cached, ok := c.rowCounts[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.count, nil
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	c.storeRowCount(sheet, len(resp.Values))
	return len(resp.Values), nil
}

func (c *Client) storeRowCount(sheet string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowCounts[sheet] = cachedRows{count: n, expiresAt: time.Now().Add(c.cacheValidDuration)}
}

func (c *Client) invalidateRowCache(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowCounts, sheet)
}

// ListLedgerEntries reads back every row of the sheet for year.
func (c *Client) ListLedgerEntries(ctx context.Context, year int) ([]core.LedgerEntry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:J", c.SheetName(year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	entries, skipped := parseLedger(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Unreadable ledger rows skipped", "sheet", c.SheetName(year), "count", skipped)
	}
	return entries, nil
}

func ledgerRow(e core.LedgerEntry) []any {
	kind := receiptLabel
	if e.Reversal {
		kind = reversalLabel
	}
	return []any{
		e.ReceiptDate.French(),
		e.InvoiceNumber,
		e.ClientName,
		e.Object,
		e.ActivityType.String(),
		e.AmountHT.Euros(),
		e.AmountTTC.Euros(),
		kind,
		e.InvoiceID,
		e.Version,
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseEurosToCents accepts "1234.5", "1 234,50 €" and signed values.
func parseEurosToCents(s string) (int64, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.TrimSuffix(strings.TrimSpace(s), "€"))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return -int64(-f*100.0 + 0.5), true
	}
	return int64(f*100.0 + 0.5), true
}
