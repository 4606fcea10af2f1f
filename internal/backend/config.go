package backend

import (
	"errors"
	"fmt"

	"picocompta/internal/config"
	gsheet "picocompta/internal/sheets/google"
)

// StoreType selects the persistence backend.
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (t StoreType) IsValid() bool {
	return t == SQLiteStore || t == MemoryStore
}

// LedgerType selects where receipts ledger rows go.
type LedgerType string

const (
	NoLedger     LedgerType = "none"
	MemoryLedger LedgerType = "memory"
	SheetsLedger LedgerType = "sheets"
)

func (t LedgerType) IsValid() bool {
	switch t {
	case NoLedger, MemoryLedger, SheetsLedger:
		return true
	}
	return false
}

// Config is the subset of the application configuration the factory reads.
type Config struct {
	Store        StoreType
	SQLiteDBPath string

	Ledger LedgerType
	Sheets gsheet.Config
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{
		Store:        StoreType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Ledger:       LedgerType(appConfig.LedgerBackend),
		Sheets: gsheet.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			LedgerSheet:        appConfig.GoogleLedgerSheetName,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
			OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
			OAuthClientFile:    appConfig.GoogleOAuthClientFile,
			OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
			OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		},
	}
	if c.Ledger == "" {
		c.Ledger = NoLedger
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store backend: %q", c.Store)
	}
	if c.Store == SQLiteStore && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if !c.Ledger.IsValid() {
		return fmt.Errorf("invalid ledger backend: %q", c.Ledger)
	}
	if c.Ledger == SheetsLedger && c.Sheets.SpreadsheetID == "" {
		return errors.New("Google Spreadsheet ID is required for sheets ledger")
	}
	return nil
}
