// Package backend builds the store and ledger adapters selected by the
// configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"picocompta/internal/sheets"
	gsheet "picocompta/internal/sheets/google"
	ledgermem "picocompta/internal/sheets/memory"
	"picocompta/internal/storage"
	"picocompta/internal/store"
	"picocompta/internal/store/memory"
)

// Result holds the opened adapters. Ledger is nil when no ledger is
// configured.
type Result struct {
	Store  store.Store
	Ledger sheets.Ledger
}

// Close releases the store.
func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open creates the store and, when configured, the ledger.
func (f *Factory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	st, err := f.OpenStore(config)
	if err != nil {
		return nil, err
	}
	ledger, err := f.OpenLedger(ctx, config)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &Result{Store: st, Ledger: ledger}, nil
}

func (f *Factory) OpenStore(config Config) (store.Store, error) {
	switch config.Store {
	case SQLiteStore:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryStore:
		f.logger.Warn("Using in-memory store, data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unsupported store backend: %s", config.Store)
}

// OpenLedger returns nil, nil for the "none" ledger.
func (f *Factory) OpenLedger(ctx context.Context, config Config) (sheets.Ledger, error) {
	switch config.Ledger {
	case NoLedger, "":
		f.logger.Info("Receipts ledger disabled")
		return nil, nil
	case MemoryLedger:
		f.logger.Info("Initialized in-memory receipts ledger")
		return ledgermem.New(), nil
	case SheetsLedger:
		cli, err := gsheet.New(ctx, config.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
		}
		f.logger.Info("Initialized Google Sheets receipts ledger",
			"spreadsheet_id", config.Sheets.SpreadsheetID,
			"sheet", config.Sheets.LedgerSheet)
		return cli, nil
	}
	return nil, fmt.Errorf("unsupported ledger backend: %s", config.Ledger)
}
