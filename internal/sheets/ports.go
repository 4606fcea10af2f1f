package sheets

import (
	"context"

	"picocompta/internal/core"
)

// Ports for the receipts ledger ("livre des recettes") adapters.
type (
	LedgerWriter interface {
		AppendLedgerEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	// LedgerReader reads back the rows recorded for a calendar year.
	LedgerReader interface {
		ListLedgerEntries(ctx context.Context, year int) ([]core.LedgerEntry, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
