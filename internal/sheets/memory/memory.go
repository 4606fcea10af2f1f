package memory

import (
	"context"
	"fmt"
	"sync"

	"picocompta/internal/core"
	"picocompta/internal/sheets"
)

// Ledger keeps receipts ledger rows in memory.
type Ledger struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
	failErr error
	failN   int
}

var _ sheets.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// FailNext makes the next n appends return err.
func (l *Ledger) FailNext(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failN, l.failErr = n, err
}

// AppendLedgerEntry stores the row and returns a synthetic row reference.
func (l *Ledger) AppendLedgerEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failN > 0 {
		l.failN--
		return "", l.failErr
	}
	if e.InvoiceNumber <= 0 {
		return "", fmt.Errorf("ledger entry without invoice number")
	}
	l.entries = append(l.entries, e)
	return fmt.Sprintf("mem:%d", len(l.entries)), nil
}

func (l *Ledger) ListLedgerEntries(_ context.Context, year int) ([]core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range l.entries {
		if e.ReceiptDate.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries returns every stored row in insertion order.
func (l *Ledger) Entries() []core.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.LedgerEntry(nil), l.entries...)
}
