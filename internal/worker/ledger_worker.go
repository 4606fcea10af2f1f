// Package worker consumes ledger sync messages and keeps the receipts
// ledger in line with the invoices database.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"picocompta/internal/amqp"
	"picocompta/internal/core"
	"picocompta/internal/services"
	"picocompta/internal/sheets"
	"picocompta/internal/store"
)

// startupBatches bounds how many sweep batches run before consuming.
const startupBatches = 5

// LedgerWorker handles ledger sync messages from AMQP and sweeps invoices
// whose messages were lost.
type LedgerWorker struct {
	store  store.Store
	syncer *services.LedgerSyncer
	sweep  *services.LedgerSyncProcessor
	reader sheets.LedgerReader
}

func NewLedgerWorker(s store.Store, ledger sheets.Ledger, cfg services.LedgerSyncConfig) *LedgerWorker {
	syncer := services.NewLedgerSyncer(s, ledger)
	return &LedgerWorker{
		store:  s,
		syncer: syncer,
		sweep:  services.NewLedgerSyncProcessor(s, syncer, cfg),
		reader: ledger,
	}
}

// HandleSyncMessage syncs the invoice named by msg. Messages for invoices
// that no longer exist are dropped.
func (w *LedgerWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing ledger sync message",
		"invoice_id", msg.InvoiceID,
		"version", msg.Version,
		"message_id", msg.MessageID)

	err := w.syncer.Sync(ctx, msg.InvoiceID, msg.Version)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		slog.WarnContext(ctx, "Ledger sync message for unknown invoice dropped", "invoice_id", msg.InvoiceID)
		return nil
	}
	if markErr := w.store.MarkLedgerSyncFailed(ctx, msg.InvoiceID); markErr != nil {
		slog.ErrorContext(ctx, "Failed to record ledger sync failure", "invoice_id", msg.InvoiceID, "error", markErr)
	}
	return fmt.Errorf("sync invoice %d: %w", msg.InvoiceID, err)
}

// ProcessPending runs one sweep batch and returns how many invoices were
// synced.
func (w *LedgerWorker) ProcessPending(ctx context.Context) int {
	return w.sweep.ProcessBatch(ctx)
}

// StartupSyncCheck drains pending invoices left behind while the worker was
// down.
func (w *LedgerWorker) StartupSyncCheck(ctx context.Context) int {
	total := 0
	for i := 0; i < startupBatches; i++ {
		n := w.sweep.ProcessBatch(ctx)
		total += n
		if n == 0 || ctx.Err() != nil {
			break
		}
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending ledger invoices found on startup")
	} else {
		slog.InfoContext(ctx, "Startup ledger sync completed", "synced", total)
	}
	return total
}

// ReconcileReport lists invoice numbers whose net ledger amount for the
// year disagrees with the database. A receipt reversed in a later year
// shows up as Unexpected in the year it was recorded.
type ReconcileReport struct {
	Year       int     `json:"year"`
	Checked    int     `json:"checked"`
	Pending    int     `json:"pending"`
	Missing    []int64 `json:"missing,omitempty"`
	Unexpected []int64 `json:"unexpected,omitempty"`
	Mismatched []int64 `json:"mismatched,omitempty"`
}

func (r ReconcileReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Mismatched) == 0
}

// Reconcile compares the ledger rows of year with the paid invoices whose
// payment date falls in that year. Invoices still waiting for a sync are
// counted as pending and left out.
func (w *LedgerWorker) Reconcile(ctx context.Context, year int) (ReconcileReport, error) {
	report := ReconcileReport{Year: year}

	entries, err := w.reader.ListLedgerEntries(ctx, year)
	if err != nil {
		return report, fmt.Errorf("read ledger %d: %w", year, err)
	}
	invoices, err := w.store.QueryInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return report, fmt.Errorf("list invoices: %w", err)
	}

	net := make(map[int64]core.Money)
	for _, e := range entries {
		net[e.InvoiceNumber] = net[e.InvoiceNumber].Add(e.AmountHT)
	}

	known := make(map[int64]bool, len(invoices))
	for _, inv := range invoices {
		known[inv.Number] = true
		if inv.LedgerSyncedVersion < inv.LedgerVersion {
			report.Pending++
			delete(net, inv.Number)
			continue
		}
		var want core.Money
		if inv.Paid && inv.PaidDate != nil && inv.PaidDate.Year() == year {
			want = inv.TotalHT
		}
		got := net[inv.Number]
		delete(net, inv.Number)
		if want.IsZero() && got.IsZero() {
			continue
		}
		report.Checked++
		switch {
		case got.IsZero():
			report.Missing = append(report.Missing, inv.Number)
		case want.IsZero():
			report.Unexpected = append(report.Unexpected, inv.Number)
		case got != want:
			report.Mismatched = append(report.Mismatched, inv.Number)
		}
	}
	for number, amount := range net {
		if !amount.IsZero() && !known[number] {
			report.Unexpected = append(report.Unexpected, number)
		}
	}
	slices.Sort(report.Missing)
	slices.Sort(report.Unexpected)
	slices.Sort(report.Mismatched)

	level := slog.LevelInfo
	if !report.OK() {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "Ledger reconciliation finished",
		"year", year,
		"checked", report.Checked,
		"pending", report.Pending,
		"missing", len(report.Missing),
		"unexpected", len(report.Unexpected),
		"mismatched", len(report.Mismatched))
	return report, nil
}
