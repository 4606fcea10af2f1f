package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"picocompta/internal/core"
	"picocompta/internal/sheets"
	"picocompta/internal/store"
)

// LedgerEntryFor returns the ledger row needed to bring the receipts ledger
// in line with inv, or false when the ledger already reflects it.
//
// Every payment toggle bumps LedgerVersion, so an odd synced version means
// the ledger currently holds a receipt for the invoice.
func LedgerEntryFor(inv core.Invoice, clientName string, today core.Date) (core.LedgerEntry, bool) {
	recorded := inv.LedgerSyncedVersion%2 == 1
	if inv.Paid == recorded {
		return core.LedgerEntry{}, false
	}
	e := core.LedgerEntry{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		Version:       inv.LedgerVersion,
		ReceiptDate:   today,
		ClientName:    clientName,
		Object:        inv.Object,
		ActivityType:  inv.ActivityType,
		AmountHT:      inv.TotalHT,
		AmountTTC:     inv.TotalTTC,
	}
	if inv.Paid {
		if inv.PaidDate != nil {
			e.ReceiptDate = *inv.PaidDate
		}
		return e, true
	}
	e.Reversal = true
	e.AmountHT = e.AmountHT.Neg()
	e.AmountTTC = e.AmountTTC.Neg()
	return e, true
}

// LedgerSyncer writes the pending ledger row of one invoice and records the
// synced version. It is shared by the poll loop and the AMQP worker.
type LedgerSyncer struct {
	store  store.Store
	ledger sheets.LedgerWriter
	today  func() core.Date
}

func NewLedgerSyncer(s store.Store, ledger sheets.LedgerWriter) *LedgerSyncer {
	return &LedgerSyncer{store: s, ledger: ledger, today: Today}
}

// Sync brings the ledger up to date for invoice id. Messages carrying a
// version the ledger already reached are ignored.
func (s *LedgerSyncer) Sync(ctx context.Context, id, version int64) error {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return fmt.Errorf("get invoice %d: %w", id, err)
	}
	if inv.LedgerSyncedVersion >= version || inv.LedgerSyncedVersion >= inv.LedgerVersion {
		slog.DebugContext(ctx, "Ledger already up to date",
			"invoice_id", id,
			"version", version,
			"synced_version", inv.LedgerSyncedVersion)
		return nil
	}
	return s.SyncInvoice(ctx, inv)
}

// SyncInvoice appends the row inv needs, if any, then marks its current
// ledger version as synced.
func (s *LedgerSyncer) SyncInvoice(ctx context.Context, inv core.Invoice) error {
	clientName := ""
	client, err := s.store.GetClient(ctx, inv.ClientID)
	switch {
	case err == nil:
		clientName = client.Name
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("get client %d: %w", inv.ClientID, err)
	}

	if entry, ok := LedgerEntryFor(inv, clientName, s.today()); ok {
		ref, err := s.ledger.AppendLedgerEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		slog.InfoContext(ctx, "Ledger entry appended",
			"invoice_id", inv.ID,
			"number", inv.Number,
			"reversal", entry.Reversal,
			"ref", ref)
	}

	if err := s.store.MarkLedgerSynced(ctx, inv.ID, inv.LedgerVersion); err != nil {
		return fmt.Errorf("mark ledger synced: %w", err)
	}
	return nil
}
