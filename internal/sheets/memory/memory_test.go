package memory

import (
	"context"
	"errors"
	"testing"

	"picocompta/internal/core"
)

func TestLedgerAppendAndList(t *testing.T) {
	ctx := context.Background()
	l := New()

	ref, err := l.AppendLedgerEntry(ctx, core.LedgerEntry{
		InvoiceNumber: 1,
		ReceiptDate:   core.NewDate(2024, 3, 1),
		AmountHT:      core.EUR(100),
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := l.AppendLedgerEntry(ctx, core.LedgerEntry{InvoiceNumber: 2, ReceiptDate: core.NewDate(2025, 1, 2)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := l.ListLedgerEntries(ctx, 2024)
	if err != nil || len(got) != 1 || got[0].InvoiceNumber != 1 {
		t.Fatalf("unexpected list: %v err=%v", got, err)
	}
	if n := len(l.Entries()); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}

func TestLedgerRejectsUnnumberedEntry(t *testing.T) {
	if _, err := New().AppendLedgerEntry(context.Background(), core.LedgerEntry{}); err == nil {
		t.Fatal("expected error for entry without invoice number")
	}
}

func TestLedgerFailNext(t *testing.T) {
	ctx := context.Background()
	l := New()
	boom := errors.New("quota exceeded")
	l.FailNext(1, boom)

	e := core.LedgerEntry{InvoiceNumber: 1, ReceiptDate: core.NewDate(2024, 1, 1)}
	if _, err := l.AppendLedgerEntry(ctx, e); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := l.AppendLedgerEntry(ctx, e); err != nil {
		t.Fatalf("second append should succeed: %v", err)
	}
}
