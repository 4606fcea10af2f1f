package google

import (
	"testing"

	"picocompta/internal/core"
)

func TestParseLedgerWithHeader(t *testing.T) {
	values := [][]any{
		{"Date d'encaissement", "N° facture", "Client", "Objet", "Nature", "Montant HT", "Montant TTC", "Type", "ID facture", "Version"},
		{"15/03/2024", 12.0, "ACME", "Audit", "BIC service", 1000.5, 1200.6, "Encaissement", 7.0, 1.0},
		{},
		{"20/03/2024", 12.0, "ACME", "Audit", "BIC service", -1000.5, -1200.6, "Annulation", 7.0, 2.0},
		{"not a date", 13.0, "Other", "", "", 10.0},
	}
	entries, skipped := parseLedger(values)
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.InvoiceNumber != 12 || first.InvoiceID != 7 || first.Version != 1 {
		t.Errorf("unexpected ids: %+v", first)
	}
	if !first.ReceiptDate.Equal(core.NewDate(2024, 3, 15)) {
		t.Errorf("receipt date = %s", first.ReceiptDate.ISO())
	}
	if first.AmountHT.Cents != 100050 || first.AmountTTC.Cents != 120060 {
		t.Errorf("amounts = %d / %d", first.AmountHT.Cents, first.AmountTTC.Cents)
	}
	if first.ActivityType != core.ActivityService || first.Reversal {
		t.Errorf("unexpected activity/reversal: %+v", first)
	}

	if rev := entries[1]; !rev.Reversal || rev.AmountHT.Cents != -100050 {
		t.Errorf("unexpected reversal row: %+v", rev)
	}
}

func TestParseLedgerReorderedColumns(t *testing.T) {
	values := [][]any{
		{"Montant HT", "N° facture", "Date d'encaissement"},
		{"1 234,50 €", "3", "2024-06-01"},
		{"-20", "4", "02/06/2024"},
	}
	entries, skipped := parseLedger(values)
	if skipped != 0 || len(entries) != 2 {
		t.Fatalf("entries=%d skipped=%d", len(entries), skipped)
	}
	if entries[0].AmountHT.Cents != 123450 || entries[0].AmountTTC.Cents != 123450 {
		t.Errorf("amounts = %+v", entries[0])
	}
	if !entries[1].Reversal {
		t.Error("negative amount without type should read as a reversal")
	}
}

func TestParseLedgerWithoutHeader(t *testing.T) {
	values := [][]any{
		{"01/02/2024", "1", "Client", "Objet", "BNC", "50", "60", "Encaissement"},
	}
	entries, skipped := parseLedger(values)
	if skipped != 0 || len(entries) != 1 {
		t.Fatalf("entries=%d skipped=%d", len(entries), skipped)
	}
	if entries[0].ActivityType != core.ActivityLiberal {
		t.Errorf("activity = %q", entries[0].ActivityType)
	}
}

func TestParseEurosToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"1 200,50 €", 120050, true},
		{"-5.5", -550, true},
		{"1e+06", 100000000, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseEurosToCents(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseEurosToCents(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
