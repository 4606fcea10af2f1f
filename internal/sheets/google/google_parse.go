package google

import (
	"strconv"
	"strings"

	"picocompta/internal/core"
)

// ledgerColumns maps header labels to row positions. Rows written before a
// column was added, or sheets edited by hand, are resolved by header.
type ledgerColumns struct {
	date, number, client, object, activity, ht, ttc, kind, id, version int
}

func defaultColumns() ledgerColumns {
	return ledgerColumns{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
}

func columnsFromHeader(headers []string) (ledgerColumns, bool) {
	cols := ledgerColumns{
		date:     indexOf(headers, "Date d'encaissement"),
		number:   indexOf(headers, "N° facture"),
		client:   indexOf(headers, "Client"),
		object:   indexOf(headers, "Objet"),
		activity: indexOf(headers, "Nature"),
		ht:       indexOf(headers, "Montant HT"),
		ttc:      indexOf(headers, "Montant TTC"),
		kind:     indexOf(headers, "Type"),
		id:       indexOf(headers, "ID facture"),
		version:  indexOf(headers, "Version"),
	}
	return cols, cols.date >= 0 && cols.number >= 0 && cols.ht >= 0
}

// parseLedger converts a values matrix into ledger entries. It returns the
// number of non-empty rows it could not read.
func parseLedger(values [][]any) ([]core.LedgerEntry, int) {
	if len(values) == 0 {
		return nil, 0
	}
	cols := defaultColumns()
	start := 0
	if c, ok := columnsFromHeader(toStrings(values[0])); ok {
		cols, start = c, 1
	}

	var (
		out     []core.LedgerEntry
		skipped int
	)
	for _, raw := range values[start:] {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		e, ok := parseLedgerRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func parseLedgerRow(row []string, cols ledgerColumns) (core.LedgerEntry, bool) {
	date, err := core.ParseDate(safeGet(row, cols.date))
	if err != nil {
		return core.LedgerEntry{}, false
	}
	number, err := strconv.ParseInt(safeGet(row, cols.number), 10, 64)
	if err != nil || number <= 0 {
		return core.LedgerEntry{}, false
	}
	ht, ok := parseEurosToCents(safeGet(row, cols.ht))
	if !ok {
		return core.LedgerEntry{}, false
	}
	ttc, ok := parseEurosToCents(safeGet(row, cols.ttc))
	if !ok {
		ttc = ht
	}

	e := core.LedgerEntry{
		InvoiceNumber: number,
		ReceiptDate:   date,
		ClientName:    safeGet(row, cols.client),
		Object:        safeGet(row, cols.object),
		AmountHT:      core.Money{Cents: ht},
		AmountTTC:     core.Money{Cents: ttc},
	}
	if a, err := core.ParseActivityType(safeGet(row, cols.activity)); err == nil {
		e.ActivityType = a
	}
	kind := safeGet(row, cols.kind)
	e.Reversal = strings.EqualFold(kind, reversalLabel) || (kind == "" && ht < 0)
	e.InvoiceID, _ = strconv.ParseInt(safeGet(row, cols.id), 10, 64)
	e.Version, _ = strconv.ParseInt(safeGet(row, cols.version), 10, 64)
	return e, true
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
