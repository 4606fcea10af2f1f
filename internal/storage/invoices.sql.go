package storage

import (
	"context"
	"database/sql"
)

const invoiceColumns = `id, number, client_id, issue_date, due_date, object, activity_type,
       sales_cents, service_cents, liberal_cents, total_ht_cents, vat_rate, vat_cents, total_ttc_cents,
       urssaf_rate, paid, paid_date, urssaf_declared, vat_declared,
       ledger_version, ledger_synced_version, ledger_sync_attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.ClientID,
		&i.IssueDate,
		&i.DueDate,
		&i.Object,
		&i.ActivityType,
		&i.SalesCents,
		&i.ServiceCents,
		&i.LiberalCents,
		&i.TotalHtCents,
		&i.VatRate,
		&i.VatCents,
		&i.TotalTtcCents,
		&i.UrssafRate,
		&i.Paid,
		&i.PaidDate,
		&i.UrssafDeclared,
		&i.VatDeclared,
		&i.LedgerVersion,
		&i.LedgerSyncedVersion,
		&i.LedgerSyncAttempts,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectInvoices(rows *sql.Rows) ([]Invoice, error) {
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (
    number, client_id, issue_date, due_date, object, activity_type,
    sales_cents, service_cents, liberal_cents, total_ht_cents, vat_rate, vat_cents, total_ttc_cents,
    urssaf_rate, paid, paid_date, urssaf_declared, vat_declared,
    ledger_version, ledger_synced_version, ledger_sync_attempts, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateInvoiceParams struct {
	Number              int64
	ClientID            int64
	IssueDate           string
	DueDate             sql.NullString
	Object              string
	ActivityType        string
	SalesCents          int64
	ServiceCents        int64
	LiberalCents        int64
	TotalHtCents        int64
	VatRate             float64
	VatCents            int64
	TotalTtcCents       int64
	UrssafRate          float64
	Paid                bool
	PaidDate            sql.NullString
	UrssafDeclared      bool
	VatDeclared         bool
	LedgerVersion       int64
	LedgerSyncedVersion int64
	LedgerSyncAttempts  int64
	CreatedAt           string
	UpdatedAt           string
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createInvoice,
		arg.Number,
		arg.ClientID,
		arg.IssueDate,
		arg.DueDate,
		arg.Object,
		arg.ActivityType,
		arg.SalesCents,
		arg.ServiceCents,
		arg.LiberalCents,
		arg.TotalHtCents,
		arg.VatRate,
		arg.VatCents,
		arg.TotalTtcCents,
		arg.UrssafRate,
		arg.Paid,
		arg.PaidDate,
		arg.UrssafDeclared,
		arg.VatDeclared,
		arg.LedgerVersion,
		arg.LedgerSyncedVersion,
		arg.LedgerSyncAttempts,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateInvoice = `-- name: UpdateInvoice :execrows
UPDATE invoices SET
    number = ?, client_id = ?, issue_date = ?, due_date = ?, object = ?, activity_type = ?,
    sales_cents = ?, service_cents = ?, liberal_cents = ?, total_ht_cents = ?, vat_rate = ?, vat_cents = ?, total_ttc_cents = ?,
    urssaf_rate = ?, paid = ?, paid_date = ?, urssaf_declared = ?, vat_declared = ?,
    ledger_version = ?, ledger_synced_version = ?, ledger_sync_attempts = ?, updated_at = ?
WHERE id = ?
`

type UpdateInvoiceParams struct {
	CreateInvoiceParams
	ID int64
}

func (q *Queries) UpdateInvoice(ctx context.Context, arg UpdateInvoiceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateInvoice,
		arg.Number,
		arg.ClientID,
		arg.IssueDate,
		arg.DueDate,
		arg.Object,
		arg.ActivityType,
		arg.SalesCents,
		arg.ServiceCents,
		arg.LiberalCents,
		arg.TotalHtCents,
		arg.VatRate,
		arg.VatCents,
		arg.TotalTtcCents,
		arg.UrssafRate,
		arg.Paid,
		arg.PaidDate,
		arg.UrssafDeclared,
		arg.VatDeclared,
		arg.LedgerVersion,
		arg.LedgerSyncedVersion,
		arg.LedgerSyncAttempts,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + `
FROM invoices
WHERE id = ?
`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id))
}

const queryInvoices = `-- name: QueryInvoices :many
SELECT ` + invoiceColumns + `
FROM invoices
WHERE (?1 IS NULL OR paid = ?1)
  AND (?2 IS NULL OR issue_date >= ?2)
  AND (?3 IS NULL OR issue_date <= ?3)
  AND (?4 IS NULL OR activity_type = ?4)
  AND (?5 IS NULL OR client_id = ?5)
ORDER BY issue_date, number
`

type QueryInvoicesParams struct {
	Paid         sql.NullBool
	FromDate     sql.NullString
	ToDate       sql.NullString
	ActivityType sql.NullString
	ClientID     sql.NullInt64
}

func (q *Queries) QueryInvoices(ctx context.Context, arg QueryInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, queryInvoices,
		arg.Paid,
		arg.FromDate,
		arg.ToDate,
		arg.ActivityType,
		arg.ClientID,
	)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

const markUrssafDeclared = `-- name: MarkUrssafDeclared :execrows
UPDATE invoices
SET urssaf_declared = 1, updated_at = ?
WHERE paid = 1 AND issue_date >= ? AND issue_date <= ?
`

const markVatDeclared = `-- name: MarkVatDeclared :execrows
UPDATE invoices
SET vat_declared = 1, updated_at = ?
WHERE paid = 1 AND issue_date >= ? AND issue_date <= ?
`

type MarkDeclaredParams struct {
	UpdatedAt string
	FromDate  string
	ToDate    string
}

func (q *Queries) MarkUrssafDeclared(ctx context.Context, arg MarkDeclaredParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markUrssafDeclared, arg.UpdatedAt, arg.FromDate, arg.ToDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) MarkVatDeclared(ctx context.Context, arg MarkDeclaredParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markVatDeclared, arg.UpdatedAt, arg.FromDate, arg.ToDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPendingLedgerInvoices = `-- name: GetPendingLedgerInvoices :many
SELECT ` + invoiceColumns + `
FROM invoices
WHERE ledger_version > ledger_synced_version AND ledger_sync_attempts < ?
ORDER BY issue_date, number
LIMIT ?
`

type GetPendingLedgerInvoicesParams struct {
	MaxAttempts int64
	Limit       int64
}

func (q *Queries) GetPendingLedgerInvoices(ctx context.Context, arg GetPendingLedgerInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, getPendingLedgerInvoices, arg.MaxAttempts, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

const markLedgerSynced = `-- name: MarkLedgerSynced :execrows
UPDATE invoices
SET ledger_synced_version = MAX(ledger_synced_version, ?), ledger_sync_attempts = 0
WHERE id = ?
`

type MarkLedgerSyncedParams struct {
	Version int64
	ID      int64
}

func (q *Queries) MarkLedgerSynced(ctx context.Context, arg MarkLedgerSyncedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markLedgerSynced, arg.Version, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markLedgerSyncFailed = `-- name: MarkLedgerSyncFailed :execrows
UPDATE invoices
SET ledger_sync_attempts = ledger_sync_attempts + 1
WHERE id = ?
`

func (q *Queries) MarkLedgerSyncFailed(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markLedgerSyncFailed, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
