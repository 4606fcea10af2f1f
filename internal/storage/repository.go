package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"picocompta/internal/core"
	"picocompta/internal/store"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339

// SQLiteRepository implements store.Store on a SQLite database file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	tx      bool
	now     func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Migrations run on their own connection before the pool is opened.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.tx {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

// InTx runs fn inside a SQL transaction. Nested calls join the outer one.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if r.tx {
		return fn(r)
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin transaction", err)
	}
	txRepo := &SQLiteRepository{db: r.db, queries: r.queries.WithTx(sqlTx), tx: true, now: r.now}
	if err := fn(txRepo); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return core.NewStorageError("commit transaction", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timestampLayout)
}

// LoadPersonalInfo implements store.PersonalInfoRepository
func (r *SQLiteRepository) LoadPersonalInfo(ctx context.Context) (core.PersonalInfo, error) {
	row, err := r.queries.GetPersonalInfo(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PersonalInfo{}, store.ErrNotFound
	}
	if err != nil {
		return core.PersonalInfo{}, core.NewStorageError("load personal info", err)
	}
	return personalInfoFromRow(row), nil
}

// SavePersonalInfo implements store.PersonalInfoRepository
func (r *SQLiteRepository) SavePersonalInfo(ctx context.Context, pi core.PersonalInfo) error {
	err := r.queries.UpsertPersonalInfo(ctx, UpsertPersonalInfoParams{
		LastName:              pi.LastName,
		FirstName:             pi.FirstName,
		Address:               pi.Address,
		PostalCode:            pi.PostalCode,
		Country:               pi.Country,
		Email:                 pi.Email,
		Phone:                 pi.Phone,
		Siret:                 pi.Siret,
		ApeCode:               pi.APECode,
		SocialSecurityNumber:  pi.SocialSecurityNumber,
		Rib:                   pi.RIB,
		Iban:                  pi.IBAN,
		Bic:                   pi.BIC,
		VatNumber:             nullString(pi.VATNumber),
		DeclarationFrequency:  int64(pi.DeclarationFrequency),
		ActivityStartDate:     nullDate(pi.ActivityStartDate),
		VatLiable:             pi.VATLiable,
		VatLiabilityStartDate: nullDate(pi.VATLiabilityStartDate),
		DefaultVatRate:        pi.DefaultVATRate,
		MainActivity:          string(pi.MainActivity),
		Acre:                  pi.ACRE,
		LastInvoiceNumber:     pi.LastInvoiceNumber,
		CarryoverSalesCents:   pi.CarryoverSalesRevenue.Cents,
		CarryoverServiceCents: pi.CarryoverServiceRevenue.Cents,
		UpdatedAt:             r.stamp(),
	})
	if err != nil {
		return core.NewStorageError("save personal info", err)
	}
	slog.InfoContext(ctx, "Personal info saved to SQLite",
		"vat_liable", pi.VATLiable,
		"last_invoice_number", pi.LastInvoiceNumber)
	return nil
}

// CreateClient implements store.ClientRepository
func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) (int64, error) {
	id, err := r.queries.CreateClient(ctx, CreateClientParams{
		Name:       c.Name,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Email:      c.Email,
		VatNumber:  nullString(c.VATNumber),
		Siret:      nullString(c.Siret),
		CreatedAt:  r.stamp(),
	})
	if err != nil {
		return 0, core.NewStorageError("create client", err)
	}
	slog.InfoContext(ctx, "Client saved to SQLite", "id", id, "name", c.Name)
	return id, nil
}

// UpdateClient implements store.ClientRepository
func (r *SQLiteRepository) UpdateClient(ctx context.Context, c core.Client) error {
	n, err := r.queries.UpdateClient(ctx, UpdateClientParams{
		Name:       c.Name,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Email:      c.Email,
		VatNumber:  nullString(c.VATNumber),
		Siret:      nullString(c.Siret),
		ID:         c.ID,
	})
	if err != nil {
		return core.NewStorageError("update client", err)
	}
	if n == 0 {
		return fmt.Errorf("client %d: %w", c.ID, store.ErrNotFound)
	}
	return nil
}

// GetClient implements store.ClientRepository
func (r *SQLiteRepository) GetClient(ctx context.Context, id int64) (core.Client, error) {
	row, err := r.queries.GetClient(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, fmt.Errorf("client %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Client{}, core.NewStorageError("get client", err)
	}
	return clientFromRow(row), nil
}

// ListClients implements store.ClientRepository
func (r *SQLiteRepository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.queries.ListClients(ctx)
	if err != nil {
		return nil, core.NewStorageError("list clients", err)
	}
	out := make([]core.Client, len(rows))
	for i, row := range rows {
		out[i] = clientFromRow(row)
	}
	return out, nil
}

// CreateInvoice implements store.InvoiceRepository
func (r *SQLiteRepository) CreateInvoice(ctx context.Context, inv core.Invoice) (int64, error) {
	params := invoiceParams(inv)
	params.CreatedAt = r.stamp()
	params.UpdatedAt = params.CreatedAt
	id, err := r.queries.CreateInvoice(ctx, params)
	if err != nil {
		return 0, core.NewStorageError("create invoice", err)
	}
	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", id,
		"number", inv.Number,
		"total_ht_cents", inv.TotalHT.Cents,
		"activity", inv.ActivityType)
	return id, nil
}

// UpdateInvoice implements store.InvoiceRepository
func (r *SQLiteRepository) UpdateInvoice(ctx context.Context, inv core.Invoice) error {
	params := invoiceParams(inv)
	params.UpdatedAt = r.stamp()
	n, err := r.queries.UpdateInvoice(ctx, UpdateInvoiceParams{CreateInvoiceParams: params, ID: inv.ID})
	if err != nil {
		return core.NewStorageError("update invoice", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", inv.ID, store.ErrNotFound)
	}
	return nil
}

// GetInvoice implements store.InvoiceRepository
func (r *SQLiteRepository) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	row, err := r.queries.GetInvoice(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, core.NewStorageError("get invoice", err)
	}
	return invoiceFromRow(row), nil
}

// QueryInvoices implements store.InvoiceRepository
func (r *SQLiteRepository) QueryInvoices(ctx context.Context, f store.InvoiceFilter) ([]core.Invoice, error) {
	var params QueryInvoicesParams
	if f.Paid != nil {
		params.Paid = sql.NullBool{Bool: *f.Paid, Valid: true}
	}
	if !f.From.IsZero() {
		params.FromDate = sql.NullString{String: f.From.ISO(), Valid: true}
	}
	if !f.To.IsZero() {
		params.ToDate = sql.NullString{String: f.To.ISO(), Valid: true}
	}
	if f.ActivityType != "" {
		params.ActivityType = sql.NullString{String: string(f.ActivityType), Valid: true}
	}
	if f.ClientID != 0 {
		params.ClientID = sql.NullInt64{Int64: f.ClientID, Valid: true}
	}
	rows, err := r.queries.QueryInvoices(ctx, params)
	if err != nil {
		return nil, core.NewStorageError("query invoices", err)
	}
	return invoicesFromRows(rows), nil
}

// MarkDeclared implements store.InvoiceRepository
func (r *SQLiteRepository) MarkDeclared(ctx context.Context, kind core.DeclarationKind, p core.Period) (int64, error) {
	params := MarkDeclaredParams{UpdatedAt: r.stamp(), FromDate: p.Start.ISO(), ToDate: p.End.ISO()}
	var (
		n   int64
		err error
	)
	switch kind {
	case core.KindURSSAF:
		n, err = r.queries.MarkUrssafDeclared(ctx, params)
	case core.KindTVA:
		n, err = r.queries.MarkVatDeclared(ctx, params)
	default:
		return 0, core.ErrInvalidKind
	}
	if err != nil {
		return 0, core.NewStorageError("mark declared", err)
	}
	slog.InfoContext(ctx, "Invoices marked as declared",
		"kind", kind,
		"period_start", p.Start.ISO(),
		"period_end", p.End.ISO(),
		"rows", n)
	return n, nil
}

// PendingLedger implements store.InvoiceRepository
func (r *SQLiteRepository) PendingLedger(ctx context.Context, limit, maxAttempts int) ([]core.Invoice, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.GetPendingLedgerInvoices(ctx, GetPendingLedgerInvoicesParams{
		MaxAttempts: int64(maxAttempts),
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, core.NewStorageError("pending ledger", err)
	}
	return invoicesFromRows(rows), nil
}

// MarkLedgerSynced implements store.InvoiceRepository
func (r *SQLiteRepository) MarkLedgerSynced(ctx context.Context, id, version int64) error {
	n, err := r.queries.MarkLedgerSynced(ctx, MarkLedgerSyncedParams{Version: version, ID: id})
	if err != nil {
		return core.NewStorageError("mark ledger synced", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	slog.InfoContext(ctx, "Invoice marked as synced to ledger", "id", id, "version", version)
	return nil
}

// MarkLedgerSyncFailed implements store.InvoiceRepository
func (r *SQLiteRepository) MarkLedgerSyncFailed(ctx context.Context, id int64) error {
	n, err := r.queries.MarkLedgerSyncFailed(ctx, id)
	if err != nil {
		return core.NewStorageError("mark ledger sync failed", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	slog.WarnContext(ctx, "Invoice marked with ledger sync error", "id", id)
	return nil
}

// ZeroDeclarationExists implements store.ZeroDeclarationRepository
func (r *SQLiteRepository) ZeroDeclarationExists(ctx context.Context, kind core.DeclarationKind, p core.Period) (bool, error) {
	n, err := r.queries.CountZeroDeclarations(ctx, ZeroDeclarationKey{
		Kind:        string(kind),
		PeriodStart: p.Start.ISO(),
		PeriodEnd:   p.End.ISO(),
	})
	if err != nil {
		return false, core.NewStorageError("query zero declaration", err)
	}
	return n > 0, nil
}

// InsertZeroDeclaration implements store.ZeroDeclarationRepository
func (r *SQLiteRepository) InsertZeroDeclaration(ctx context.Context, z core.ZeroDeclaration) (bool, error) {
	declaredAt := z.DeclaredAt
	if declaredAt.IsZero() {
		declaredAt = r.now()
	}
	n, err := r.queries.InsertZeroDeclaration(ctx, InsertZeroDeclarationParams{
		Kind:        string(z.Kind),
		PeriodStart: z.PeriodStart.ISO(),
		PeriodEnd:   z.PeriodEnd.ISO(),
		DeclaredAt:  declaredAt.UTC().Format(timestampLayout),
		Comment:     z.Comment,
	})
	if err != nil {
		return false, core.NewStorageError("insert zero declaration", err)
	}
	return n > 0, nil
}

// ListZeroDeclarations implements store.ZeroDeclarationRepository
func (r *SQLiteRepository) ListZeroDeclarations(ctx context.Context, kind core.DeclarationKind, year int) ([]core.ZeroDeclaration, error) {
	rows, err := r.queries.ListZeroDeclarations(ctx, ListZeroDeclarationsParams{
		Kind:     string(kind),
		FromDate: core.NewDate(year, 1, 1).ISO(),
		ToDate:   core.NewDate(year, 12, 31).ISO(),
	})
	if err != nil {
		return nil, core.NewStorageError("list zero declarations", err)
	}
	out := make([]core.ZeroDeclaration, len(rows))
	for i, row := range rows {
		out[i] = core.ZeroDeclaration{
			ID:          row.ID,
			Kind:        core.DeclarationKind(row.Kind),
			PeriodStart: parseDate(row.PeriodStart),
			PeriodEnd:   parseDate(row.PeriodEnd),
			DeclaredAt:  parseTimestamp(row.DeclaredAt),
			Comment:     row.Comment,
		}
	}
	return out, nil
}
