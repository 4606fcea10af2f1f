// Package store declares the persistence ports of the application. The SQLite
// implementation lives in internal/storage, an in-memory one in store/memory.
package store

import (
	"context"

	"picocompta/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = core.ErrNotFound

type (
	// PersonalInfoRepository holds the single business profile.
	PersonalInfoRepository interface {
		// LoadPersonalInfo returns ErrNotFound before onboarding.
		LoadPersonalInfo(ctx context.Context) (core.PersonalInfo, error)
		// SavePersonalInfo creates or replaces the profile.
		SavePersonalInfo(ctx context.Context, pi core.PersonalInfo) error
	}

	ClientRepository interface {
		CreateClient(ctx context.Context, c core.Client) (int64, error)
		UpdateClient(ctx context.Context, c core.Client) error
		GetClient(ctx context.Context, id int64) (core.Client, error)
		ListClients(ctx context.Context) ([]core.Client, error)
	}

	InvoiceRepository interface {
		CreateInvoice(ctx context.Context, inv core.Invoice) (int64, error)
		UpdateInvoice(ctx context.Context, inv core.Invoice) error
		GetInvoice(ctx context.Context, id int64) (core.Invoice, error)
		// QueryInvoices returns matching invoices ordered by issue date then number.
		QueryInvoices(ctx context.Context, f InvoiceFilter) ([]core.Invoice, error)
		// MarkDeclared sets the declaration flag of kind on every paid invoice
		// issued inside the period and returns the number of rows touched.
		MarkDeclared(ctx context.Context, kind core.DeclarationKind, p core.Period) (int64, error)

		// PendingLedger lists invoices whose ledger version is ahead of the synced one.
		PendingLedger(ctx context.Context, limit, maxAttempts int) ([]core.Invoice, error)
		MarkLedgerSynced(ctx context.Context, id, version int64) error
		MarkLedgerSyncFailed(ctx context.Context, id int64) error
	}

	ZeroDeclarationRepository interface {
		ZeroDeclarationExists(ctx context.Context, kind core.DeclarationKind, p core.Period) (bool, error)
		// InsertZeroDeclaration reports false when the same kind and period was
		// already recorded.
		InsertZeroDeclaration(ctx context.Context, z core.ZeroDeclaration) (bool, error)
		ListZeroDeclarations(ctx context.Context, kind core.DeclarationKind, year int) ([]core.ZeroDeclaration, error)
	}

	// Store is the full persistence port.
	Store interface {
		PersonalInfoRepository
		ClientRepository
		InvoiceRepository
		ZeroDeclarationRepository

		// InTx runs fn against a transactional view of the store. Any error
		// returned by fn rolls every change back.
		InTx(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
		Close() error
	}

	// InvoiceFilter selects invoices. Zero values mean "no constraint".
	InvoiceFilter struct {
		Paid         *bool
		From         core.Date // inclusive, on issue date
		To           core.Date // inclusive, on issue date
		ActivityType core.ActivityType
		ClientID     int64
	}
)

// Bool returns a pointer to b, for InvoiceFilter.Paid.
func Bool(b bool) *bool { return &b }

// PaidIn selects the paid invoices issued inside p.
func PaidIn(p core.Period) InvoiceFilter {
	return InvoiceFilter{Paid: Bool(true), From: p.Start, To: p.End}
}

// IssuedIn selects every invoice issued during year, paid or not.
func IssuedIn(year int) InvoiceFilter {
	return InvoiceFilter{From: core.NewDate(year, 1, 1), To: core.NewDate(year, 12, 31)}
}

// Match reports whether inv satisfies the filter.
func (f InvoiceFilter) Match(inv core.Invoice) bool {
	if f.Paid != nil && inv.Paid != *f.Paid {
		return false
	}
	if !f.From.IsZero() && inv.IssueDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && inv.IssueDate.After(f.To) {
		return false
	}
	if f.ActivityType != "" && inv.ActivityType != f.ActivityType {
		return false
	}
	if f.ClientID != 0 && inv.ClientID != f.ClientID {
		return false
	}
	return true
}
