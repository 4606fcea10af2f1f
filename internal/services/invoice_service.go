package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	"picocompta/internal/store"
)

// LedgerPublisher announces that an invoice changed in a way the receipts
// ledger must reflect. The AMQP client implements it.
type LedgerPublisher interface {
	PublishLedgerSync(ctx context.Context, invoiceID, version int64) error
}

// InvoiceDraft is the create and edit form of an invoice.
type InvoiceDraft struct {
	ClientID     int64      `json:"client_id" validate:"required,gt=0"`
	IssueDate    *core.Date `json:"issue_date,omitempty"`
	DueDate      *core.Date `json:"due_date,omitempty"`
	Object       string     `json:"object" validate:"required,max=500"`
	ActivityType string     `json:"activity_type" validate:"required,activity"`
	AmountHT     core.Money `json:"amount_ht"`
	VATRate      *float64   `json:"vat_rate,omitempty" validate:"omitempty,gt=0,lte=100"`
}

func (d InvoiceDraft) validate() error {
	verr := &core.ValidationError{}
	if err := validateStruct(d); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if d.AmountHT.Cents <= 0 {
		verr.Add("amount_ht", "must be greater than 0")
	}
	if d.DueDate != nil && d.IssueDate != nil && d.DueDate.Before(*d.IssueDate) {
		verr.Add("due_date", "must not be before the issue date")
	}
	return verr.Err()
}

// InvoiceQuery filters and sorts the invoice list.
type InvoiceQuery struct {
	ClientID int64
	Paid     *bool
	Year     int
	// Sort is one of number, date, amount, client. Defaults to number.
	Sort string
	Desc bool
}

type InvoiceRow struct {
	core.Invoice
	ClientName string `json:"client_name"`
}

type InvoiceService struct {
	store     store.Store
	publisher LedgerPublisher
	today     func() core.Date
}

// NewInvoiceService creates the invoice service. publisher may be nil, in
// which case ledger changes are only picked up by the pending sweep.
func NewInvoiceService(s store.Store, publisher LedgerPublisher) *InvoiceService {
	return &InvoiceService{store: s, publisher: publisher, today: Today}
}

// Create numbers and stores a new invoice. The number, the VAT amount and
// the URSSAF rate snapshot are decided inside one transaction.
func (s *InvoiceService) Create(ctx context.Context, d InvoiceDraft) (core.Invoice, error) {
	if err := d.validate(); err != nil {
		return core.Invoice{}, err
	}

	var id int64
	err := s.store.InTx(ctx, func(tx store.Store) error {
		pi, client, err := s.loadParties(ctx, tx, "create invoice", d.ClientID)
		if err != nil {
			return err
		}

		inv := core.Invoice{
			Number:  pi.LastInvoiceNumber + 1,
			VATRate: pi.DefaultVATRate,
		}
		if inv.VATRate == 0 {
			inv.VATRate = core.DefaultVATRate
		}
		inv.IssueDate = s.today()
		if d.IssueDate != nil {
			inv.IssueDate = *d.IssueDate
		}
		if err := s.fill(&inv, d, pi, client); err != nil {
			return err
		}
		if inv.UrssafRate, err = fiscal.SnapshotRate(inv.ActivityType, inv.IssueDate); err != nil {
			return err
		}

		if id, err = tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		pi.LastInvoiceNumber = inv.Number
		return tx.SavePersonalInfo(ctx, pi)
	})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	slog.InfoContext(ctx, "Invoice created",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"activity", inv.ActivityType,
		"total_ht", inv.TotalHT.String())
	return inv, nil
}

// Update edits an invoice that is neither paid nor declared. The number is
// kept. The URSSAF rate is snapshotted again only when the activity changes.
func (s *InvoiceService) Update(ctx context.Context, id int64, d InvoiceDraft) (core.Invoice, error) {
	if err := d.validate(); err != nil {
		return core.Invoice{}, err
	}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.Locked() {
			return core.NewStateConflict("update invoice", "invoice is already declared")
		}
		if inv.Paid {
			return core.NewStateConflict("update invoice", "invoice is paid, mark it unpaid first")
		}
		pi, client, err := s.loadParties(ctx, tx, "update invoice", d.ClientID)
		if err != nil {
			return err
		}

		previous := inv.ActivityType
		if d.IssueDate != nil {
			inv.IssueDate = *d.IssueDate
		}
		if err := s.fill(&inv, d, pi, client); err != nil {
			return err
		}
		if inv.ActivityType != previous {
			if inv.UrssafRate, err = fiscal.SnapshotRate(inv.ActivityType, inv.IssueDate); err != nil {
				return err
			}
		}
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice %d: %w", id, err)
	}
	return s.store.GetInvoice(ctx, id)
}

func (s *InvoiceService) loadParties(ctx context.Context, tx store.Store, op string, clientID int64) (core.PersonalInfo, core.Client, error) {
	pi, err := tx.LoadPersonalInfo(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return pi, core.Client{}, core.NewStateConflict(op, "profile is not set up")
	}
	if err != nil {
		return pi, core.Client{}, err
	}
	client, err := tx.GetClient(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return pi, client, core.NewValidationError("client_id", "unknown client")
	}
	if err != nil {
		return pi, client, err
	}
	if pi.VATLiable && (client.VATNumber == nil || strings.TrimSpace(*client.VATNumber) == "") {
		return pi, client, core.NewValidationError("client_id", "client has no VAT number")
	}
	return pi, client, nil
}

// fill applies the draft to inv and recomputes the totals.
func (s *InvoiceService) fill(inv *core.Invoice, d InvoiceDraft, pi core.PersonalInfo, client core.Client) error {
	activity, err := core.ParseActivityType(d.ActivityType)
	if err != nil {
		return core.NewValidationError("activity_type", err.Error())
	}
	inv.ClientID = client.ID
	inv.Object = strings.TrimSpace(d.Object)
	inv.ActivityType = activity
	inv.DueDate = d.DueDate
	if d.VATRate != nil {
		inv.VATRate = *d.VATRate
	}
	inv.SetAmount(d.AmountHT)
	inv.ComputeTotals(pi.VATLiable)
	return inv.Validate()
}

// MarkPaid records the payment as of today. Marking a paid invoice again is
// a no-op.
func (s *InvoiceService) MarkPaid(ctx context.Context, id int64, today core.Date) (core.Invoice, error) {
	return s.setPaid(ctx, id, true, today)
}

// MarkUnpaid cancels a payment. Invoices already part of a declaration
// cannot be unpaid.
func (s *InvoiceService) MarkUnpaid(ctx context.Context, id int64) (core.Invoice, error) {
	return s.setPaid(ctx, id, false, core.Date{})
}

func (s *InvoiceService) setPaid(ctx context.Context, id int64, paid bool, today core.Date) (core.Invoice, error) {
	var (
		inv     core.Invoice
		changed bool
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		inv, err = tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.Paid == paid {
			return nil
		}
		if !paid && inv.Locked() {
			return core.NewStateConflict("mark unpaid", "invoice is already declared")
		}
		inv.Paid = paid
		inv.PaidDate = nil
		if paid {
			d := today
			inv.PaidDate = &d
		}
		inv.LedgerVersion++
		changed = true
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("set invoice %d paid=%t: %w", id, paid, err)
	}
	if !changed {
		return inv, nil
	}

	slog.InfoContext(ctx, "Invoice payment status changed",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"paid", paid,
		"ledger_version", inv.LedgerVersion)

	if err := s.publishLedgerSync(ctx, inv.ID, inv.LedgerVersion); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"invoice_id", inv.ID, "error", err)
	}
	return s.store.GetInvoice(ctx, id)
}

func (s *InvoiceService) publishLedgerSync(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No ledger publisher, relying on pending sweep", "invoice_id", id)
		return nil
	}
	return s.publisher.PublishLedgerSync(ctx, id, version)
}

func (s *InvoiceService) Get(ctx context.Context, id int64) (core.Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

// List returns the invoices matching q with their client names.
func (s *InvoiceService) List(ctx context.Context, q InvoiceQuery) ([]InvoiceRow, error) {
	f := store.InvoiceFilter{ClientID: q.ClientID, Paid: q.Paid}
	if q.Year != 0 {
		f = store.IssuedIn(q.Year)
		f.ClientID, f.Paid = q.ClientID, q.Paid
	}
	invoices, err := s.store.QueryInvoices(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	names := make(map[int64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	rows := make([]InvoiceRow, len(invoices))
	for i, inv := range invoices {
		rows[i] = InvoiceRow{Invoice: inv, ClientName: names[inv.ClientID]}
	}

	var compare func(a, b InvoiceRow) int
	switch q.Sort {
	case "date":
		compare = func(a, b InvoiceRow) int { return a.IssueDate.Compare(b.IssueDate.Time) }
	case "amount":
		compare = func(a, b InvoiceRow) int { return cmp.Compare(a.TotalTTC.Cents, b.TotalTTC.Cents) }
	case "client":
		compare = func(a, b InvoiceRow) int {
			return strings.Compare(strings.ToLower(a.ClientName), strings.ToLower(b.ClientName))
		}
	default:
		compare = func(a, b InvoiceRow) int { return cmp.Compare(a.Number, b.Number) }
	}
	slices.SortStableFunc(rows, func(a, b InvoiceRow) int {
		c := compare(a, b)
		if c == 0 {
			c = cmp.Compare(a.Number, b.Number)
		}
		if q.Desc {
			return -c
		}
		return c
	})
	return rows, nil
}

// ApplyRateRevisions stores the scheduled URSSAF rate on every invoice not
// yet URSSAF-declared whose snapshot no longer matches its issue date. It
// returns the number of invoices changed.
func (s *InvoiceService) ApplyRateRevisions(ctx context.Context) (int, error) {
	var n int
	err := s.store.InTx(ctx, func(tx store.Store) error {
		invoices, err := tx.QueryInvoices(ctx, store.InvoiceFilter{})
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.UrssafDeclared {
				continue
			}
			rate, err := fiscal.SnapshotRate(inv.ActivityType, inv.IssueDate)
			if err != nil || rate == inv.UrssafRate {
				continue
			}
			inv.UrssafRate = rate
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply rate revisions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "URSSAF rates revised", "invoices", n)
	}
	return n, nil
}
