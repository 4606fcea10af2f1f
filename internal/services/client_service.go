package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

type ClientInput struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Address    string  `json:"address" validate:"required,max=200"`
	PostalCode string  `json:"postal_code" validate:"required,max=10"`
	Country    string  `json:"country" validate:"required,max=60"`
	Email      string  `json:"email" validate:"omitempty,email"`
	VATNumber  *string `json:"vat_number,omitempty" validate:"omitempty,max=30"`
	Siret      *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
}

// ClientRow is a client with its revenue figures.
type ClientRow struct {
	core.Client
	FirstInvoice   *core.Date `json:"first_invoice,omitempty"`
	RevenueYear    core.Money `json:"revenue_year"`
	RevenueAllTime core.Money `json:"revenue_all_time"`
	Unpaid         core.Money `json:"unpaid"`
}

type ClientService struct {
	store store.Store
}

func NewClientService(s store.Store) *ClientService {
	return &ClientService{store: s}
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (core.Client, error) {
	if err := validateStruct(in); err != nil {
		return core.Client{}, err
	}
	c := in.toClient()
	id, err := s.store.CreateClient(ctx, c)
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	slog.InfoContext(ctx, "Client created", "client_id", id, "name", c.Name)
	return s.store.GetClient(ctx, id)
}

func (s *ClientService) Update(ctx context.Context, id int64, in ClientInput) (core.Client, error) {
	if err := validateStruct(in); err != nil {
		return core.Client{}, err
	}
	c := in.toClient()
	c.ID = id
	if err := s.store.UpdateClient(ctx, c); err != nil {
		return core.Client{}, fmt.Errorf("update client %d: %w", id, err)
	}
	return s.store.GetClient(ctx, id)
}

func (s *ClientService) Get(ctx context.Context, id int64) (core.Client, error) {
	return s.store.GetClient(ctx, id)
}

// ListWithStats returns every client, alphabetically, with revenue on
// paid invoices (HT) and the TTC total still unpaid.
func (s *ClientService) ListWithStats(ctx context.Context, today core.Date) ([]ClientRow, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	invoices, err := s.store.QueryInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	rows := make([]ClientRow, len(clients))
	index := make(map[int64]int, len(clients))
	for i, c := range clients {
		rows[i] = ClientRow{Client: c}
		index[c.ID] = i
	}

	// invoices come ordered by issue date
	for _, inv := range invoices {
		i, ok := index[inv.ClientID]
		if !ok {
			continue
		}
		row := &rows[i]
		if row.FirstInvoice == nil {
			d := inv.IssueDate
			row.FirstInvoice = &d
		}
		if !inv.Paid {
			row.Unpaid = row.Unpaid.Add(inv.TotalTTC)
			continue
		}
		row.RevenueAllTime = row.RevenueAllTime.Add(inv.TotalHT)
		if inv.IssueDate.Year() == today.Year() {
			row.RevenueYear = row.RevenueYear.Add(inv.TotalHT)
		}
	}

	slices.SortStableFunc(rows, func(a, b ClientRow) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return rows, nil
}

func (in ClientInput) toClient() core.Client {
	return core.Client{
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		Email:      strings.TrimSpace(in.Email),
		VATNumber:  trimmedOrNil(in.VATNumber),
		Siret:      trimmedOrNil(in.Siret),
	}
}
