package services

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	"picocompta/internal/store"
)

// Micro-enterprise revenue ceilings.
var (
	SalesCeiling    = core.EUR(188700)
	ServicesCeiling = core.EUR(77700)
)

// Gauge is the progress of a revenue figure towards a ceiling.
type Gauge struct {
	Amount  core.Money `json:"amount"`
	Limit   core.Money `json:"limit"`
	Percent float64    `json:"percent"`
	Label   string     `json:"label"`
}

type Ceilings struct {
	Sales       Gauge `json:"sales"`
	Services    Gauge `json:"services"`
	VATSales    Gauge `json:"vat_sales"`
	VATServices Gauge `json:"vat_services"`
	Mixed       Gauge `json:"mixed"`
}

type ClientAmount struct {
	ClientID int64      `json:"client_id"`
	Name     string     `json:"name"`
	Amount   core.Money `json:"amount"`
}

type ClientDelay struct {
	ClientID    int64   `json:"client_id"`
	Name        string  `json:"name"`
	AverageDays float64 `json:"average_days"`
}

type ClientInsights struct {
	BestOfQuarter *ClientAmount `json:"best_of_quarter,omitempty"`
	BestAllTime   *ClientAmount `json:"best_all_time,omitempty"`
	SlowestPayer  *ClientDelay  `json:"slowest_payer,omitempty"`
}

// Reminder counts the paid invoices of the reminder period still waiting
// for a declaration.
type Reminder struct {
	Period        core.Period `json:"period"`
	UrssafPending int         `json:"urssaf_pending"`
	TvaPending    int         `json:"tva_pending"`
}

type HomeSummary struct {
	HasUnpaidInvoices bool                   `json:"has_unpaid_invoices"`
	Reminder          *Reminder              `json:"reminder,omitempty"`
	Liability         fiscal.LiabilityResult `json:"liability"`
	RatesRevised      int                    `json:"rates_revised"`
}

type InsightsService struct {
	store    store.Store
	engine   *fiscal.LiabilityEngine
	invoices *InvoiceService
	printer  *message.Printer
}

func NewInsightsService(s store.Store, invoices *InvoiceService) *InsightsService {
	return &InsightsService{
		store:    s,
		engine:   fiscal.NewLiabilityEngine(s),
		invoices: invoices,
		printer:  message.NewPrinter(language.English),
	}
}

// Ceilings reports the current year revenue against the micro-enterprise
// and VAT franchise ceilings, counted the way the liability engine does.
func (s *InsightsService) Ceilings(ctx context.Context, today core.Date) (Ceilings, error) {
	pi, err := s.store.LoadPersonalInfo(ctx)
	if err != nil {
		return Ceilings{}, fmt.Errorf("ceilings: %w", err)
	}
	rev, err := s.engine.CurrentYearRevenue(ctx, pi, today)
	if err != nil {
		return Ceilings{}, fmt.Errorf("ceilings: %w", err)
	}
	return Ceilings{
		Sales:       s.gauge(rev.Sales, SalesCeiling),
		Services:    s.gauge(rev.Services, ServicesCeiling),
		VATSales:    s.gauge(rev.Sales, fiscal.VATSalesThreshold),
		VATServices: s.gauge(rev.Services, fiscal.VATServicesThreshold),
		Mixed:       s.gauge(rev.Sales.Add(rev.Services), SalesCeiling),
	}, nil
}

func (s *InsightsService) gauge(amount, limit core.Money) Gauge {
	pct := 0.0
	if limit.Cents > 0 {
		pct = math.Min(100, float64(amount.Cents)*100/float64(limit.Cents))
	}
	return Gauge{
		Amount:  amount,
		Limit:   limit,
		Percent: math.Round(pct*100) / 100,
		Label:   s.printer.Sprintf("%.2f€ / %d€", amount.Euros(), limit.Cents/100),
	}
}

// ClientStats finds the best clients by HT revenue and the slowest payer.
func (s *InsightsService) ClientStats(ctx context.Context, today core.Date) (ClientInsights, error) {
	invoices, err := s.store.QueryInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return ClientInsights{}, fmt.Errorf("client stats: %w", err)
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return ClientInsights{}, fmt.Errorf("client stats: %w", err)
	}
	names := make(map[int64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	quarter, _ := fiscal.PeriodContaining(today, core.Quarterly)
	var (
		quarterly = map[int64]core.Money{}
		allTime   = map[int64]core.Money{}
		delays    = map[int64][2]int{} // total days, paid invoices
	)
	for _, inv := range invoices {
		allTime[inv.ClientID] = allTime[inv.ClientID].Add(inv.TotalHT)
		if quarter.Contains(inv.IssueDate) {
			quarterly[inv.ClientID] = quarterly[inv.ClientID].Add(inv.TotalHT)
		}
		if inv.Paid && inv.PaidDate != nil {
			d := delays[inv.ClientID]
			d[0] += inv.IssueDate.DaysUntil(*inv.PaidDate)
			d[1]++
			delays[inv.ClientID] = d
		}
	}

	var out ClientInsights
	out.BestOfQuarter = best(quarterly, names)
	out.BestAllTime = best(allTime, names)
	for id, d := range delays {
		avg := float64(d[0]) / float64(d[1])
		if out.SlowestPayer == nil || avg > out.SlowestPayer.AverageDays ||
			(avg == out.SlowestPayer.AverageDays && id < out.SlowestPayer.ClientID) {
			out.SlowestPayer = &ClientDelay{ClientID: id, Name: names[id], AverageDays: math.Round(avg*10) / 10}
		}
	}
	return out, nil
}

// best picks the highest amount, lowest client id on ties.
func best(amounts map[int64]core.Money, names map[int64]string) *ClientAmount {
	var out *ClientAmount
	for id, m := range amounts {
		if m.Cents <= 0 {
			continue
		}
		if out == nil || m.Cents > out.Amount.Cents || (m.Cents == out.Amount.Cents && id < out.ClientID) {
			out = &ClientAmount{ClientID: id, Name: names[id], Amount: m}
		}
	}
	return out
}

// Home gathers what the landing page shows. It also applies pending URSSAF
// rate revisions and runs the VAT liability evaluation.
func (s *InsightsService) Home(ctx context.Context, today core.Date) (HomeSummary, error) {
	var out HomeSummary
	if s.invoices != nil {
		n, err := s.invoices.ApplyRateRevisions(ctx)
		if err != nil {
			return out, err
		}
		out.RatesRevised = n
	}

	liability, err := s.engine.Evaluate(ctx, today)
	if err != nil {
		return out, err
	}
	out.Liability = liability

	unpaid, err := s.store.QueryInvoices(ctx, store.InvoiceFilter{Paid: store.Bool(false)})
	if err != nil {
		return out, fmt.Errorf("home: %w", err)
	}
	out.HasUnpaidInvoices = len(unpaid) > 0

	pi, err := s.store.LoadPersonalInfo(ctx)
	if err != nil {
		return out, fmt.Errorf("home: %w", err)
	}
	p, ok := fiscal.ReminderPeriod(today, pi.DeclarationFrequency)
	if !ok {
		return out, nil
	}
	paid, err := s.store.QueryInvoices(ctx, store.PaidIn(p))
	if err != nil {
		return out, fmt.Errorf("home: %w", err)
	}
	r := &Reminder{Period: p}
	for _, inv := range paid {
		if !inv.UrssafDeclared {
			r.UrssafPending++
		}
		if pi.VATLiable && !inv.VATDeclared {
			r.TvaPending++
		}
	}
	out.Reminder = r
	return out, nil
}
