package fiscal

import (
	"context"
	"log/slog"
	"math"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

// Reader is the part of the store the fiscal engine reads from.
type Reader interface {
	LoadPersonalInfo(ctx context.Context) (core.PersonalInfo, error)
	QueryInvoices(ctx context.Context, f store.InvoiceFilter) ([]core.Invoice, error)
	ZeroDeclarationExists(ctx context.Context, kind core.DeclarationKind, p core.Period) (bool, error)
}

// Aggregator computes per-period summaries over paid invoices.
type Aggregator struct {
	store Reader
}

func NewAggregator(r Reader) *Aggregator {
	return &Aggregator{store: r}
}

// PeriodSummary holds both declaration summaries of one period, computed
// from a single read of its paid invoices.
type PeriodSummary struct {
	Period core.Period
	Urssaf core.UrssafSummary
	Tva    core.TvaSummary
	Count  int
}

// AllDeclared reports the declared flag of the kind side.
func (s PeriodSummary) AllDeclared(kind core.DeclarationKind) bool {
	if kind == core.KindTVA {
		return s.Tva.AllDeclared
	}
	return s.Urssaf.AllDeclared
}

// Summarize aggregates the paid invoices issued in p. With no invoice, the
// URSSAF side is declared only when a zero declaration was filed for p; the
// TVA side of an empty period always counts as declared.
func (a *Aggregator) Summarize(ctx context.Context, p core.Period) (PeriodSummary, error) {
	invoices, err := a.store.QueryInvoices(ctx, store.PaidIn(p))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to query invoices for period summary",
			"period", p.Label, "error", err)
		return PeriodSummary{}, core.NewStorageError("period summary", err)
	}
	sum := PeriodSummary{
		Period: p,
		Urssaf: SummarizeUrssaf(p, invoices),
		Tva:    SummarizeTva(p, invoices),
		Count:  len(invoices),
	}
	if len(invoices) == 0 {
		sum.Urssaf.AllDeclared, err = a.store.ZeroDeclarationExists(ctx, core.KindURSSAF, p)
		if err != nil {
			return PeriodSummary{}, core.NewStorageError("period summary", err)
		}
	}
	return sum, nil
}

func (a *Aggregator) UrssafSummary(ctx context.Context, p core.Period) (core.UrssafSummary, error) {
	sum, err := a.Summarize(ctx, p)
	return sum.Urssaf, err
}

func (a *Aggregator) TvaSummary(ctx context.Context, p core.Period) (core.TvaSummary, error) {
	sum, err := a.Summarize(ctx, p)
	return sum.Tva, err
}

// SummarizeUrssaf computes the URSSAF summary of invoices. The charge is the
// sum of HT × rate over invoices, rounded to the cent once per activity. For
// an empty slice AllDeclared is false; the caller decides from zero declarations.
func SummarizeUrssaf(p core.Period, invoices []core.Invoice) core.UrssafSummary {
	s := core.UrssafSummary{Period: p, Count: len(invoices), AllDeclared: len(invoices) > 0}
	raw := make(map[core.ActivityType]float64, len(core.ActivityTypes))
	subtotals := make(map[core.ActivityType]*core.ActivitySubtotal, len(core.ActivityTypes))
	for _, a := range core.ActivityTypes {
		subtotals[a] = &core.ActivitySubtotal{Activity: a}
	}
	for _, inv := range invoices {
		st, ok := subtotals[inv.ActivityType]
		if !ok {
			st = &core.ActivitySubtotal{Activity: inv.ActivityType}
			subtotals[inv.ActivityType] = st
		}
		st.TotalHT = st.TotalHT.Add(inv.TotalHT)
		st.Count++
		raw[inv.ActivityType] += float64(inv.TotalHT.Cents) * EffectiveRate(inv)
		if !inv.UrssafDeclared {
			s.AllDeclared = false
		}
	}
	var totalRaw float64
	for _, a := range core.ActivityTypes {
		st := subtotals[a]
		st.Charge = core.Money{Cents: roundCents(raw[a])}
		totalRaw += raw[a]
		s.ByActivity = append(s.ByActivity, *st)
		s.TotalHT = s.TotalHT.Add(st.TotalHT)
	}
	s.Charge = core.Money{Cents: roundCents(totalRaw)}
	return s
}

// SummarizeTva computes the TVA summary of invoices.
func SummarizeTva(p core.Period, invoices []core.Invoice) core.TvaSummary {
	s := core.TvaSummary{Period: p, Count: len(invoices), AllDeclared: true}
	for _, inv := range invoices {
		s.TotalHT = s.TotalHT.Add(inv.TotalHT)
		s.TotalVAT = s.TotalVAT.Add(inv.VATAmount)
		if !inv.VATDeclared {
			s.AllDeclared = false
		}
	}
	return s
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
