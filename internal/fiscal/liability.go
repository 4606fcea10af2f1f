package fiscal

import (
	"context"
	"fmt"
	"log/slog"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

// VAT franchise thresholds (franchise en base de TVA).
var (
	VATSalesThreshold    = core.EUR(101000)
	VATServicesThreshold = core.EUR(39100)
	VATSalesBase         = core.EUR(91900)
	VATServicesBase      = core.EUR(36800)
)

type Trigger string

const (
	TriggerNone                Trigger = ""
	TriggerImmediateSales      Trigger = "immediate_sales"
	TriggerImmediateServices   Trigger = "immediate_services"
	TriggerRetroactiveSales    Trigger = "retroactive_sales"
	TriggerRetroactiveServices Trigger = "retroactive_services"
)

// Revenue is the HT turnover of one year split by threshold bucket.
type Revenue struct {
	Sales    core.Money `json:"sales"`
	Services core.Money `json:"services"`
}

type LiabilityResult struct {
	Liable           bool    `json:"liable"`
	JustTriggered    bool    `json:"just_triggered"`
	MissingVATNumber bool    `json:"missing_vat_number"`
	Trigger          Trigger `json:"trigger,omitempty"`
	CurrentYear      Revenue `json:"current_year"`
}

// inBand reports base < m <= ceiling.
func inBand(m, base, ceiling core.Money) bool {
	return m.Cents > base.Cents && m.Cents <= ceiling.Cents
}

// CheckThresholds returns the first trigger that fires. current already
// includes carryover when applicable; previous years never do.
func CheckThresholds(current, lastYear, yearBefore Revenue) Trigger {
	switch {
	case current.Sales.Cents > VATSalesThreshold.Cents:
		return TriggerImmediateSales
	case current.Services.Cents > VATServicesThreshold.Cents:
		return TriggerImmediateServices
	case inBand(lastYear.Sales, VATSalesBase, VATSalesThreshold) &&
		inBand(yearBefore.Sales, VATSalesBase, VATSalesThreshold):
		return TriggerRetroactiveSales
	case inBand(lastYear.Services, VATServicesBase, VATServicesThreshold) &&
		inBand(yearBefore.Services, VATServicesBase, VATServicesThreshold):
		return TriggerRetroactiveServices
	}
	return TriggerNone
}

// LiabilityEngine switches the profile to VAT liability once a threshold is
// crossed. It never switches it back.
type LiabilityEngine struct {
	store store.Store
}

func NewLiabilityEngine(s store.Store) *LiabilityEngine {
	return &LiabilityEngine{store: s}
}

// YearRevenue sums every invoice issued in year, paid or not.
func (e *LiabilityEngine) YearRevenue(ctx context.Context, year int) (Revenue, error) {
	invoices, err := e.store.QueryInvoices(ctx, store.IssuedIn(year))
	if err != nil {
		return Revenue{}, core.NewStorageError("year revenue", err)
	}
	sales, services := RevenueSplit(invoices)
	return Revenue{Sales: sales, Services: services}, nil
}

// CurrentYearRevenue is YearRevenue for today's year plus the declared
// carryover when the activity started this year.
func (e *LiabilityEngine) CurrentYearRevenue(ctx context.Context, pi core.PersonalInfo, today core.Date) (Revenue, error) {
	rev, err := e.YearRevenue(ctx, today.Year())
	if err != nil {
		return Revenue{}, err
	}
	if pi.ActivityStartDate != nil && pi.ActivityStartDate.Year() == today.Year() {
		rev.Sales = rev.Sales.Add(pi.CarryoverSalesRevenue)
		rev.Services = rev.Services.Add(pi.CarryoverServiceRevenue)
	}
	return rev, nil
}

// Evaluate checks the thresholds as of today and persists the liability switch.
func (e *LiabilityEngine) Evaluate(ctx context.Context, today core.Date) (LiabilityResult, error) {
	pi, err := e.store.LoadPersonalInfo(ctx)
	if err != nil {
		return LiabilityResult{}, fmt.Errorf("evaluate vat liability: %w", err)
	}

	current, err := e.CurrentYearRevenue(ctx, pi, today)
	if err != nil {
		return LiabilityResult{}, err
	}
	trigger := CheckThresholds(current, Revenue{}, Revenue{})
	if trigger == TriggerNone {
		lastYear, err := e.YearRevenue(ctx, today.Year()-1)
		if err != nil {
			return LiabilityResult{}, err
		}
		yearBefore, err := e.YearRevenue(ctx, today.Year()-2)
		if err != nil {
			return LiabilityResult{}, err
		}
		trigger = CheckThresholds(current, lastYear, yearBefore)
	}

	res := LiabilityResult{Trigger: trigger, CurrentYear: current}
	if trigger != TriggerNone {
		// Re-read in the transaction: invoice numbering writes the same row.
		err := e.store.InTx(ctx, func(tx store.Store) error {
			fresh, err := tx.LoadPersonalInfo(ctx)
			if err != nil {
				return err
			}
			changed := false
			if !fresh.VATLiable {
				fresh.VATLiable = true
				res.JustTriggered = true
				changed = true
			}
			if fresh.VATLiabilityStartDate == nil {
				start := today
				fresh.VATLiabilityStartDate = &start
				changed = true
			}
			pi = fresh
			if !changed {
				return nil
			}
			return tx.SavePersonalInfo(ctx, fresh)
		})
		if err != nil {
			return LiabilityResult{}, fmt.Errorf("evaluate vat liability: %w", err)
		}
		if res.JustTriggered {
			slog.InfoContext(ctx, "VAT liability triggered",
				"trigger", string(trigger),
				"sales_cents", current.Sales.Cents,
				"services_cents", current.Services.Cents,
				"start_date", pi.VATLiabilityStartDate.ISO())
		}
	}

	res.Liable = pi.VATLiable
	res.MissingVATNumber = pi.MissingVATNumber()
	return res, nil
}
