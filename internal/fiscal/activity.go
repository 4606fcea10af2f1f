package fiscal

import (
	"fmt"

	"picocompta/internal/core"
)

// Bucket groups activity types for the VAT franchise thresholds.
type Bucket int

const (
	BucketSales Bucket = iota
	BucketServices
)

// ActivityRules encapsulates the URSSAF treatment of one activity type.
type ActivityRules interface {
	// FallbackRate is applied when an invoice carries no stored URSSAF rate.
	FallbackRate() float64
	// SnapshotRate is the rate stored on an invoice issued on the given day.
	SnapshotRate(issued core.Date) float64
	// Bucket tells which VAT threshold the revenue counts towards.
	Bucket() Bucket
}

type salesRules struct{}

func (salesRules) FallbackRate() float64           { return 0.13 }
func (salesRules) SnapshotRate(_ core.Date) float64 { return 0.124 }
func (salesRules) Bucket() Bucket                   { return BucketSales }

type serviceRules struct{}

func (serviceRules) FallbackRate() float64           { return 0.245 }
func (serviceRules) SnapshotRate(_ core.Date) float64 { return 0.215 }
func (serviceRules) Bucket() Bucket                   { return BucketServices }

// bncRevision is the last day of the former BNC rate; later invoices use the revised one.
var bncRevision = core.NewDate(2025, 1, 1)

type liberalRules struct{}

func (liberalRules) FallbackRate() float64 { return 0.22 }

func (liberalRules) SnapshotRate(issued core.Date) float64 {
	if issued.After(bncRevision) {
		return 0.264
	}
	return 0.248
}

func (liberalRules) Bucket() Bucket { return BucketServices }

var activityRules = map[core.ActivityType]ActivityRules{
	core.ActivitySales:   salesRules{},
	core.ActivityService: serviceRules{},
	core.ActivityLiberal: liberalRules{},
}

// RulesFor returns the rules registered for activity a.
func RulesFor(a core.ActivityType) (ActivityRules, error) {
	r, ok := activityRules[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidActivity, a)
	}
	return r, nil
}

// EffectiveRate is the stored rate of inv, or the activity fallback when it is zero.
func EffectiveRate(inv core.Invoice) float64 {
	if inv.UrssafRate != 0 {
		return inv.UrssafRate
	}
	r, err := RulesFor(inv.ActivityType)
	if err != nil {
		return 0
	}
	return r.FallbackRate()
}

// SnapshotRate returns the URSSAF rate to store on a new invoice.
func SnapshotRate(a core.ActivityType, issued core.Date) (float64, error) {
	r, err := RulesFor(a)
	if err != nil {
		return 0, err
	}
	return r.SnapshotRate(issued), nil
}

// BucketOf returns the threshold bucket of activity a. Unknown types count as services.
func BucketOf(a core.ActivityType) Bucket {
	r, err := RulesFor(a)
	if err != nil {
		return BucketServices
	}
	return r.Bucket()
}

// RevenueSplit sums HT amounts of invoices into sales and services buckets.
func RevenueSplit(invoices []core.Invoice) (sales, services core.Money) {
	for _, inv := range invoices {
		if BucketOf(inv.ActivityType) == BucketSales {
			sales = sales.Add(inv.TotalHT)
		} else {
			services = services.Add(inv.TotalHT)
		}
	}
	return sales, services
}
