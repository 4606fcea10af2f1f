package fiscal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/store/memory"
)

func startedThisYear() core.PersonalInfo {
	pi := quarterlyProfile()
	pi.ActivityStartDate = dateRef(2024, 1, 15)
	return pi
}

func TestLiabilityImmediateThresholdIsStrict(t *testing.T) {
	ctx := context.Background()
	today := core.NewDate(2024, 10, 1)

	t.Run("101000 stays under the franchise", func(t *testing.T) {
		f := newFixture(t, startedThisYear())
		f.invoice(core.ActivitySales, core.EUR(101000), core.NewDate(2024, 3, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.False(t, res.Liable)
		assert.False(t, res.JustTriggered)
		assert.Equal(t, TriggerNone, res.Trigger)
	})

	t.Run("101001 triggers", func(t *testing.T) {
		f := newFixture(t, startedThisYear())
		f.invoice(core.ActivitySales, core.EUR(101001), core.NewDate(2024, 3, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.True(t, res.Liable)
		assert.True(t, res.JustTriggered)
		assert.True(t, res.MissingVATNumber)
		assert.Equal(t, TriggerImmediateSales, res.Trigger)

		pi, err := f.store.LoadPersonalInfo(ctx)
		require.NoError(t, err)
		assert.True(t, pi.VATLiable)
		require.NotNil(t, pi.VATLiabilityStartDate)
		assert.True(t, pi.VATLiabilityStartDate.Equal(today))
	})

	t.Run("services counts BIC service and BNC", func(t *testing.T) {
		f := newFixture(t, startedThisYear())
		f.invoice(core.ActivityService, core.EUR(20000), core.NewDate(2024, 2, 1))
		f.invoice(core.ActivityLiberal, core.EUR(19101), core.NewDate(2024, 5, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, TriggerImmediateServices, res.Trigger)
		assert.Equal(t, core.EUR(39101), res.CurrentYear.Services)
	})

	t.Run("unpaid invoices count", func(t *testing.T) {
		f := newFixture(t, startedThisYear())
		f.invoice(core.ActivityService, core.EUR(39101), core.NewDate(2024, 2, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.True(t, res.Liable)
	})
}

func TestLiabilityCarryover(t *testing.T) {
	ctx := context.Background()
	today := core.NewDate(2024, 10, 1)

	pi := startedThisYear()
	pi.CarryoverServiceRevenue = core.EUR(39000)
	f := newFixture(t, pi)
	f.invoice(core.ActivityService, core.EUR(101), core.NewDate(2024, 2, 1))
	res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
	require.NoError(t, err)
	assert.True(t, res.Liable, "carryover counts in the activity start year")

	pi = quarterlyProfile() // started in 2023
	pi.CarryoverServiceRevenue = core.EUR(39000)
	f = newFixture(t, pi)
	f.invoice(core.ActivityService, core.EUR(101), core.NewDate(2024, 2, 1))
	res, err = NewLiabilityEngine(f.store).Evaluate(ctx, today)
	require.NoError(t, err)
	assert.False(t, res.Liable, "carryover is ignored after the start year")
}

func TestLiabilityRetroactive(t *testing.T) {
	ctx := context.Background()
	today := core.NewDate(2024, 2, 1)

	t.Run("two years inside the sales band", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		f.invoice(core.ActivitySales, core.EUR(95000), core.NewDate(2023, 6, 1))
		f.invoice(core.ActivitySales, core.EUR(93000), core.NewDate(2022, 6, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.True(t, res.Liable)
		assert.Equal(t, TriggerRetroactiveSales, res.Trigger)
		assert.True(t, res.CurrentYear.Sales.IsZero())
	})

	t.Run("band lower bound is exclusive", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		f.invoice(core.ActivitySales, core.EUR(95000), core.NewDate(2023, 6, 1))
		f.invoice(core.ActivitySales, core.EUR(91900), core.NewDate(2022, 6, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.False(t, res.Liable)
	})

	t.Run("only one year inside the services band", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		f.invoice(core.ActivityService, core.EUR(37000), core.NewDate(2023, 6, 1))
		f.invoice(core.ActivityService, core.EUR(30000), core.NewDate(2022, 6, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.False(t, res.Liable)
	})

	t.Run("two years inside the services band", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		f.invoice(core.ActivityLiberal, core.EUR(39100), core.NewDate(2023, 6, 1))
		f.invoice(core.ActivityService, core.EUR(36801), core.NewDate(2022, 6, 1))
		res, err := NewLiabilityEngine(f.store).Evaluate(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, TriggerRetroactiveServices, res.Trigger)
	})
}

func TestLiabilityRatchet(t *testing.T) {
	ctx := context.Background()
	vat := "FR40123456824"
	pi := quarterlyProfile()
	pi.VATLiable = true
	pi.VATNumber = &vat
	pi.VATLiabilityStartDate = dateRef(2023, 5, 1)
	f := newFixture(t, pi)

	res, err := NewLiabilityEngine(f.store).Evaluate(ctx, core.NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, res.Liable, "liability is never revoked")
	assert.False(t, res.JustTriggered)
	assert.False(t, res.MissingVATNumber)

	stored, err := f.store.LoadPersonalInfo(ctx)
	require.NoError(t, err)
	assert.True(t, stored.VATLiabilityStartDate.Equal(core.NewDate(2023, 5, 1)))
}

func TestLiabilityKeepsExistingStartDate(t *testing.T) {
	ctx := context.Background()
	pi := startedThisYear()
	pending := core.VATNumberPending
	pi.VATNumber = &pending
	pi.VATLiabilityStartDate = dateRef(2024, 6, 1)
	f := newFixture(t, pi)
	f.invoice(core.ActivitySales, core.EUR(120000), core.NewDate(2024, 3, 1))

	res, err := NewLiabilityEngine(f.store).Evaluate(ctx, core.NewDate(2024, 9, 1))
	require.NoError(t, err)
	assert.True(t, res.JustTriggered)
	assert.True(t, res.MissingVATNumber)

	stored, err := f.store.LoadPersonalInfo(ctx)
	require.NoError(t, err)
	assert.True(t, stored.VATLiabilityStartDate.Equal(core.NewDate(2024, 6, 1)))
}

// numberingStore issues an invoice number right after the first profile read,
// as the server does while another process evaluates liability.
type numberingStore struct {
	*memory.Store
	issued bool
}

func (s *numberingStore) LoadPersonalInfo(ctx context.Context) (core.PersonalInfo, error) {
	pi, err := s.Store.LoadPersonalInfo(ctx)
	if err != nil || s.issued {
		return pi, err
	}
	s.issued = true
	next := pi
	next.LastInvoiceNumber += 3
	if err := s.Store.SavePersonalInfo(ctx, next); err != nil {
		return core.PersonalInfo{}, err
	}
	return pi, nil
}

func TestLiabilityKeepsConcurrentProfileWrites(t *testing.T) {
	ctx := context.Background()
	pi := startedThisYear()
	pi.LastInvoiceNumber = 7
	f := newFixture(t, pi)
	f.invoice(core.ActivitySales, core.EUR(101001), core.NewDate(2024, 3, 1))

	st := &numberingStore{Store: f.store}
	res, err := NewLiabilityEngine(st).Evaluate(ctx, core.NewDate(2024, 10, 1))
	require.NoError(t, err)
	require.True(t, st.issued)
	assert.True(t, res.JustTriggered)

	stored, err := f.store.LoadPersonalInfo(ctx)
	require.NoError(t, err)
	assert.True(t, stored.VATLiable)
	assert.Equal(t, int64(10), stored.LastInvoiceNumber, "invoice numbering is not rolled back")
}

func TestCheckThresholds(t *testing.T) {
	none := Revenue{}
	tests := []struct {
		name                   string
		cur, last, before      Revenue
		want                   Trigger
	}{
		{"nothing", none, none, none, TriggerNone},
		{"sales over", Revenue{Sales: core.Money{Cents: 10100000 + 1}}, none, none, TriggerImmediateSales},
		{"services at threshold", Revenue{Services: core.EUR(39100)}, none, none, TriggerNone},
		{"sales band upper bound inclusive", none, Revenue{Sales: core.EUR(101000)}, Revenue{Sales: core.EUR(101000)}, TriggerRetroactiveSales},
		{"sales above band is not retroactive", none, Revenue{Sales: core.EUR(101001)}, Revenue{Sales: core.EUR(95000)}, TriggerNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckThresholds(tt.cur, tt.last, tt.before); got != tt.want {
				t.Errorf("CheckThresholds() = %v, want %v", got, tt.want)
			}
		})
	}
}
