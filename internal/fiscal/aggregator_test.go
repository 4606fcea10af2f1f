package fiscal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
)

var firstQuarter2024 = core.Period{Label: "1er Trimestre", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 3, 31)}

func TestUrssafSummaryTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quarterlyProfile())
	f.invoice(core.ActivitySales, core.EUR(1000), core.NewDate(2024, 1, 5), paid(), withRate(0.124))
	f.invoice(core.ActivityService, core.EUR(2000), core.NewDate(2024, 2, 5), paid(), withRate(0.215))
	f.invoice(core.ActivityLiberal, core.EUR(3000), core.NewDate(2024, 3, 31), paid(), withRate(0.248))
	f.invoice(core.ActivityService, core.EUR(4000), core.NewDate(2024, 2, 6), paid(), withRate(0.212))
	// Outside the period or unpaid: ignored.
	f.invoice(core.ActivityService, core.EUR(9999), core.NewDate(2024, 4, 1), paid(), withRate(0.215))
	f.invoice(core.ActivityService, core.EUR(9999), core.NewDate(2024, 2, 1), withRate(0.215))

	s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, core.EUR(10000), s.TotalHT)
	var sum core.Money
	for _, st := range s.ByActivity {
		sum = sum.Add(st.TotalHT)
	}
	assert.Equal(t, s.TotalHT, sum, "grand total equals the sum of activity subtotals")

	// 1000*0.124 + 2000*0.215 + 3000*0.248 + 4000*0.212
	assert.Equal(t, int64(214600), s.Charge.Cents)
	assert.Equal(t, int64(12400), s.Subtotal(core.ActivitySales).Charge.Cents)
	assert.Equal(t, int64(127800), s.Subtotal(core.ActivityService).Charge.Cents)
	assert.Equal(t, core.EUR(6000), s.Subtotal(core.ActivityService).TotalHT)
	assert.False(t, s.AllDeclared)
}

func TestUrssafSummaryFallbackRates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quarterlyProfile())
	f.invoice(core.ActivityLiberal, core.EUR(100), core.NewDate(2024, 1, 5), paid())
	f.invoice(core.ActivitySales, core.EUR(100), core.NewDate(2024, 1, 6), paid())
	f.invoice(core.ActivityService, core.EUR(100), core.NewDate(2024, 1, 7), paid())

	s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), s.Subtotal(core.ActivityLiberal).Charge.Cents)
	assert.Equal(t, int64(1300), s.Subtotal(core.ActivitySales).Charge.Cents)
	assert.Equal(t, int64(2450), s.Subtotal(core.ActivityService).Charge.Cents)
	assert.Equal(t, int64(5950), s.Charge.Cents)
}

func TestUrssafAllDeclared(t *testing.T) {
	ctx := context.Background()

	t.Run("empty without zero declaration", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
		require.NoError(t, err)
		assert.Zero(t, s.Count)
		assert.False(t, s.AllDeclared)
	})

	t.Run("empty with zero declaration", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		_, err := f.store.InsertZeroDeclaration(ctx, core.ZeroDeclaration{Kind: core.KindURSSAF, PeriodStart: firstQuarter2024.Start, PeriodEnd: firstQuarter2024.End})
		require.NoError(t, err)
		s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
		require.NoError(t, err)
		assert.True(t, s.AllDeclared)
	})

	t.Run("zero declaration of the other kind does not count", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		_, err := f.store.InsertZeroDeclaration(ctx, core.ZeroDeclaration{Kind: core.KindTVA, PeriodStart: firstQuarter2024.Start, PeriodEnd: firstQuarter2024.End})
		require.NoError(t, err)
		s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
		require.NoError(t, err)
		assert.False(t, s.AllDeclared)
	})

	t.Run("non-empty ignores zero declaration", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		_, err := f.store.InsertZeroDeclaration(ctx, core.ZeroDeclaration{Kind: core.KindURSSAF, PeriodStart: firstQuarter2024.Start, PeriodEnd: firstQuarter2024.End})
		require.NoError(t, err)
		f.invoice(core.ActivityService, core.EUR(10), core.NewDate(2024, 1, 2), paid(), urssafDeclared())
		f.invoice(core.ActivityService, core.EUR(10), core.NewDate(2024, 1, 3), paid())
		s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
		require.NoError(t, err)
		assert.False(t, s.AllDeclared)
	})

	t.Run("all invoices declared", func(t *testing.T) {
		f := newFixture(t, quarterlyProfile())
		f.invoice(core.ActivityService, core.EUR(10), core.NewDate(2024, 1, 2), paid(), urssafDeclared())
		f.invoice(core.ActivitySales, core.EUR(10), core.NewDate(2024, 3, 3), paid(), urssafDeclared())
		s, err := NewAggregator(f.store).UrssafSummary(ctx, firstQuarter2024)
		require.NoError(t, err)
		assert.True(t, s.AllDeclared)
	})
}

func TestTvaSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quarterlyProfile())
	agg := NewAggregator(f.store)

	s, err := agg.TvaSummary(ctx, firstQuarter2024)
	require.NoError(t, err)
	assert.True(t, s.AllDeclared, "an empty period has nothing left to declare")

	f.invoice(core.ActivityService, core.EUR(1000), core.NewDate(2024, 1, 10), paid(), withVAT(20), vatDeclared())
	f.invoice(core.ActivitySales, core.EUR(500), core.NewDate(2024, 2, 10), paid(), withVAT(5.5))

	s, err = agg.TvaSummary(ctx, firstQuarter2024)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, core.EUR(1500), s.TotalHT)
	assert.Equal(t, int64(22750), s.TotalVAT.Cents)
	assert.False(t, s.AllDeclared)
}

func TestSummaryStorageError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quarterlyProfile())
	f.store.FailWith(errors.New("database is locked"))
	agg := NewAggregator(f.store)

	_, err := agg.UrssafSummary(ctx, firstQuarter2024)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)

	_, err = agg.TvaSummary(ctx, firstQuarter2024)
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestSummarizeSharesOneRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quarterlyProfile())
	agg := NewAggregator(f.store)

	sum, err := agg.Summarize(ctx, firstQuarter2024)
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
	assert.False(t, sum.AllDeclared(core.KindURSSAF))
	assert.True(t, sum.AllDeclared(core.KindTVA), "empty TVA period counts as declared")

	f.invoice(core.ActivityService, core.EUR(500), core.NewDate(2024, 2, 3), paid(), withVAT(20), vatDeclared())
	sum, err = agg.Summarize(ctx, firstQuarter2024)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, sum.Count, sum.Urssaf.Count)
	assert.Equal(t, sum.Count, sum.Tva.Count)
	assert.False(t, sum.AllDeclared(core.KindURSSAF))
	assert.True(t, sum.AllDeclared(core.KindTVA))
}
