package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
)

func TestCeilings(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, func(in *ProfileInput) {
		in.CarryoverSalesRevenue = core.EUR(12000)
	})
	_, err := e.invoices.Create(ctx, e.draft("BIC marchandise", 345))
	require.NoError(t, err)
	_, err = e.invoices.Create(ctx, e.draft("BNC", 80000))
	require.NoError(t, err)

	svc := NewInsightsService(e.store, e.invoices)
	c, err := svc.Ceilings(ctx, core.NewDate(2024, 6, 1))
	require.NoError(t, err)

	assert.Equal(t, core.EUR(12345), c.Sales.Amount)
	assert.Equal(t, "12,345.00€ / 188,700€", c.Sales.Label)
	assert.InDelta(t, 6.54, c.Sales.Percent, 0.01)

	assert.Equal(t, 100.0, c.Services.Percent, "capped at 100")
	assert.Equal(t, "80,000.00€ / 77,700€", c.Services.Label)
	assert.Equal(t, fiscal.VATServicesThreshold, c.VATServices.Limit)
	assert.Equal(t, core.EUR(92345), c.Mixed.Amount)
	assert.Equal(t, SalesCeiling, c.Mixed.Limit)
}

func TestClientStats(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	other, err := e.clients.Create(ctx, ClientInput{Name: "Atelier Roux", Address: "1 quai", PostalCode: "13002", Country: "France"})
	require.NoError(t, err)

	create := func(client int64, euros int64, issued, paidOn *core.Date) {
		d := e.draft("BIC service", euros)
		d.ClientID = client
		d.IssueDate = issued
		inv, err := e.invoices.Create(ctx, d)
		require.NoError(t, err)
		if paidOn != nil {
			_, err = e.invoices.MarkPaid(ctx, inv.ID, *paidOn)
			require.NoError(t, err)
		}
	}
	create(e.client.ID, 5000, dateRef(2023, 6, 1), dateRef(2023, 6, 11))
	create(e.client.ID, 100, dateRef(2024, 4, 2), dateRef(2024, 4, 12))
	create(other.ID, 900, dateRef(2024, 5, 1), dateRef(2024, 6, 10))
	create(other.ID, 50, dateRef(2024, 5, 3), nil)

	stats, err := NewInsightsService(e.store, nil).ClientStats(ctx, core.NewDate(2024, 6, 15))
	require.NoError(t, err)

	require.NotNil(t, stats.BestOfQuarter)
	assert.Equal(t, other.ID, stats.BestOfQuarter.ClientID)
	assert.Equal(t, core.EUR(950), stats.BestOfQuarter.Amount)

	require.NotNil(t, stats.BestAllTime)
	assert.Equal(t, e.client.ID, stats.BestAllTime.ClientID)
	assert.Equal(t, core.EUR(5100), stats.BestAllTime.Amount)

	require.NotNil(t, stats.SlowestPayer)
	assert.Equal(t, "Atelier Roux", stats.SlowestPayer.Name)
	assert.Equal(t, 40.0, stats.SlowestPayer.AverageDays)
}

func TestClientStatsEmpty(t *testing.T) {
	e := newEnv(t)
	stats, err := NewInsightsService(e.store, nil).ClientStats(context.Background(), core.NewDate(2024, 6, 15))
	require.NoError(t, err)
	assert.Nil(t, stats.BestOfQuarter)
	assert.Nil(t, stats.BestAllTime)
	assert.Nil(t, stats.SlowestPayer)
}

func TestHome(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, func(in *ProfileInput) {
		in.ActivityStartDate = dateRef(2023, 1, 1)
	})

	d := e.draft("BIC service", 300)
	d.IssueDate = dateRef(2024, 4, 10)
	paidInv, err := e.invoices.Create(ctx, d)
	require.NoError(t, err)
	_, err = e.invoices.MarkPaid(ctx, paidInv.ID, core.NewDate(2024, 4, 20))
	require.NoError(t, err)
	_, err = e.invoices.Create(ctx, e.draft("BIC service", 50))
	require.NoError(t, err)

	home, err := NewInsightsService(e.store, e.invoices).Home(ctx, core.NewDate(2024, 5, 15))
	require.NoError(t, err)
	assert.True(t, home.HasUnpaidInvoices)
	assert.False(t, home.Liability.Liable)
	require.NotNil(t, home.Reminder)
	assert.Equal(t, "2ème Trimestre", home.Reminder.Period.Label)
	assert.Equal(t, 1, home.Reminder.UrssafPending)
	assert.Zero(t, home.Reminder.TvaPending, "not VAT liable")
}

func TestHomeTriggersLiability(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, func(in *ProfileInput) {
		in.ActivityStartDate = dateRef(2024, 1, 1)
		in.CarryoverServiceRevenue = core.EUR(39000)
	})
	_, err := e.invoices.Create(ctx, e.draft("BIC service", 200))
	require.NoError(t, err)

	home, err := NewInsightsService(e.store, e.invoices).Home(ctx, core.NewDate(2024, 5, 15))
	require.NoError(t, err)
	assert.True(t, home.Liability.JustTriggered)
	assert.True(t, home.Liability.MissingVATNumber)

	pi, err := e.profiles.Get(ctx)
	require.NoError(t, err)
	assert.True(t, pi.VATLiable)
}
