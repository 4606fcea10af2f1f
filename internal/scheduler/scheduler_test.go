package scheduler

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	applog "picocompta/internal/log"
	"picocompta/internal/services"
)

type fakeEngine struct {
	result fiscal.LiabilityResult
	err    error
	days   []core.Date
}

func (f *fakeEngine) Evaluate(_ context.Context, today core.Date) (fiscal.LiabilityResult, error) {
	f.days = append(f.days, today)
	return f.result, f.err
}

type fakeRates struct {
	calls int
	err   error
}

func (f *fakeRates) ApplyRateRevisions(context.Context) (int, error) {
	f.calls++
	return 0, f.err
}

type fakeHome struct{ summary services.HomeSummary }

func (f fakeHome) Home(context.Context, core.Date) (services.HomeSummary, error) {
	return f.summary, nil
}

type fakePending struct {
	invoices []core.Invoice
	limit    int
	attempts int
}

func (f *fakePending) PendingLedger(_ context.Context, limit, maxAttempts int) ([]core.Invoice, error) {
	f.limit, f.attempts = limit, maxAttempts
	return f.invoices, nil
}

type publishCall struct{ id, version int64 }

type fakePublisher struct {
	calls  []publishCall
	failID int64
}

func (f *fakePublisher) PublishLedgerSync(_ context.Context, id, version int64) error {
	if id == f.failID {
		return errors.New("broker down")
	}
	f.calls = append(f.calls, publishCall{id, version})
	return nil
}

func testConfig() Config {
	return Config{LiabilityCron: "0 7 * * *", ReminderCron: "0 8 * * 1", RepublishCron: "*/15 * * * *"}
}

func bufferLogger() (*applog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return applog.New(applog.Config{Format: "json", Output: &buf}), &buf
}

func today() core.Date { return core.NewDate(2024, 4, 10) }

func TestNewRejectsBadCron(t *testing.T) {
	cfg := testConfig()
	cfg.ReminderCron = "every monday"
	_, err := New(cfg, Jobs{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reminder")
}

func TestNewSchedulesRepublishOnlyWithPublisher(t *testing.T) {
	s, err := New(testConfig(), Jobs{}, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(testConfig(), Jobs{Publisher: &fakePublisher{}}, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 3)

	s.Start()
	<-s.Stop().Done()
}

func TestEvaluateLiability(t *testing.T) {
	engine := &fakeEngine{result: fiscal.LiabilityResult{Liable: true, JustTriggered: true, Trigger: fiscal.TriggerImmediateServices}}
	rates := &fakeRates{}
	logger, buf := bufferLogger()
	s, err := New(testConfig(), Jobs{Liability: engine, Rates: rates, Today: today}, logger)
	require.NoError(t, err)

	require.NoError(t, s.EvaluateLiability(context.Background()))
	assert.Equal(t, 1, rates.calls)
	assert.Equal(t, []core.Date{today()}, engine.days)
	assert.Contains(t, buf.String(), "VAT liability triggered")
	assert.Contains(t, buf.String(), string(fiscal.TriggerImmediateServices))
}

func TestEvaluateLiabilityStopsOnRevisionError(t *testing.T) {
	engine := &fakeEngine{}
	s, err := New(testConfig(), Jobs{Liability: engine, Rates: &fakeRates{err: errors.New("db locked")}, Today: today}, nil)
	require.NoError(t, err)

	assert.Error(t, s.EvaluateLiability(context.Background()))
	assert.Empty(t, engine.days)
}

func TestRemindPending(t *testing.T) {
	q1 := core.Period{Label: "T1", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 3, 31)}

	tests := []struct {
		name     string
		reminder *services.Reminder
		want     string
	}{
		{"nothing pending", &services.Reminder{Period: q1}, ""},
		{"no reminder period", nil, ""},
		{"urssaf pending", &services.Reminder{Period: q1, UrssafPending: 2}, "2024-03-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()
			s, err := New(testConfig(), Jobs{Insights: fakeHome{services.HomeSummary{Reminder: tt.reminder}}, Today: today}, logger)
			require.NoError(t, err)

			require.NoError(t, s.RemindPending(context.Background()))
			if tt.want == "" {
				assert.NotContains(t, buf.String(), "Declaration pending")
				return
			}
			assert.Contains(t, buf.String(), "Declaration pending")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestRepublishPending(t *testing.T) {
	pending := &fakePending{invoices: []core.Invoice{
		{ID: 1, LedgerVersion: 1},
		{ID: 2, LedgerVersion: 3},
		{ID: 3, LedgerVersion: 2},
	}}
	pub := &fakePublisher{failID: 2}
	cfg := testConfig()
	cfg.BatchSize, cfg.MaxRetries = 5, 4
	s, err := New(cfg, Jobs{Pending: pending, Publisher: pub}, nil)
	require.NoError(t, err)

	n, err := s.RepublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []publishCall{{1, 1}, {3, 2}}, pub.calls)
	assert.Equal(t, 5, pending.limit)
	assert.Equal(t, 4, pending.attempts)
}

func TestRepublishWithoutPublisher(t *testing.T) {
	s, err := New(testConfig(), Jobs{Pending: &fakePending{invoices: []core.Invoice{{ID: 1}}}}, nil)
	require.NoError(t, err)
	n, err := s.RepublishPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
