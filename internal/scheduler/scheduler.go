// Package scheduler runs the periodic fiscal jobs: VAT liability evaluation,
// pending-declaration reminders and ledger sync republishing.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	applog "picocompta/internal/log"
	"picocompta/internal/services"
)

type (
	LiabilityEvaluator interface {
		Evaluate(ctx context.Context, today core.Date) (fiscal.LiabilityResult, error)
	}

	RateReviser interface {
		ApplyRateRevisions(ctx context.Context) (int, error)
	}

	HomeReporter interface {
		Home(ctx context.Context, today core.Date) (services.HomeSummary, error)
	}

	PendingLister interface {
		PendingLedger(ctx context.Context, limit, maxAttempts int) ([]core.Invoice, error)
	}
)

// Config holds the cron expressions, in standard five-field form.
type Config struct {
	LiabilityCron string
	ReminderCron  string
	// RepublishCron is ignored when Jobs.Publisher is nil.
	RepublishCron string
	BatchSize     int
	MaxRetries    int
}

type Jobs struct {
	Liability LiabilityEvaluator
	Rates     RateReviser
	Insights  HomeReporter
	Pending   PendingLister
	Publisher services.LedgerPublisher
	Today     func() core.Date
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	cfg    Config
	logger *applog.Logger
}

func New(cfg Config, jobs Jobs, logger *applog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if jobs.Today == nil {
		jobs.Today = services.Today
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = services.DefaultLedgerSyncConfig().BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = services.DefaultLedgerSyncConfig().MaxRetries
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger))),
		jobs:   jobs,
		cfg:    cfg,
		logger: logger.WithComponent(applog.ComponentScheduler),
	}

	entries := []job{
		{"liability", cfg.LiabilityCron, s.EvaluateLiability},
		{"reminder", cfg.ReminderCron, s.RemindPending},
	}
	if jobs.Publisher != nil {
		entries = append(entries, job{"republish", cfg.RepublishCron, func(ctx context.Context) error {
			_, err := s.RepublishPending(ctx)
			return err
		}})
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.spec, s.wrap(e.name, e.run)); err != nil {
			return nil, fmt.Errorf("schedule %s job %q: %w", e.name, e.spec, err)
		}
	}
	return s, nil
}

type job struct {
	name string
	spec string
	run  func(context.Context) error
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx := context.Background()
		s.logger.Debug("Scheduled job started", "job", name)
		if err := run(ctx); err != nil {
			s.logger.Error("Scheduled job failed", "job", name, applog.FieldError, err)
		}
	}
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the loop. The returned context is done once running jobs end.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// EvaluateLiability applies pending URSSAF rate revisions, then runs the VAT
// liability engine for today.
func (s *Scheduler) EvaluateLiability(ctx context.Context) error {
	if s.jobs.Rates != nil {
		if _, err := s.jobs.Rates.ApplyRateRevisions(ctx); err != nil {
			return err
		}
	}
	res, err := s.jobs.Liability.Evaluate(ctx, s.jobs.Today())
	if err != nil {
		return err
	}
	switch {
	case res.JustTriggered:
		s.logger.Warn("VAT liability triggered",
			applog.FieldOperation, applog.OpEvaluate,
			"trigger", res.Trigger)
	case res.Liable && res.MissingVATNumber:
		s.logger.Warn("VAT liable without an intra-community VAT number")
	default:
		s.logger.Info("VAT liability evaluated", "liable", res.Liable)
	}
	return nil
}

// RemindPending logs the invoices still to declare for the period that just
// closed.
func (s *Scheduler) RemindPending(ctx context.Context) error {
	home, err := s.jobs.Insights.Home(ctx, s.jobs.Today())
	if err != nil {
		return err
	}
	r := home.Reminder
	if r == nil || (r.UrssafPending == 0 && r.TvaPending == 0) {
		s.logger.Debug("No pending declaration")
		return nil
	}
	s.logger.Warn("Declaration pending",
		applog.FieldPeriodStart, r.Period.Start.ISO(),
		applog.FieldPeriodEnd, r.Period.End.ISO(),
		"urssaf_invoices", r.UrssafPending,
		"tva_invoices", r.TvaPending)
	return nil
}

// RepublishPending publishes a sync message for every invoice whose ledger
// state is behind, covering messages lost while the broker was down.
func (s *Scheduler) RepublishPending(ctx context.Context) (int, error) {
	if s.jobs.Publisher == nil {
		return 0, nil
	}
	pending, err := s.jobs.Pending.PendingLedger(ctx, s.cfg.BatchSize, s.cfg.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("list pending ledger invoices: %w", err)
	}
	n := 0
	for _, inv := range pending {
		if err := s.jobs.Publisher.PublishLedgerSync(ctx, inv.ID, inv.LedgerVersion); err != nil {
			s.logger.WarnContext(ctx, "Republish failed", applog.FieldInvoiceID, inv.ID, applog.FieldError, err)
			continue
		}
		n++
	}
	if n > 0 {
		s.logger.Info("Pending ledger syncs republished", applog.FieldAffected, n)
	}
	return n, nil
}
