package main

import (
	"context"
	"time"

	"picocompta/internal/amqp"
	"picocompta/internal/backend"
	"picocompta/internal/cli"
	"picocompta/internal/fiscal"
	"picocompta/internal/scheduler"
	"picocompta/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap("fiscal-scheduler")

	// The scheduler never writes the ledger itself.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger.Logger)
	st, err := factory.OpenStore(backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open store", err, "store", backendCfg.Store)
	}
	defer st.Close()

	jobs := scheduler.Jobs{
		Liability: fiscal.NewLiabilityEngine(st),
		Pending:   st,
	}
	if cfg.UsesAMQP() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, republish job disabled", "error", err)
		} else {
			defer amqpClient.Close()
			jobs.Publisher = amqpClient
		}
	}
	invoices := services.NewInvoiceService(st, jobs.Publisher)
	jobs.Rates = invoices
	jobs.Insights = services.NewInsightsService(st, invoices)

	s, err := scheduler.New(scheduler.Config{
		LiabilityCron: cfg.LiabilityCron,
		ReminderCron:  cfg.ReminderCron,
		RepublishCron: cfg.LedgerRepublishCron,
		BatchSize:     cfg.SyncBatchSize,
		MaxRetries:    cfg.SyncMaxRetries,
	}, jobs, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to schedule jobs", err)
	}

	_, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		select {
		case <-s.Stop().Done():
		case <-ctx.Done():
		}
	})

	if err := s.EvaluateLiability(context.Background()); err != nil {
		logger.Error("Initial liability evaluation failed", "error", err)
	}
	s.Start()

	<-done
	logger.Info("Fiscal scheduler stopped")
}
