package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"picocompta/internal/amqp"
	"picocompta/internal/backend"
	"picocompta/internal/cli"
	"picocompta/internal/services"
	"picocompta/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("ledger-worker")
	logger.Info("Starting ledger-worker")

	if !cfg.UsesAMQP() {
		cli.Fatal(logger, "AMQP is required", errors.New("AMQP_URL is not set"))
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.Logger).Open(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open backend", err, "store", backendCfg.Store, "ledger", backendCfg.Ledger)
	}
	defer res.Close()
	if res.Ledger == nil {
		cli.Fatal(logger, "A receipts ledger is required", errors.New("LEDGER_BACKEND is none"))
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	w := worker.NewLedgerWorker(res.Store, res.Ledger, services.LedgerSyncConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
	})

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check...")
	w.StartupSyncCheck(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeLedgerSync(gctx, w.HandleSyncMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := w.ProcessPending(gctx); n > 0 {
					logger.Info("Periodic ledger sweep synced invoices", "synced", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Message consumption failed", err)
	}
	<-done
	logger.Info("Ledger worker stopped")
}
