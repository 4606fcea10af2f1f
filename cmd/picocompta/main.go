package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"picocompta/internal/amqp"
	"picocompta/internal/backend"
	"picocompta/internal/cache"
	"picocompta/internal/cli"
	apphttp "picocompta/internal/http"
	"picocompta/internal/invoicepdf"
	"picocompta/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap("picocompta")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.Logger).Open(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open backend", err, "store", backendCfg.Store, "ledger", backendCfg.Ledger)
	}
	defer res.Close()

	// With a broker, payment changes are published and cmd/ledger-worker
	// writes the ledger. Without one, the server sweeps pending invoices itself.
	var (
		publisher  services.LedgerPublisher
		amqpClient *amqp.Client
	)
	if cfg.UsesAMQP() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, falling back to in-process ledger sync", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP client initialized, ledger sync delegated to ledger-worker")
		}
	}

	var processor *services.LedgerSyncProcessor
	if publisher == nil && res.Ledger != nil {
		processor = services.NewLedgerSyncProcessor(res.Store,
			services.NewLedgerSyncer(res.Store, res.Ledger),
			services.LedgerSyncConfig{
				PollInterval: cfg.SyncInterval,
				BatchSize:    cfg.SyncBatchSize,
				MaxRetries:   cfg.SyncMaxRetries,
			})
	}

	pdf := invoicepdf.NewGenerator(res.Store, invoicepdf.NewRenderer(), invoicepdf.GeneratorConfig{
		OutputDir: cfg.PDFOutputDir,
		CacheSize: cfg.PDFCacheSize,
		CacheTTL:  cfg.PDFCacheTTL,
	})
	caches := cache.NewManager()
	caches.Register(pdf.Cache())
	caches.StartCleanup(cfg.PDFCacheTTL)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		RateLimit: cfg.HTTPRateLimit,
	}, apphttp.NewServices(res.Store, publisher, pdf), logger)
	if err != nil {
		cli.Fatal(logger, "Failed to create HTTP server", err)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Warn("Ledger sync processor stop error", "error", err)
			}
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		requests, suspicious, limited := srv.Metrics()
		logger.Info("Server metrics",
			"requests", requests.TotalRequests,
			"server_errors", requests.ServerErrors,
			"suspicious", suspicious,
			"rate_limited", limited)
	})

	g, gctx := errgroup.WithContext(ctx)
	if processor != nil {
		if err := processor.Start(gctx); err != nil {
			cli.Fatal(logger, "Failed to start ledger sync processor", err)
		}
	}
	g.Go(func() error {
		logger.Info("Starting picocompta server",
			"port", cfg.Port,
			"store", backendCfg.Store,
			"ledger", backendCfg.Ledger,
			"amqp", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
