package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"picocompta/internal/core"
)

// LedgerSyncConfig holds configuration for the ledger sync processor
type LedgerSyncConfig struct {
	// PollInterval is how often to check for pending invoices (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of invoices to sync per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts after which an invoice is
	// left out of the sweep (default: 3)
	MaxRetries int
}

func DefaultLedgerSyncConfig() LedgerSyncConfig {
	return LedgerSyncConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// PendingLedgerStore is the part of the store the sweep needs.
type PendingLedgerStore interface {
	PendingLedger(ctx context.Context, limit, maxAttempts int) ([]core.Invoice, error)
	MarkLedgerSyncFailed(ctx context.Context, id int64) error
}

// InvoiceSyncer syncs one invoice to the ledger.
type InvoiceSyncer interface {
	SyncInvoice(ctx context.Context, inv core.Invoice) error
}

// LedgerSyncProcessor periodically pushes pending invoices to the ledger. It
// runs in-process when no message broker is configured.
type LedgerSyncProcessor struct {
	store  PendingLedgerStore
	syncer InvoiceSyncer
	config LedgerSyncConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewLedgerSyncProcessor(s PendingLedgerStore, syncer InvoiceSyncer, config LedgerSyncConfig) *LedgerSyncProcessor {
	def := DefaultLedgerSyncConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	return &LedgerSyncProcessor{
		store:  s,
		syncer: syncer,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *LedgerSyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("ledger sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Ledger sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *LedgerSyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Ledger sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Ledger sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *LedgerSyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *LedgerSyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch syncs one batch of pending invoices and returns how many
// succeeded.
func (p *LedgerSyncProcessor) ProcessBatch(ctx context.Context) int {
	pending, err := p.store.PendingLedger(ctx, p.config.BatchSize, p.config.MaxRetries)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending ledger invoices", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing ledger batch", "count", len(pending))

	synced := 0
	for _, inv := range pending {
		select {
		case <-p.stopCh:
			return synced
		case <-ctx.Done():
			return synced
		default:
		}

		if err := p.syncer.SyncInvoice(ctx, inv); err != nil {
			p.handleFailure(ctx, inv, err)
			continue
		}
		synced++
	}
	return synced
}

func (p *LedgerSyncProcessor) handleFailure(ctx context.Context, inv core.Invoice, syncErr error) {
	attempt := inv.LedgerSyncAttempts + 1
	slog.WarnContext(ctx, "Ledger sync failed",
		"invoice_id", inv.ID,
		"attempt", attempt,
		"error", syncErr)

	if err := p.store.MarkLedgerSyncFailed(ctx, inv.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to record ledger sync failure",
			"invoice_id", inv.ID, "error", err)
	}
	if attempt >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Ledger sync failed permanently after max retries",
			"invoice_id", inv.ID,
			"number", inv.Number,
			"attempts", attempt)
	}
}
