package invoicepdf

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"picocompta/internal/cache"
	"picocompta/internal/core"
)

// Source loads what an invoice PDF prints.
type Source interface {
	GetInvoice(ctx context.Context, id int64) (core.Invoice, error)
	GetClient(ctx context.Context, id int64) (core.Client, error)
	LoadPersonalInfo(ctx context.Context) (core.PersonalInfo, error)
}

type Rendered struct {
	FileName string
	Data     []byte
}

// Generator renders invoices, caching the bytes per invoice revision.
type Generator struct {
	source    Source
	renderer  Renderer
	lru       *cache.LRUCache[Rendered]
	loader    *cache.Loader[Rendered]
	outputDir string
}

type GeneratorConfig struct {
	OutputDir string
	CacheSize int
	CacheTTL  time.Duration
}

func NewGenerator(src Source, r Renderer, cfg GeneratorConfig) *Generator {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 32
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	lru := cache.NewLRUCache[Rendered](cfg.CacheSize, cfg.CacheTTL)
	return &Generator{
		source:    src,
		renderer:  r,
		lru:       lru,
		loader:    cache.NewLoader[Rendered](lru),
		outputDir: cfg.OutputDir,
	}
}

// Cache exposes the render cache for periodic cleanup.
func (g *Generator) Cache() *cache.LRUCache[Rendered] {
	return g.lru
}

// Generate renders invoice id. Renders are keyed on a digest of the laid out
// document, so an edit to the invoice, its client or the profile is never
// served stale. A new render drops older renders of the same invoice.
func (g *Generator) Generate(ctx context.Context, id int64) (Rendered, error) {
	inv, err := g.source.GetInvoice(ctx, id)
	if err != nil {
		return Rendered{}, fmt.Errorf("load invoice %d: %w", id, err)
	}
	client, err := g.source.GetClient(ctx, inv.ClientID)
	if err != nil {
		return Rendered{}, fmt.Errorf("load client %d: %w", inv.ClientID, err)
	}
	pi, err := g.source.LoadPersonalInfo(ctx)
	if err != nil {
		return Rendered{}, fmt.Errorf("load profile: %w", err)
	}
	doc := BuildDocument(inv, client, pi)
	sum, err := digest(doc)
	if err != nil {
		return Rendered{}, err
	}
	prefix := fmt.Sprintf("invoice:%d:", inv.ID)

	return g.loader.GetOrLoad(ctx, prefix+sum, func(ctx context.Context) (Rendered, error) {
		data, err := g.renderer.Render(doc)
		if err != nil {
			return Rendered{}, err
		}
		if n := g.lru.DeletePrefix(prefix); n > 0 {
			slog.DebugContext(ctx, "Stale invoice renders dropped", "invoice_id", inv.ID, "count", n)
		}
		slog.InfoContext(ctx, "Invoice PDF rendered",
			"invoice_id", inv.ID,
			"number", inv.Number,
			"bytes", len(data))
		return Rendered{FileName: doc.FileName, Data: data}, nil
	})
}

func digest(doc Document) (string, error) {
	h := fnv.New64a()
	if err := json.NewEncoder(h).Encode(doc); err != nil {
		return "", fmt.Errorf("digest document: %w", err)
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// Save renders invoice id into the output directory and returns the path.
// It does nothing and returns an empty path when no directory is configured.
func (g *Generator) Save(ctx context.Context, id int64) (string, error) {
	if g.outputDir == "" {
		return "", nil
	}
	r, err := g.Generate(ctx, id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(g.outputDir, r.FileName)
	if err := os.WriteFile(path, r.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
