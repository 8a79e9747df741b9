package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/enrichment"
	"options-flow-lab/internal/observability"
	"options-flow-lab/internal/storage"
	"options-flow-lab/internal/thetadata"
)

// Runner polls the upstream feed for the current UTC day of each configured
// symbol, upserts the raw trades, and keeps enrichment current. It writes
// the same day-cache checkpoints as the query path, so queries and the
// poller never disagree about a day's completeness.
type Runner struct {
	client   *thetadata.Client
	raw      storage.RawTradeStore
	dayCache storage.DayCacheStore
	enricher *enrichment.Runner
	symbols  []string
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Client   *thetadata.Client
	RawStore storage.RawTradeStore
	DayCache storage.DayCacheStore
	Enricher *enrichment.Runner
	Symbols  []string
	Interval time.Duration // Default: 1 minute
	Logger   *log.Logger
}

// NewRunner creates a new ingest runner.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval == 0 {
		interval = 1 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		client:   opts.Client,
		raw:      opts.RawStore,
		dayCache: opts.DayCache,
		enricher: opts.Enricher,
		symbols:  opts.Symbols,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. The first cycle runs
// immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Starting ingest runner (symbols: %v, interval: %v)...", r.symbols, r.interval)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single poll cycle over all configured symbols.
// Per-symbol failures are recorded and do not abort the cycle.
func (r *Runner) RunOnce(ctx context.Context) {
	day := domain.DayFromMs(r.now().UnixMilli())

	ok := true
	for _, symbol := range r.symbols {
		if err := r.syncSymbol(ctx, symbol, day); err != nil {
			ok = false
			r.logger.Printf("[ingest] %s %s: %v", symbol, day, err)
		}
	}

	status := "ok"
	if !ok {
		status = "error"
	}
	observability.RecordIngestCycle(status)
}

// syncSymbol syncs one (symbol, day) and recomputes its enrichment across
// the full metric vocabulary.
func (r *Runner) syncSymbol(ctx context.Context, symbol, day string) error {
	endpoint := "hist/option/trade"

	trades, _, err := r.client.HistoricalTrades(ctx, symbol, day, 0)
	if err != nil {
		msg := err.Error()
		r.checkpoint(ctx, symbol, day, domain.CacheStatusPartial, 0, &msg, &endpoint)
		return fmt.Errorf("fetch trades: %w", err)
	}

	upserted, err := r.raw.Upsert(ctx, trades)
	if err != nil {
		msg := err.Error()
		r.checkpoint(ctx, symbol, day, domain.CacheStatusPartial, 0, &msg, &endpoint)
		return fmt.Errorf("upsert trades: %w", err)
	}

	cached, err := r.raw.CountBySymbolDay(ctx, symbol, day)
	if err != nil {
		return fmt.Errorf("count trades: %w", err)
	}
	r.checkpoint(ctx, symbol, day, domain.CacheStatusFull, cached, nil, &endpoint)

	rowCount, err := r.enricher.RunDay(ctx, symbol, day, domain.AllMetrics(), false)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	r.logger.Printf("[ingest] %s %s: fetched=%d upserted=%d enriched=%d",
		symbol, day, len(trades), upserted, rowCount)
	return nil
}

func (r *Runner) checkpoint(ctx context.Context, symbol, day, status string, rowCount int64, lastErr, endpoint *string) {
	entry := &domain.DayCacheEntry{
		Symbol:         symbol,
		Day:            day,
		Status:         status,
		RowCount:       rowCount,
		LastSyncAtMs:   r.now().UnixMilli(),
		LastError:      lastErr,
		SourceEndpoint: endpoint,
	}
	if err := r.dayCache.Upsert(ctx, entry); err != nil {
		observability.RecordDBError("day_cache")
		r.logger.Printf("[ingest] day cache write failed for %s %s: %v", symbol, day, err)
	}
}
