package enrichment

import (
	"context"
	"fmt"
	"log"
	"time"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/observability"
	"options-flow-lab/internal/storage"
)

// Stores groups the storage dependencies of a day enrichment run.
type Stores struct {
	Raw             storage.RawTradeStore
	Enriched        storage.EnrichedTradeStore
	MetricCache     storage.MetricCacheStore
	ContractStats   storage.ContractStatsStore
	SymbolRollups   storage.SymbolRollupStore
	ContractRollups storage.ContractRollupStore
}

// Runner orchestrates a full-day enrichment: read ordered raw trades,
// resolve supplements, build, persist derived rows and completeness.
type Runner struct {
	stores   Stores
	resolver *Resolver
	builder  *Builder
	logger   *log.Logger
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(stores Stores, resolver *Resolver, builder *Builder, logger *log.Logger) *Runner {
	return &Runner{
		stores:   stores,
		resolver: resolver,
		builder:  builder,
		logger:   logger,
		now:      time.Now,
	}
}

// RunDay recomputes the entire day's enrichment. requiredMetrics gates the
// supplemental resolution work; forcePartial marks every metric partial
// regardless of row content (limited raw sync). Returns the enriched row
// count.
//
// On failure every metric cache row for the day is marked partial with the
// error recorded, leaving the day safely retriable.
func (r *Runner) RunDay(ctx context.Context, symbol, day string, requiredMetrics []string, forcePartial bool) (int64, error) {
	start := r.now()

	rowCount, err := r.runDay(ctx, symbol, day, requiredMetrics, forcePartial)
	if err != nil {
		observability.RecordEnrichment("error", r.now().Sub(start))
		msg := err.Error()
		failed := MetricStatuses(symbol, day, nil, true, r.now().UnixMilli(), &msg)
		if cacheErr := r.stores.MetricCache.UpsertBatch(ctx, failed); cacheErr != nil {
			r.logger.Printf("[enrichment] metric cache error write failed for %s %s: %v", symbol, day, cacheErr)
		}
		return 0, err
	}

	observability.RecordEnrichment("ok", r.now().Sub(start))
	return rowCount, nil
}

func (r *Runner) runDay(ctx context.Context, symbol, day string, requiredMetrics []string, forcePartial bool) (int64, error) {
	trades, err := r.stores.Raw.GetBySymbolDay(ctx, symbol, day)
	if err != nil {
		return 0, fmt.Errorf("read raw trades: %w", err)
	}

	needSpot, needOI := supplementNeeds(requiredMetrics)
	sup := r.resolver.Resolve(ctx, symbol, day, trades, needSpot, needOI)

	nowMs := r.now().UnixMilli()
	result := r.builder.Build(BuildInput{
		Symbol:  symbol,
		Day:     day,
		Trades:  trades,
		Sup:     sup,
		BuiltAt: nowMs,
	})

	if err := r.stores.Enriched.ReplaceDay(ctx, symbol, day, result.Rows); err != nil {
		return 0, fmt.Errorf("replace enriched rows: %w", err)
	}
	if err := r.stores.ContractStats.ReplaceDay(ctx, symbol, day, result.Stats); err != nil {
		return 0, fmt.Errorf("replace contract stats: %w", err)
	}
	if err := r.stores.SymbolRollups.ReplaceDay(ctx, symbol, day, result.SymbolRollups); err != nil {
		return 0, fmt.Errorf("replace symbol rollups: %w", err)
	}
	if err := r.stores.ContractRollups.ReplaceDay(ctx, symbol, day, result.ContractRollups); err != nil {
		return 0, fmt.Errorf("replace contract rollups: %w", err)
	}

	statuses := MetricStatuses(symbol, day, result.Rows, forcePartial, nowMs, nil)
	if err := r.stores.MetricCache.UpsertBatch(ctx, statuses); err != nil {
		return 0, fmt.Errorf("write metric cache: %w", err)
	}

	return int64(len(result.Rows)), nil
}

// supplementNeeds derives the spot/OI fetch gates from the required metric
// set. Unrequired supplements are never fetched.
func supplementNeeds(requiredMetrics []string) (needSpot, needOI bool) {
	for _, m := range requiredMetrics {
		switch m {
		case domain.MetricSpot, domain.MetricOtmPct:
			needSpot = true
		case domain.MetricOI, domain.MetricVolOiRatio:
			needOI = true
		}
	}
	return needSpot, needOI
}
