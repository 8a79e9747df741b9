package histquery

import (
	"context"
	"errors"
	"log"
	"time"

	"options-flow-lab/internal/chips"
	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/enrichment"
	"options-flow-lab/internal/observability"
	"options-flow-lab/internal/storage"
	"options-flow-lab/internal/thetadata"
)

// Stores groups the storage dependencies of the query engine.
type Stores struct {
	Raw         storage.RawTradeStore
	DayCache    storage.DayCacheStore
	MetricCache storage.MetricCacheStore
	Enriched    storage.EnrichedTradeStore
}

// Engine serves historical flow queries: ensure the day's raw trades are
// synced, ensure enrichment covers the query's required metrics, then
// filter and paginate the enriched rows.
type Engine struct {
	stores Stores
	chips  *chips.Engine
	runner *enrichment.Runner
	client *thetadata.Client
	logger *log.Logger
	now    func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(stores Stores, chipEngine *chips.Engine, runner *enrichment.Runner, client *thetadata.Client, logger *log.Logger) *Engine {
	return &Engine{
		stores: stores,
		chips:  chipEngine,
		runner: runner,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// EnrichDiag describes what a query's enrichment step did.
type EnrichDiag struct {
	Ran      bool   `json:"synced"`
	Forced   bool   `json:"forced,omitempty"` // recompute forced by a failed metric check
	RowCount int64  `json:"rowCount"`
	Reason   string `json:"reason,omitempty"`
}

// Diagnostics accompanies every successful query result.
type Diagnostics struct {
	Sync       *SyncDiag   `json:"sync,omitempty"`
	Enrichment *EnrichDiag `json:"enrichment,omitempty"`
}

// Result is a successful query response.
type Result struct {
	Rows        []*domain.EnrichedTrade `json:"data"`
	Total       int64                   `json:"total"` // matching rows before pagination
	Diagnostics Diagnostics             `json:"diagnostics"`
}

// Query answers a historical flow query for a single UTC day.
//
// The flow is: validate, resolve the required metric set, sync the day's raw
// trades if the day cache is missing or partial, enrich if anything synced or
// the enriched rows are incomplete, verify the metric cache (with exactly one
// forced recompute if the first check fails cold), then filter and paginate.
func (e *Engine) Query(ctx context.Context, params QueryParams) (*Result, *Error) {
	start := e.now()
	result, qerr := e.query(ctx, params)
	code := "ok"
	if qerr != nil {
		code = qerr.Code
	}
	observability.RecordQuery(code, e.now().Sub(start))
	return result, qerr
}

func (e *Engine) query(ctx context.Context, params QueryParams) (*Result, *Error) {
	n, qerr := normalize(params, e.chips)
	if qerr != nil {
		return nil, qerr
	}
	required := n.requiredMetrics(e.chips)

	diag := Diagnostics{}

	// Day cache: decide whether raw trades need syncing.
	dayStatus := domain.CacheStatusPartial
	entry, err := e.stores.DayCache.Get(ctx, n.Symbol, n.Day)
	switch {
	case err == nil:
		dayStatus = entry.Status
	case errors.Is(err, storage.ErrNotFound):
		// never synced
	default:
		observability.RecordDBError("day_cache")
		return nil, NewError(CodeDBUnavailable, "read day cache for %s %s: %v", n.Symbol, n.Day, err)
	}

	synced := false
	if dayStatus != domain.CacheStatusFull {
		reason := "partial_cache"
		if entry == nil {
			reason = "never_synced"
		}
		fetchLimit := 0
		if n.LimitExplicit {
			fetchLimit = n.Limit
		}
		sync, qerr := e.syncDay(ctx, n.Symbol, n.Day, reason, fetchLimit)
		if qerr != nil {
			return nil, qerr
		}
		diag.Sync = sync
		dayStatus = sync.CacheStatus
		synced = true
	}

	// Enrich when fresh raw rows arrived or the enriched row set is not
	// known complete.
	forcePartial := dayStatus != domain.CacheStatusFull
	needEnrich := synced
	if !needEnrich {
		rowsEntry, err := e.stores.MetricCache.Get(ctx, n.Symbol, n.Day, domain.MetricEnrichedRows)
		switch {
		case err == nil:
			needEnrich = rowsEntry.Status != domain.CacheStatusFull
		case errors.Is(err, storage.ErrNotFound):
			needEnrich = true
		default:
			observability.RecordDBError("metric_cache")
			return nil, NewError(CodeDBUnavailable, "read metric cache for %s %s: %v", n.Symbol, n.Day, err)
		}
	}

	if needEnrich {
		reason := "stale_enrichment"
		if synced {
			reason = "fresh_sync"
		}
		enrichDiag, qerr := e.enrichDay(ctx, n.Symbol, n.Day, required, forcePartial, false, reason)
		if qerr != nil {
			return nil, qerr
		}
		diag.Enrichment = enrichDiag
	}

	// Metric check. An incomplete metric gets exactly one forced recompute,
	// and only if this query has not already enriched the day: re-running
	// the same pass twice cannot produce a different answer.
	missing, qerr := e.missingMetrics(ctx, n.Symbol, n.Day, required)
	if qerr != nil {
		return nil, qerr
	}
	if len(missing) > 0 && !needEnrich {
		enrichDiag, qerr := e.enrichDay(ctx, n.Symbol, n.Day, required, forcePartial, true, "metric_check_retry")
		if qerr != nil {
			return nil, qerr
		}
		diag.Enrichment = enrichDiag
		missing, qerr = e.missingMetrics(ctx, n.Symbol, n.Day, required)
		if qerr != nil {
			return nil, qerr
		}
	}
	if len(missing) > 0 {
		err := NewError(CodeMetricUnavailable, "required metrics unavailable for %s %s", n.Symbol, n.Day)
		err.Details = map[string]interface{}{"metrics": missing}
		return nil, err
	}

	rows, err := e.stores.Enriched.GetBySymbolDay(ctx, n.Symbol, n.Day)
	if err != nil {
		observability.RecordDBError("enriched_trades")
		return nil, NewError(CodeQueryFailed, "read enriched trades for %s %s: %v", n.Symbol, n.Day, err)
	}

	matched := make([]*domain.EnrichedTrade, 0, len(rows))
	for _, row := range rows {
		if row.TradeTsMs < n.FromMs || row.TradeTsMs > n.ToMs {
			continue
		}
		if n.matches(row) {
			matched = append(matched, row)
		}
	}

	result := &Result{
		Total:       int64(len(matched)),
		Diagnostics: diag,
	}
	if len(matched) > n.Limit {
		matched = matched[:n.Limit]
	}
	result.Rows = matched
	return result, nil
}

// enrichDay runs a full-day enrichment pass and wraps failures in the
// engine's error taxonomy.
func (e *Engine) enrichDay(ctx context.Context, symbol, day string, required []string, forcePartial, forced bool, reason string) (*EnrichDiag, *Error) {
	rowCount, err := e.runner.RunDay(ctx, symbol, day, required, forcePartial)
	if err != nil {
		return nil, NewError(CodeEnrichmentFailed, "enrich %s %s: %v", symbol, day, err)
	}
	return &EnrichDiag{Ran: true, Forced: forced, RowCount: rowCount, Reason: reason}, nil
}

// missingMetrics returns cache-status details for every required metric not
// known full: {status, rowCount, lastError} per metric, "absent" when the
// cache row does not exist.
func (e *Engine) missingMetrics(ctx context.Context, symbol, day string, required []string) (map[string]interface{}, *Error) {
	entries, err := e.stores.MetricCache.GetAll(ctx, symbol, day)
	if err != nil {
		observability.RecordDBError("metric_cache")
		return nil, NewError(CodeDBUnavailable, "read metric cache for %s %s: %v", symbol, day, err)
	}
	byName := make(map[string]*domain.MetricCacheEntry, len(entries))
	for _, entry := range entries {
		byName[entry.MetricName] = entry
	}

	missing := make(map[string]interface{})
	for _, metric := range required {
		entry, ok := byName[metric]
		if !ok {
			missing[metric] = map[string]interface{}{"status": "absent"}
			continue
		}
		if entry.Status == domain.CacheStatusFull {
			continue
		}
		detail := map[string]interface{}{
			"status":   entry.Status,
			"rowCount": entry.RowCount,
		}
		if entry.LastError != nil {
			detail["lastError"] = *entry.LastError
		}
		missing[metric] = detail
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return missing, nil
}
