package histquery

import (
	"context"
	"errors"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/observability"
	"options-flow-lab/internal/thetadata"
)

// SyncDiag describes what a query's sync step did, for response diagnostics.
type SyncDiag struct {
	Synced       bool   `json:"synced"`
	Reason       string `json:"reason,omitempty"`
	FetchedRows  int64  `json:"fetchedRows"`
	UpsertedRows int64  `json:"upsertedRows"`
	CachedRows   int64  `json:"cachedRows"`
	CacheStatus  string `json:"cacheStatus"`
}

// syncDay pulls the day's raw trades from upstream and records the outcome
// in the day cache. A positive fetchLimit bounds the upstream fetch and
// downgrades the cache status to partial even on success, so a limited sync
// is never mistaken for a complete day. Every attempt updates the cache
// entry, success or not, leaving a failing day partial and retriable rather
// than poisoned.
func (e *Engine) syncDay(ctx context.Context, symbol, day, reason string, fetchLimit int) (*SyncDiag, *Error) {
	if !e.client.Configured() {
		return nil, NewError(CodeNotConfigured, "thetadata base URL is not configured")
	}

	start := e.now()
	diag := &SyncDiag{Synced: true, Reason: reason}
	endpoint := "hist/option/trade"

	trades, truncated, err := e.client.HistoricalTrades(ctx, symbol, day, fetchLimit)
	if err != nil {
		observability.RecordSync("error", e.now().Sub(start), 0, 0)
		msg := err.Error()
		e.writeDayCache(ctx, symbol, day, domain.CacheStatusPartial, 0, &msg, &endpoint)
		if errors.Is(err, thetadata.ErrNotConfigured) {
			return nil, NewError(CodeNotConfigured, "thetadata base URL is not configured")
		}
		return nil, NewError(CodeSyncFailed, "historical trade fetch for %s %s: %v", symbol, day, err)
	}
	diag.FetchedRows = int64(len(trades))

	upserted, err := e.stores.Raw.Upsert(ctx, trades)
	if err != nil {
		observability.RecordSync("error", e.now().Sub(start), diag.FetchedRows, 0)
		observability.RecordDBError("raw_trades")
		msg := err.Error()
		e.writeDayCache(ctx, symbol, day, domain.CacheStatusPartial, 0, &msg, &endpoint)
		return nil, NewError(CodeDBUnavailable, "persist raw trades for %s %s: %v", symbol, day, err)
	}
	diag.UpsertedRows = upserted

	cached, err := e.stores.Raw.CountBySymbolDay(ctx, symbol, day)
	if err != nil {
		observability.RecordDBError("raw_trades")
		return nil, NewError(CodeDBUnavailable, "count raw trades for %s %s: %v", symbol, day, err)
	}
	diag.CachedRows = cached

	status := domain.CacheStatusFull
	if fetchLimit > 0 || truncated {
		status = domain.CacheStatusPartial
	}
	diag.CacheStatus = status
	e.writeDayCache(ctx, symbol, day, status, cached, nil, &endpoint)

	observability.RecordSync("ok", e.now().Sub(start), diag.FetchedRows, upserted)
	e.logger.Printf("[histquery] synced %s %s: fetched=%d upserted=%d cached=%d status=%s",
		symbol, day, diag.FetchedRows, upserted, cached, status)
	return diag, nil
}

// writeDayCache records a sync attempt. Cache write failures are logged,
// not propagated: the raw rows are already safe and the next query will
// simply re-sync.
func (e *Engine) writeDayCache(ctx context.Context, symbol, day, status string, rowCount int64, lastErr, endpoint *string) {
	entry := &domain.DayCacheEntry{
		Symbol:         symbol,
		Day:            day,
		Status:         status,
		RowCount:       rowCount,
		LastSyncAtMs:   e.now().UnixMilli(),
		LastError:      lastErr,
		SourceEndpoint: endpoint,
	}
	if err := e.stores.DayCache.Upsert(ctx, entry); err != nil {
		observability.RecordDBError("day_cache")
		e.logger.Printf("[histquery] day cache write failed for %s %s: %v", symbol, day, err)
	}
}
