package storage

import (
	"context"

	"options-flow-lab/internal/domain"
)

// RawTradeStore provides access to raw_trades storage. Raw trades are
// content-hash keyed: Upsert of an existing trade_id refreshes the row
// instead of duplicating it.
type RawTradeStore interface {
	// Upsert writes a batch of raw trades atomically and returns the number
	// of newly inserted rows (updates of existing ids are not counted).
	Upsert(ctx context.Context, trades []*domain.RawTrade) (int64, error)

	// GetBySymbolDay retrieves all raw trades for a symbol on a UTC day,
	// ordered by (trade_ts, trade_id) ASC. The ordering is enforced here
	// because enrichment running totals depend on it.
	GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.RawTrade, error)

	// CountBySymbolDay returns the number of raw trades stored for a day.
	CountBySymbolDay(ctx context.Context, symbol, day string) (int64, error)
}

// DayCacheStore provides access to day_cache storage.
type DayCacheStore interface {
	// Get retrieves the entry for (symbol, day). Returns ErrNotFound if the
	// day has never been synced.
	Get(ctx context.Context, symbol, day string) (*domain.DayCacheEntry, error)

	// Upsert writes the entry for (symbol, day), replacing any prior state.
	Upsert(ctx context.Context, e *domain.DayCacheEntry) error
}

// MetricCacheStore provides access to metric_cache storage.
type MetricCacheStore interface {
	// Get retrieves the entry for (symbol, day, metric). Returns ErrNotFound
	// if enrichment has never produced the metric.
	Get(ctx context.Context, symbol, day, metric string) (*domain.MetricCacheEntry, error)

	// GetAll retrieves all metric entries for (symbol, day).
	GetAll(ctx context.Context, symbol, day string) ([]*domain.MetricCacheEntry, error)

	// UpsertBatch writes a batch of entries atomically.
	UpsertBatch(ctx context.Context, entries []*domain.MetricCacheEntry) error
}

// EnrichedTradeStore provides access to enriched_trades storage.
type EnrichedTradeStore interface {
	// ReplaceDay upserts the full enriched row set for (symbol, day) in one
	// transaction. Rows are keyed by trade_id; all derived fields of an
	// existing row are replaced.
	ReplaceDay(ctx context.Context, symbol, day string, rows []*domain.EnrichedTrade) error

	// GetBySymbolDay retrieves all enriched trades for a symbol on a UTC
	// day, ordered by (trade_ts, trade_id) ASC.
	GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.EnrichedTrade, error)

	// CountBySymbolDay returns the number of enriched rows for a day.
	CountBySymbolDay(ctx context.Context, symbol, day string) (int64, error)
}

// ContractStatsStore provides access to intraday_contract_stats storage.
type ContractStatsStore interface {
	// ReplaceDay upserts the contract stats rows for (symbol, day)
	// atomically.
	ReplaceDay(ctx context.Context, symbol, day string, stats []*domain.IntradayContractStats) error

	// GetBySymbolDay retrieves all contract stats for (symbol, day).
	GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.IntradayContractStats, error)
}

// SymbolRollupStore provides access to symbol_minute_rollups storage.
type SymbolRollupStore interface {
	// ReplaceDay writes a fresh build of the day's rollups; the new build
	// version supersedes prior rows for the day.
	ReplaceDay(ctx context.Context, symbol, day string, rollups []*domain.SymbolMinuteRollup) error

	// GetBySymbolDay retrieves the latest build for (symbol, day), ordered
	// by minute ASC.
	GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.SymbolMinuteRollup, error)
}

// ContractRollupStore provides access to contract_minute_rollups storage.
type ContractRollupStore interface {
	// ReplaceDay writes a fresh build of the day's rollups; the new build
	// version supersedes prior rows for the day.
	ReplaceDay(ctx context.Context, symbol, day string, rollups []*domain.ContractMinuteRollup) error

	// GetBySymbolDay retrieves the latest build for (symbol, day), ordered
	// by (expiration, strike, right, minute) ASC.
	GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.ContractMinuteRollup, error)
}

// ReferenceOIStore provides access to the external reference open-interest
// table. The engine only reads it; the importer writes it.
type ReferenceOIStore interface {
	// ImportBatch inserts reference rows. Re-imported (source, asOfDate,
	// contract) keys are refreshed with a new ingest timestamp.
	ImportBatch(ctx context.Context, rows []*domain.ReferenceOpenInterest) error

	// GetBySymbolDate retrieves all reference rows for (symbol, asOfDate)
	// across sources, ordered by ingested_at ASC so the most recently
	// ingested source wins when callers fold rows into a per-contract map.
	GetBySymbolDate(ctx context.Context, symbol, asOfDate string) ([]*domain.ReferenceOpenInterest, error)
}
