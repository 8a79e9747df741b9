package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// DayCacheStore implements storage.DayCacheStore using PostgreSQL.
type DayCacheStore struct {
	pool *Pool
}

// NewDayCacheStore creates a new DayCacheStore.
func NewDayCacheStore(pool *Pool) *DayCacheStore {
	return &DayCacheStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DayCacheStore = (*DayCacheStore)(nil)

// Get retrieves the entry for (symbol, day). Returns ErrNotFound if the day
// has never been synced.
func (s *DayCacheStore) Get(ctx context.Context, symbol, day string) (*domain.DayCacheEntry, error) {
	query := `
		SELECT symbol, day, status, row_count, last_sync_at, last_error, source_endpoint
		FROM day_cache
		WHERE symbol = $1 AND day = $2
	`

	var e domain.DayCacheEntry
	err := s.pool.QueryRow(ctx, query, symbol, day).Scan(
		&e.Symbol, &e.Day, &e.Status, &e.RowCount, &e.LastSyncAtMs, &e.LastError, &e.SourceEndpoint,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get day cache entry: %w", err)
	}
	return &e, nil
}

// Upsert writes the entry for (symbol, day), replacing any prior state.
func (s *DayCacheStore) Upsert(ctx context.Context, e *domain.DayCacheEntry) error {
	if e == nil || e.Symbol == "" || e.Day == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO day_cache (symbol, day, status, row_count, last_sync_at, last_error, source_endpoint)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, day) DO UPDATE SET
			status = EXCLUDED.status,
			row_count = EXCLUDED.row_count,
			last_sync_at = EXCLUDED.last_sync_at,
			last_error = EXCLUDED.last_error,
			source_endpoint = EXCLUDED.source_endpoint
	`

	_, err := s.pool.Exec(ctx, query,
		e.Symbol, e.Day, e.Status, e.RowCount, e.LastSyncAtMs, e.LastError, e.SourceEndpoint,
	)
	if err != nil {
		return fmt.Errorf("upsert day cache entry: %w", err)
	}
	return nil
}

// MetricCacheStore implements storage.MetricCacheStore using PostgreSQL.
type MetricCacheStore struct {
	pool *Pool
}

// NewMetricCacheStore creates a new MetricCacheStore.
func NewMetricCacheStore(pool *Pool) *MetricCacheStore {
	return &MetricCacheStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricCacheStore = (*MetricCacheStore)(nil)

// Get retrieves the entry for (symbol, day, metric).
func (s *MetricCacheStore) Get(ctx context.Context, symbol, day, metric string) (*domain.MetricCacheEntry, error) {
	query := `
		SELECT symbol, day, metric_name, status, row_count, last_sync_at, last_error
		FROM metric_cache
		WHERE symbol = $1 AND day = $2 AND metric_name = $3
	`

	var e domain.MetricCacheEntry
	err := s.pool.QueryRow(ctx, query, symbol, day, metric).Scan(
		&e.Symbol, &e.Day, &e.MetricName, &e.Status, &e.RowCount, &e.LastSyncAtMs, &e.LastError,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get metric cache entry: %w", err)
	}
	return &e, nil
}

// GetAll retrieves all metric entries for (symbol, day).
func (s *MetricCacheStore) GetAll(ctx context.Context, symbol, day string) ([]*domain.MetricCacheEntry, error) {
	query := `
		SELECT symbol, day, metric_name, status, row_count, last_sync_at, last_error
		FROM metric_cache
		WHERE symbol = $1 AND day = $2
		ORDER BY metric_name ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("get metric cache entries: %w", err)
	}
	defer rows.Close()

	return scanMetricCacheEntries(rows)
}

// UpsertBatch writes a batch of entries atomically.
func (s *MetricCacheStore) UpsertBatch(ctx context.Context, entries []*domain.MetricCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO metric_cache (symbol, day, metric_name, status, row_count, last_sync_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, day, metric_name) DO UPDATE SET
			status = EXCLUDED.status,
			row_count = EXCLUDED.row_count,
			last_sync_at = EXCLUDED.last_sync_at,
			last_error = EXCLUDED.last_error
	`

	for _, e := range entries {
		if e == nil || e.Symbol == "" || e.Day == "" || e.MetricName == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			e.Symbol, e.Day, e.MetricName, e.Status, e.RowCount, e.LastSyncAtMs, e.LastError,
		)
		if err != nil {
			return fmt.Errorf("upsert metric cache entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanMetricCacheEntries scans multiple rows.
func scanMetricCacheEntries(rows pgx.Rows) ([]*domain.MetricCacheEntry, error) {
	var entries []*domain.MetricCacheEntry

	for rows.Next() {
		var e domain.MetricCacheEntry
		err := rows.Scan(
			&e.Symbol, &e.Day, &e.MetricName, &e.Status, &e.RowCount, &e.LastSyncAtMs, &e.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric cache row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric cache rows: %w", err)
	}

	return entries, nil
}
