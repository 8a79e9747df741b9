package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// ReferenceOIStore implements storage.ReferenceOIStore using PostgreSQL.
type ReferenceOIStore struct {
	pool *Pool
}

// NewReferenceOIStore creates a new ReferenceOIStore.
func NewReferenceOIStore(pool *Pool) *ReferenceOIStore {
	return &ReferenceOIStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferenceOIStore = (*ReferenceOIStore)(nil)

// ImportBatch inserts reference rows atomically. Re-imported
// (source, as_of_date, contract) keys are refreshed with the new OI value and
// ingest timestamp.
func (s *ReferenceOIStore) ImportBatch(ctx context.Context, rows []*domain.ReferenceOpenInterest) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO reference_open_interest (
			source, as_of_date, symbol, expiration, strike, option_right, oi, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, as_of_date, symbol, expiration, strike, option_right) DO UPDATE SET
			oi = EXCLUDED.oi,
			ingested_at = EXCLUDED.ingested_at
	`

	for _, r := range rows {
		if r == nil || r.Source == "" || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			r.Source, r.AsOfDate, r.Symbol, r.Expiration, r.Strike, r.Right, r.OI, r.IngestedAtMs,
		)
		if err != nil {
			return fmt.Errorf("import reference oi row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySymbolDate retrieves all reference rows for (symbol, asOfDate) across
// sources, ordered by ingested_at ASC so the most recently ingested source
// wins when callers fold rows into a per-contract map.
func (s *ReferenceOIStore) GetBySymbolDate(ctx context.Context, symbol, asOfDate string) ([]*domain.ReferenceOpenInterest, error) {
	query := `
		SELECT source, as_of_date, symbol, expiration, strike, option_right, oi, ingested_at
		FROM reference_open_interest
		WHERE symbol = $1 AND as_of_date = $2
		ORDER BY ingested_at ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("get reference oi by symbol date: %w", err)
	}
	defer rows.Close()

	return scanReferenceOI(rows)
}

// scanReferenceOI scans multiple rows.
func scanReferenceOI(rows pgx.Rows) ([]*domain.ReferenceOpenInterest, error) {
	var out []*domain.ReferenceOpenInterest

	for rows.Next() {
		var r domain.ReferenceOpenInterest
		err := rows.Scan(
			&r.Source, &r.AsOfDate, &r.Symbol, &r.Expiration, &r.Strike, &r.Right, &r.OI, &r.IngestedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reference oi row: %w", err)
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference oi rows: %w", err)
	}

	return out, nil
}
