package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// ContractStatsStore implements storage.ContractStatsStore using PostgreSQL.
type ContractStatsStore struct {
	pool *Pool
}

// NewContractStatsStore creates a new ContractStatsStore.
func NewContractStatsStore(pool *Pool) *ContractStatsStore {
	return &ContractStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStatsStore = (*ContractStatsStore)(nil)

// ReplaceDay replaces the contract stats rows for (symbol, day) atomically.
// Stats are a derived projection of the day's trades, so a delete-then-insert
// rebuild is simpler than reconciling per-contract deltas.
func (s *ContractStatsStore) ReplaceDay(ctx context.Context, symbol, day string, stats []*domain.IntradayContractStats) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM intraday_contract_stats WHERE symbol = $1 AND day = $2`,
		symbol, day,
	)
	if err != nil {
		return fmt.Errorf("delete contract stats: %w", err)
	}

	query := `
		INSERT INTO intraday_contract_stats (
			symbol, expiration, strike, option_right, day, day_volume, last_oi, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, st := range stats {
		if st == nil || st.Symbol == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			st.Symbol, st.Expiration, st.Strike, st.Right, day, st.DayVolume, st.LastOI, st.UpdatedAtMs,
		)
		if err != nil {
			return fmt.Errorf("insert contract stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySymbolDay retrieves all contract stats for (symbol, day).
func (s *ContractStatsStore) GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.IntradayContractStats, error) {
	query := `
		SELECT symbol, expiration, strike, option_right, day, day_volume, last_oi, updated_at
		FROM intraday_contract_stats
		WHERE symbol = $1 AND day = $2
		ORDER BY expiration ASC, strike ASC, option_right ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("get contract stats by symbol day: %w", err)
	}
	defer rows.Close()

	return scanContractStats(rows)
}

// scanContractStats scans multiple rows.
func scanContractStats(rows pgx.Rows) ([]*domain.IntradayContractStats, error) {
	var stats []*domain.IntradayContractStats

	for rows.Next() {
		var st domain.IntradayContractStats
		err := rows.Scan(
			&st.Symbol, &st.Expiration, &st.Strike, &st.Right, &st.Day, &st.DayVolume, &st.LastOI, &st.UpdatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract stats row: %w", err)
		}
		stats = append(stats, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract stats rows: %w", err)
	}

	return stats, nil
}
