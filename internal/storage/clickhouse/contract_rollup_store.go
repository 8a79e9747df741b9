package clickhouse

import (
	"context"
	"fmt"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// ContractRollupStore implements storage.ContractRollupStore using ClickHouse.
type ContractRollupStore struct {
	conn *Conn
}

// NewContractRollupStore creates a new ContractRollupStore.
func NewContractRollupStore(conn *Conn) *ContractRollupStore {
	return &ContractRollupStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ContractRollupStore = (*ContractRollupStore)(nil)

// ReplaceDay writes a fresh build of the day's rollups.
func (s *ContractRollupStore) ReplaceDay(ctx context.Context, symbol, day string, rollups []*domain.ContractMinuteRollup) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}
	if len(rollups) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO contract_minute_rollups (
			symbol, expiration, strike, option_right, day, minute_ms,
			trade_count, volume, premium, bullish_count, bearish_count,
			max_sig_score, avg_sig_score, chip_counts, built_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rollups {
		err = batch.Append(
			r.Symbol, r.Expiration, r.Strike, r.Right, r.Day, uint64(r.MinuteMs),
			uint64(r.TradeCount), uint64(r.Volume), r.Premium, uint64(r.BullishCount), uint64(r.BearishCount),
			r.MaxSigScore, r.AvgSigScore, chipCountsToCH(r.ChipCounts), uint64(r.BuiltAtMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbolDay retrieves the latest build for (symbol, day), ordered by
// (expiration, strike, right, minute) ASC.
func (s *ContractRollupStore) GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.ContractMinuteRollup, error) {
	query := `
		SELECT symbol, expiration, strike, option_right, day, minute_ms,
		       trade_count, volume, premium, bullish_count, bearish_count,
		       max_sig_score, avg_sig_score, chip_counts, built_at
		FROM contract_minute_rollups FINAL
		WHERE symbol = ? AND day = ?
		ORDER BY expiration ASC, strike ASC, option_right ASC, minute_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("query contract rollups: %w", err)
	}
	defer rows.Close()

	return scanContractRollups(rows)
}

// scanContractRollups scans multiple rows.
func scanContractRollups(rows chRows) ([]*domain.ContractMinuteRollup, error) {
	var rollups []*domain.ContractMinuteRollup

	for rows.Next() {
		var r domain.ContractMinuteRollup
		var minuteMs, tradeCount, volume, bullish, bearish, builtAt uint64
		var chipCounts map[string]uint64

		err := rows.Scan(
			&r.Symbol, &r.Expiration, &r.Strike, &r.Right, &r.Day, &minuteMs,
			&tradeCount, &volume, &r.Premium, &bullish, &bearish,
			&r.MaxSigScore, &r.AvgSigScore, &chipCounts, &builtAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract rollup row: %w", err)
		}

		r.MinuteMs = int64(minuteMs)
		r.TradeCount = int64(tradeCount)
		r.Volume = int64(volume)
		r.BullishCount = int64(bullish)
		r.BearishCount = int64(bearish)
		r.ChipCounts = chipCountsFromCH(chipCounts)
		r.BuiltAtMs = int64(builtAt)
		rollups = append(rollups, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract rollup rows: %w", err)
	}

	return rollups, nil
}
