package clickhouse

import (
	"context"
	"fmt"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// SymbolRollupStore implements storage.SymbolRollupStore using ClickHouse.
// The table is a ReplacingMergeTree versioned by built_at, so a day rebuild
// inserts a full fresh set and readers select the latest version with FINAL.
type SymbolRollupStore struct {
	conn *Conn
}

// NewSymbolRollupStore creates a new SymbolRollupStore.
func NewSymbolRollupStore(conn *Conn) *SymbolRollupStore {
	return &SymbolRollupStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SymbolRollupStore = (*SymbolRollupStore)(nil)

// ReplaceDay writes a fresh build of the day's rollups.
func (s *SymbolRollupStore) ReplaceDay(ctx context.Context, symbol, day string, rollups []*domain.SymbolMinuteRollup) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}
	if len(rollups) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO symbol_minute_rollups (
			symbol, day, minute_ms, trade_count, volume, premium,
			bullish_count, bearish_count, max_sig_score, avg_sig_score,
			chip_counts, built_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rollups {
		err = batch.Append(
			r.Symbol, r.Day, uint64(r.MinuteMs), uint64(r.TradeCount), uint64(r.Volume), r.Premium,
			uint64(r.BullishCount), uint64(r.BearishCount), r.MaxSigScore, r.AvgSigScore,
			chipCountsToCH(r.ChipCounts), uint64(r.BuiltAtMs),
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
// minute ASC.
func (s *SymbolRollupStore) GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.SymbolMinuteRollup, error) {
	query := `
		SELECT symbol, day, minute_ms, trade_count, volume, premium,
		       bullish_count, bearish_count, max_sig_score, avg_sig_score,
		       chip_counts, built_at
		FROM symbol_minute_rollups FINAL
		WHERE symbol = ? AND day = ?
		ORDER BY minute_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("query symbol rollups: %w", err)
	}
	defer rows.Close()

	return scanSymbolRollups(rows)
}

// scanSymbolRollups scans multiple rows.
func scanSymbolRollups(rows chRows) ([]*domain.SymbolMinuteRollup, error) {
	var rollups []*domain.SymbolMinuteRollup

	for rows.Next() {
		var r domain.SymbolMinuteRollup
		var minuteMs, tradeCount, volume, bullish, bearish, builtAt uint64
		var chipCounts map[string]uint64

		err := rows.Scan(
			&r.Symbol, &r.Day, &minuteMs, &tradeCount, &volume, &r.Premium,
			&bullish, &bearish, &r.MaxSigScore, &r.AvgSigScore,
			&chipCounts, &builtAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan symbol rollup row: %w", err)
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
		return nil, fmt.Errorf("iterate symbol rollup rows: %w", err)
	}

	return rollups, nil
}

// chipCountsToCH converts chip counts to the Map(String, UInt64) column type.
func chipCountsToCH(m map[string]int64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		if v < 0 {
			v = 0
		}
		out[k] = uint64(v)
	}
	return out
}

// chipCountsFromCH converts the column value back to domain form.
func chipCountsFromCH(m map[string]uint64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = int64(v)
	}
	return out
}
