package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// EnrichedTradeStore implements storage.EnrichedTradeStore using PostgreSQL.
type EnrichedTradeStore struct {
	pool *Pool
}

// NewEnrichedTradeStore creates a new EnrichedTradeStore.
func NewEnrichedTradeStore(pool *Pool) *EnrichedTradeStore {
	return &EnrichedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EnrichedTradeStore = (*EnrichedTradeStore)(nil)

// ReplaceDay upserts the full enriched row set for (symbol, day) in one
// transaction. Rows are keyed by trade_id; all derived fields of an existing
// row are replaced so a recompute never leaves stale values behind.
func (s *EnrichedTradeStore) ReplaceDay(ctx context.Context, symbol, day string, rows []*domain.EnrichedTrade) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Drop rows for trades that no longer exist in the raw set (e.g. after a
	// re-sync shrank the day) before upserting the fresh build.
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		ids = append(ids, r.TradeID)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM enriched_trades WHERE symbol = $1 AND trade_day = $2 AND NOT (trade_id = ANY($3))`,
		symbol, day, ids,
	)
	if err != nil {
		return fmt.Errorf("delete stale enriched rows: %w", err)
	}

	query := `
		INSERT INTO enriched_trades (
			trade_id, symbol, trade_ts, trade_day, expiration, strike, option_right, price, size,
			value, dte, side, sentiment, spot, otm_pct, oi, day_volume, vol_oi_ratio,
			repeat_3m, bullish_ratio_15m, minute_volume, vol_baseline_15m, am_baseline_15m,
			sig_score, standard_expiry, am_window, minute_bucket, chips, rule_version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $29
		)
		ON CONFLICT (trade_id) DO UPDATE SET
			value = EXCLUDED.value,
			dte = EXCLUDED.dte,
			side = EXCLUDED.side,
			sentiment = EXCLUDED.sentiment,
			spot = EXCLUDED.spot,
			otm_pct = EXCLUDED.otm_pct,
			oi = EXCLUDED.oi,
			day_volume = EXCLUDED.day_volume,
			vol_oi_ratio = EXCLUDED.vol_oi_ratio,
			repeat_3m = EXCLUDED.repeat_3m,
			bullish_ratio_15m = EXCLUDED.bullish_ratio_15m,
			minute_volume = EXCLUDED.minute_volume,
			vol_baseline_15m = EXCLUDED.vol_baseline_15m,
			am_baseline_15m = EXCLUDED.am_baseline_15m,
			sig_score = EXCLUDED.sig_score,
			standard_expiry = EXCLUDED.standard_expiry,
			am_window = EXCLUDED.am_window,
			minute_bucket = EXCLUDED.minute_bucket,
			chips = EXCLUDED.chips,
			rule_version = EXCLUDED.rule_version
	`

	for _, r := range rows {
		chips := r.Chips
		if chips == nil {
			chips = []string{}
		}
		_, err := tx.Exec(ctx, query,
			r.TradeID, r.Symbol, r.TradeTsMs, day, r.Expiration, r.Strike, r.Right, r.Price, r.Size,
			r.Value, r.Dte, r.Side, r.Sentiment, r.Spot, r.OtmPct, r.OI, r.DayVolume, r.VolOiRatio,
			r.Repeat3m, r.BullishRatio15m, r.MinuteVolume, r.VolBaseline15m, r.AMBaseline15m,
			r.SigScore, r.StandardExpiry, r.AMWindow, r.MinuteBucketMs, chips, r.RuleVersion,
		)
		if err != nil {
			return fmt.Errorf("upsert enriched trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySymbolDay retrieves all enriched trades for a symbol on a UTC day,
// ordered by (trade_ts, trade_id) ASC.
func (s *EnrichedTradeStore) GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.EnrichedTrade, error) {
	query := `
		SELECT trade_id, symbol, trade_ts, expiration, strike, option_right, price, size,
		       value, dte, side, sentiment, spot, otm_pct, oi, day_volume, vol_oi_ratio,
		       repeat_3m, bullish_ratio_15m, minute_volume, vol_baseline_15m, am_baseline_15m,
		       sig_score, standard_expiry, am_window, minute_bucket, chips, rule_version
		FROM enriched_trades
		WHERE symbol = $1 AND trade_day = $2
		ORDER BY trade_ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("get enriched trades by symbol day: %w", err)
	}
	defer rows.Close()

	return scanEnrichedTrades(rows)
}

// CountBySymbolDay returns the number of enriched rows for a day.
func (s *EnrichedTradeStore) CountBySymbolDay(ctx context.Context, symbol, day string) (int64, error) {
	query := `SELECT count(*) FROM enriched_trades WHERE symbol = $1 AND trade_day = $2`

	var count int64
	if err := s.pool.QueryRow(ctx, query, symbol, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count enriched trades: %w", err)
	}
	return count, nil
}

// scanEnrichedTrades scans multiple rows into a slice of EnrichedTrade.
func scanEnrichedTrades(rows pgx.Rows) ([]*domain.EnrichedTrade, error) {
	var trades []*domain.EnrichedTrade

	for rows.Next() {
		var t domain.EnrichedTrade

		err := rows.Scan(
			&t.TradeID, &t.Symbol, &t.TradeTsMs, &t.Expiration, &t.Strike, &t.Right, &t.Price, &t.Size,
			&t.Value, &t.Dte, &t.Side, &t.Sentiment, &t.Spot, &t.OtmPct, &t.OI, &t.DayVolume, &t.VolOiRatio,
			&t.Repeat3m, &t.BullishRatio15m, &t.MinuteVolume, &t.VolBaseline15m, &t.AMBaseline15m,
			&t.SigScore, &t.StandardExpiry, &t.AMWindow, &t.MinuteBucketMs, &t.Chips, &t.RuleVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("scan enriched trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enriched trade rows: %w", err)
	}

	return trades, nil
}
