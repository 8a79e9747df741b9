package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// RawTradeStore implements storage.RawTradeStore using PostgreSQL.
type RawTradeStore struct {
	pool *Pool
}

// NewRawTradeStore creates a new RawTradeStore.
func NewRawTradeStore(pool *Pool) *RawTradeStore {
	return &RawTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawTradeStore = (*RawTradeStore)(nil)

// Upsert writes a batch of raw trades atomically. Existing trade_ids are
// refreshed in place so re-delivery from the feed is a no-op update.
// Returns the number of newly inserted rows.
func (s *RawTradeStore) Upsert(ctx context.Context, trades []*domain.RawTrade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO raw_trades (
			trade_id, trade_ts, trade_day, symbol, expiration, strike, option_right,
			price, size, bid, ask, condition_code, exchange, raw_payload, watermark, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (trade_id) DO UPDATE SET
			bid = EXCLUDED.bid,
			ask = EXCLUDED.ask,
			raw_payload = EXCLUDED.raw_payload,
			watermark = EXCLUDED.watermark
		RETURNING (xmax = 0)
	`

	now := time.Now().UnixMilli()
	var inserted int64

	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.Symbol == "" {
			return 0, storage.ErrInvalidInput
		}

		var isInsert bool
		err := tx.QueryRow(ctx, query,
			t.TradeID,
			t.TradeTsMs,
			domain.DayFromMs(t.TradeTsMs),
			t.Symbol,
			t.Expiration,
			t.Strike,
			t.Right,
			t.Price,
			t.Size,
			t.Bid,
			t.Ask,
			t.ConditionCode,
			t.Exchange,
			t.RawPayload,
			t.Watermark,
			now,
		).Scan(&isInsert)
		if err != nil {
			return 0, fmt.Errorf("upsert raw trade: %w", err)
		}
		if isInsert {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// GetBySymbolDay retrieves all raw trades for a symbol on a UTC day,
// ordered by (trade_ts, trade_id) ASC.
func (s *RawTradeStore) GetBySymbolDay(ctx context.Context, symbol, day string) ([]*domain.RawTrade, error) {
	query := `
		SELECT trade_id, trade_ts, symbol, expiration, strike, option_right,
		       price, size, bid, ask, condition_code, exchange, raw_payload, watermark, created_at
		FROM raw_trades
		WHERE symbol = $1 AND trade_day = $2
		ORDER BY trade_ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("get raw trades by symbol day: %w", err)
	}
	defer rows.Close()

	return scanRawTrades(rows)
}

// CountBySymbolDay returns the number of raw trades stored for a day.
func (s *RawTradeStore) CountBySymbolDay(ctx context.Context, symbol, day string) (int64, error) {
	query := `SELECT count(*) FROM raw_trades WHERE symbol = $1 AND trade_day = $2`

	var count int64
	if err := s.pool.QueryRow(ctx, query, symbol, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw trades: %w", err)
	}
	return count, nil
}

// scanRawTrades scans multiple rows into a slice of RawTrade.
func scanRawTrades(rows pgx.Rows) ([]*domain.RawTrade, error) {
	var trades []*domain.RawTrade

	for rows.Next() {
		var t domain.RawTrade

		err := rows.Scan(
			&t.TradeID,
			&t.TradeTsMs,
			&t.Symbol,
			&t.Expiration,
			&t.Strike,
			&t.Right,
			&t.Price,
			&t.Size,
			&t.Bid,
			&t.Ask,
			&t.ConditionCode,
			&t.Exchange,
			&t.RawPayload,
			&t.Watermark,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw trade rows: %w", err)
	}

	return trades, nil
}
