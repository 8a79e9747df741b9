package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-lab/internal/domain"
	pgstore "options-flow-lab/internal/storage/postgres"
)

func rawTrade(id string, tsMs int64, strike float64, size int64) *domain.RawTrade {
	return &domain.RawTrade{
		TradeID:    id,
		TradeTsMs:  tsMs,
		Symbol:     "AAPL",
		Expiration: "2026-09-18",
		Strike:     strike,
		Right:      domain.RightCall,
		Price:      1.50,
		Size:       size,
		RawPayload: []byte(`{"price": 1.50}`),
	}
}

func TestRawTradeStore_UpsertCountsFreshInsertsOnly(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRawTradeStore(pool)
	ctx := context.Background()

	inserted, err := store.Upsert(ctx, []*domain.RawTrade{
		rawTrade("pg-t1", 1787927400000, 230, 10),
		rawTrade("pg-t2", 1787927401000, 235, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// Re-delivery of pg-t1 plus one new row: only the new row counts.
	inserted, err = store.Upsert(ctx, []*domain.RawTrade{
		rawTrade("pg-t1", 1787927400000, 230, 10),
		rawTrade("pg-t3", 1787927402000, 240, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	count, err := store.CountBySymbolDay(ctx, "AAPL", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRawTradeStore_GetBySymbolDayOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewRawTradeStore(pool)
	ctx := context.Background()

	// Same timestamp: trade_id breaks the tie.
	_, err := store.Upsert(ctx, []*domain.RawTrade{
		rawTrade("zz", 1787927400000, 230, 10),
		rawTrade("aa", 1787927400000, 231, 10),
		rawTrade("mm", 1787927399000, 232, 10),
	})
	require.NoError(t, err)

	trades, err := store.GetBySymbolDay(ctx, "AAPL", "2026-08-28")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "mm", trades[0].TradeID)
	assert.Equal(t, "aa", trades[1].TradeID)
	assert.Equal(t, "zz", trades[2].TradeID)
}
