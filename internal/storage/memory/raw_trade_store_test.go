package memory

import (
	"context"
	"errors"
	"testing"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

func sampleTrade(id string, tsMs int64) *domain.RawTrade {
	return &domain.RawTrade{
		TradeID:    id,
		TradeTsMs:  tsMs,
		Symbol:     "AAPL",
		Expiration: "2026-09-18",
		Strike:     230,
		Right:      domain.RightCall,
		Price:      1.25,
		Size:       10,
	}
}

func TestRawTradeStore_UpsertCountsFreshInserts(t *testing.T) {
	store := NewRawTradeStore()
	ctx := context.Background()

	inserted, err := store.Upsert(ctx, []*domain.RawTrade{
		sampleTrade("t1", 1787927400000),
		sampleTrade("t2", 1787927401000),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted mismatch: got %d, want 2", inserted)
	}

	// Re-delivery of t1 plus one new trade: only the new one counts.
	inserted, err = store.Upsert(ctx, []*domain.RawTrade{
		sampleTrade("t1", 1787927400000),
		sampleTrade("t3", 1787927402000),
	})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted mismatch after re-delivery: got %d, want 1", inserted)
	}

	count, err := store.CountBySymbolDay(ctx, "AAPL", "2026-08-28")
	if err != nil {
		t.Fatalf("CountBySymbolDay failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count mismatch: got %d, want 3", count)
	}
}

func TestRawTradeStore_GetBySymbolDayOrdering(t *testing.T) {
	store := NewRawTradeStore()
	ctx := context.Background()

	// Insert out of order, including a timestamp tie.
	_, err := store.Upsert(ctx, []*domain.RawTrade{
		sampleTrade("zz", 1787927401000),
		sampleTrade("aa", 1787927401000),
		sampleTrade("mm", 1787927400000),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	trades, err := store.GetBySymbolDay(ctx, "AAPL", "2026-08-28")
	if err != nil {
		t.Fatalf("GetBySymbolDay failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}

	wantOrder := []string{"mm", "aa", "zz"}
	for i, want := range wantOrder {
		if trades[i].TradeID != want {
			t.Errorf("position %d: got %s, want %s", i, trades[i].TradeID, want)
		}
	}
}

func TestRawTradeStore_UpsertInvalidInput(t *testing.T) {
	store := NewRawTradeStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, []*domain.RawTrade{{TradeID: ""}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRawTradeStore_DayIsolation(t *testing.T) {
	store := NewRawTradeStore()
	ctx := context.Background()

	// 2026-08-28 23:59:59 UTC and 2026-08-29 00:00:01 UTC.
	_, err := store.Upsert(ctx, []*domain.RawTrade{
		sampleTrade("d1", 1787961599000),
		sampleTrade("d2", 1787961601000),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	trades, err := store.GetBySymbolDay(ctx, "AAPL", "2026-08-28")
	if err != nil {
		t.Fatalf("GetBySymbolDay failed: %v", err)
	}
	if len(trades) != 1 || trades[0].TradeID != "d1" {
		t.Errorf("expected only d1 on 2026-08-28, got %d rows", len(trades))
	}
}
