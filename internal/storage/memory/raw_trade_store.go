package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// RawTradeStore is an in-memory implementation of storage.RawTradeStore.
type RawTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawTrade // keyed by trade_id
}

// NewRawTradeStore creates a new in-memory raw trade store.
func NewRawTradeStore() *RawTradeStore {
	return &RawTradeStore{
		data: make(map[string]*domain.RawTrade),
	}
}

// Compile-time interface check.
var _ storage.RawTradeStore = (*RawTradeStore)(nil)

// Upsert writes a batch of raw trades. Returns the number of fresh inserts.
func (s *RawTradeStore) Upsert(_ context.Context, trades []*domain.RawTrade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	var inserted int64

	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.Symbol == "" {
			return 0, storage.ErrInvalidInput
		}

		if existing, ok := s.data[t.TradeID]; ok {
			existing.Bid = t.Bid
			existing.Ask = t.Ask
			existing.RawPayload = t.RawPayload
			existing.Watermark = t.Watermark
			continue
		}

		// Store a copy to prevent external mutation
		tradeCopy := *t
		tradeCopy.CreatedAt = now
		s.data[t.TradeID] = &tradeCopy
		inserted++
	}

	return inserted, nil
}

// GetBySymbolDay retrieves all raw trades for a symbol on a UTC day,
// ordered by (trade_ts, trade_id) ASC.
func (s *RawTradeStore) GetBySymbolDay(_ context.Context, symbol, day string) ([]*domain.RawTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawTrade
	for _, t := range s.data {
		if t.Symbol == symbol && domain.DayFromMs(t.TradeTsMs) == day {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TradeTsMs != result[j].TradeTsMs {
			return result[i].TradeTsMs < result[j].TradeTsMs
		}
		return result[i].TradeID < result[j].TradeID
	})

	return result, nil
}

// CountBySymbolDay returns the number of raw trades stored for a day.
func (s *RawTradeStore) CountBySymbolDay(_ context.Context, symbol, day string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.data {
		if t.Symbol == symbol && domain.DayFromMs(t.TradeTsMs) == day {
			count++
		}
	}
	return count, nil
}
