package memory

import (
	"context"
	"sort"
	"sync"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// EnrichedTradeStore is an in-memory implementation of
// storage.EnrichedTradeStore.
type EnrichedTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EnrichedTrade // keyed by trade_id
}

// NewEnrichedTradeStore creates a new in-memory enriched trade store.
func NewEnrichedTradeStore() *EnrichedTradeStore {
	return &EnrichedTradeStore{
		data: make(map[string]*domain.EnrichedTrade),
	}
}

// Compile-time interface check.
var _ storage.EnrichedTradeStore = (*EnrichedTradeStore)(nil)

// ReplaceDay replaces the full enriched row set for (symbol, day).
func (s *EnrichedTradeStore) ReplaceDay(_ context.Context, symbol, day string, rows []*domain.EnrichedTrade) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range rows {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.data {
		if t.Symbol == symbol && domain.DayFromMs(t.TradeTsMs) == day {
			delete(s.data, id)
		}
	}

	for _, r := range rows {
		rowCopy := *r
		rowCopy.Chips = append([]string(nil), r.Chips...)
		s.data[r.TradeID] = &rowCopy
	}
	return nil
}

// GetBySymbolDay retrieves all enriched trades for a symbol on a UTC day,
// ordered by (trade_ts, trade_id) ASC.
func (s *EnrichedTradeStore) GetBySymbolDay(_ context.Context, symbol, day string) ([]*domain.EnrichedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EnrichedTrade
	for _, t := range s.data {
		if t.Symbol == symbol && domain.DayFromMs(t.TradeTsMs) == day {
			rowCopy := *t
			rowCopy.Chips = append([]string(nil), t.Chips...)
			result = append(result, &rowCopy)
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

// CountBySymbolDay returns the number of enriched rows for a day.
func (s *EnrichedTradeStore) CountBySymbolDay(_ context.Context, symbol, day string) (int64, error) {
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
