package memory

import (
	"context"
	"sort"
	"sync"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// ContractStatsStore is an in-memory implementation of
// storage.ContractStatsStore.
type ContractStatsStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.IntradayContractStats // keyed by symbol+"|"+day
}

// NewContractStatsStore creates a new in-memory contract stats store.
func NewContractStatsStore() *ContractStatsStore {
	return &ContractStatsStore{
		data: make(map[string][]*domain.IntradayContractStats),
	}
}

// Compile-time interface check.
var _ storage.ContractStatsStore = (*ContractStatsStore)(nil)

// ReplaceDay replaces the contract stats rows for (symbol, day).
func (s *ContractStatsStore) ReplaceDay(_ context.Context, symbol, day string, stats []*domain.IntradayContractStats) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}

	copied := make([]*domain.IntradayContractStats, 0, len(stats))
	for _, st := range stats {
		if st == nil || st.Symbol == "" {
			return storage.ErrInvalidInput
		}
		statCopy := *st
		statCopy.Day = day
		copied = append(copied, &statCopy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[symbol+"|"+day] = copied
	return nil
}

// GetBySymbolDay retrieves all contract stats for (symbol, day), ordered by
// (expiration, strike, right) ASC.
func (s *ContractStatsStore) GetBySymbolDay(_ context.Context, symbol, day string) ([]*domain.IntradayContractStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[symbol+"|"+day]
	result := make([]*domain.IntradayContractStats, 0, len(stored))
	for _, st := range stored {
		statCopy := *st
		result = append(result, &statCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Expiration != b.Expiration {
			return a.Expiration < b.Expiration
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Right < b.Right
	})

	return result, nil
}
