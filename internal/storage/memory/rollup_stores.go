package memory

import (
	"context"
	"sort"
	"sync"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// SymbolRollupStore is an in-memory implementation of
// storage.SymbolRollupStore. Only the latest build per (symbol, day) is kept,
// which matches what FINAL reads see on the ClickHouse backend.
type SymbolRollupStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SymbolMinuteRollup // keyed by symbol+"|"+day
}

// NewSymbolRollupStore creates a new in-memory symbol rollup store.
func NewSymbolRollupStore() *SymbolRollupStore {
	return &SymbolRollupStore{
		data: make(map[string][]*domain.SymbolMinuteRollup),
	}
}

// Compile-time interface check.
var _ storage.SymbolRollupStore = (*SymbolRollupStore)(nil)

// ReplaceDay writes a fresh build of the day's rollups.
func (s *SymbolRollupStore) ReplaceDay(_ context.Context, symbol, day string, rollups []*domain.SymbolMinuteRollup) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}

	copied := make([]*domain.SymbolMinuteRollup, 0, len(rollups))
	for _, r := range rollups {
		if r == nil {
			return storage.ErrInvalidInput
		}
		rollupCopy := *r
		rollupCopy.ChipCounts = copyChipCounts(r.ChipCounts)
		copied = append(copied, &rollupCopy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[symbol+"|"+day] = copied
	return nil
}

// GetBySymbolDay retrieves the latest build for (symbol, day), ordered by
// minute ASC.
func (s *SymbolRollupStore) GetBySymbolDay(_ context.Context, symbol, day string) ([]*domain.SymbolMinuteRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[symbol+"|"+day]
	result := make([]*domain.SymbolMinuteRollup, 0, len(stored))
	for _, r := range stored {
		rollupCopy := *r
		rollupCopy.ChipCounts = copyChipCounts(r.ChipCounts)
		result = append(result, &rollupCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MinuteMs < result[j].MinuteMs
	})

	return result, nil
}

// ContractRollupStore is an in-memory implementation of
// storage.ContractRollupStore.
type ContractRollupStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ContractMinuteRollup // keyed by symbol+"|"+day
}

// NewContractRollupStore creates a new in-memory contract rollup store.
func NewContractRollupStore() *ContractRollupStore {
	return &ContractRollupStore{
		data: make(map[string][]*domain.ContractMinuteRollup),
	}
}

// Compile-time interface check.
var _ storage.ContractRollupStore = (*ContractRollupStore)(nil)

// ReplaceDay writes a fresh build of the day's rollups.
func (s *ContractRollupStore) ReplaceDay(_ context.Context, symbol, day string, rollups []*domain.ContractMinuteRollup) error {
	if symbol == "" || day == "" {
		return storage.ErrInvalidInput
	}

	copied := make([]*domain.ContractMinuteRollup, 0, len(rollups))
	for _, r := range rollups {
		if r == nil {
			return storage.ErrInvalidInput
		}
		rollupCopy := *r
		rollupCopy.ChipCounts = copyChipCounts(r.ChipCounts)
		copied = append(copied, &rollupCopy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[symbol+"|"+day] = copied
	return nil
}

// GetBySymbolDay retrieves the latest build for (symbol, day), ordered by
// (expiration, strike, right, minute) ASC.
func (s *ContractRollupStore) GetBySymbolDay(_ context.Context, symbol, day string) ([]*domain.ContractMinuteRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[symbol+"|"+day]
	result := make([]*domain.ContractMinuteRollup, 0, len(stored))
	for _, r := range stored {
		rollupCopy := *r
		rollupCopy.ChipCounts = copyChipCounts(r.ChipCounts)
		result = append(result, &rollupCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Expiration != b.Expiration {
			return a.Expiration < b.Expiration
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		if a.Right != b.Right {
			return a.Right < b.Right
		}
		return a.MinuteMs < b.MinuteMs
	})

	return result, nil
}

func copyChipCounts(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
