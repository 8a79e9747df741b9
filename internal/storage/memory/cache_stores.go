package memory

import (
	"context"
	"sort"
	"sync"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// DayCacheStore is an in-memory implementation of storage.DayCacheStore.
type DayCacheStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DayCacheEntry // keyed by symbol+"|"+day
}

// NewDayCacheStore creates a new in-memory day cache store.
func NewDayCacheStore() *DayCacheStore {
	return &DayCacheStore{
		data: make(map[string]*domain.DayCacheEntry),
	}
}

// Compile-time interface check.
var _ storage.DayCacheStore = (*DayCacheStore)(nil)

// Get retrieves the entry for (symbol, day).
func (s *DayCacheStore) Get(_ context.Context, symbol, day string) (*domain.DayCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[symbol+"|"+day]
	if !ok {
		return nil, storage.ErrNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// Upsert writes the entry for (symbol, day), replacing any prior state.
func (s *DayCacheStore) Upsert(_ context.Context, e *domain.DayCacheEntry) error {
	if e == nil || e.Symbol == "" || e.Day == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *e
	s.data[e.Symbol+"|"+e.Day] = &entryCopy
	return nil
}

// MetricCacheStore is an in-memory implementation of storage.MetricCacheStore.
type MetricCacheStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MetricCacheEntry // keyed by symbol+"|"+day+"|"+metric
}

// NewMetricCacheStore creates a new in-memory metric cache store.
func NewMetricCacheStore() *MetricCacheStore {
	return &MetricCacheStore{
		data: make(map[string]*domain.MetricCacheEntry),
	}
}

// Compile-time interface check.
var _ storage.MetricCacheStore = (*MetricCacheStore)(nil)

// Get retrieves the entry for (symbol, day, metric).
func (s *MetricCacheStore) Get(_ context.Context, symbol, day, metric string) (*domain.MetricCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[symbol+"|"+day+"|"+metric]
	if !ok {
		return nil, storage.ErrNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// GetAll retrieves all metric entries for (symbol, day), ordered by metric
// name ASC.
func (s *MetricCacheStore) GetAll(_ context.Context, symbol, day string) ([]*domain.MetricCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MetricCacheEntry
	for _, e := range s.data {
		if e.Symbol == symbol && e.Day == day {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MetricName < result[j].MetricName
	})

	return result, nil
}

// UpsertBatch writes a batch of entries.
func (s *MetricCacheStore) UpsertBatch(_ context.Context, entries []*domain.MetricCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e == nil || e.Symbol == "" || e.Day == "" || e.MetricName == "" {
			return storage.ErrInvalidInput
		}
		entryCopy := *e
		s.data[e.Symbol+"|"+e.Day+"|"+e.MetricName] = &entryCopy
	}
	return nil
}
