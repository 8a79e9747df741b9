package memory

import (
	"context"
	"sort"
	"sync"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/storage"
)

// ReferenceOIStore is an in-memory implementation of storage.ReferenceOIStore.
type ReferenceOIStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ReferenceOpenInterest // keyed by source|asOfDate|contract
	seq  int64                                    // insertion order tiebreak for equal ingest timestamps
	ord  map[string]int64
}

// NewReferenceOIStore creates a new in-memory reference OI store.
func NewReferenceOIStore() *ReferenceOIStore {
	return &ReferenceOIStore{
		data: make(map[string]*domain.ReferenceOpenInterest),
		ord:  make(map[string]int64),
	}
}

// Compile-time interface check.
var _ storage.ReferenceOIStore = (*ReferenceOIStore)(nil)

func refOIKey(r *domain.ReferenceOpenInterest) string {
	return r.Source + "|" + r.AsOfDate + "|" + r.Contract().String()
}

// ImportBatch inserts reference rows, refreshing re-imported keys.
func (s *ReferenceOIStore) ImportBatch(_ context.Context, rows []*domain.ReferenceOpenInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if r == nil || r.Source == "" || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		rowCopy := *r
		key := refOIKey(r)
		s.data[key] = &rowCopy
		s.seq++
		s.ord[key] = s.seq
	}
	return nil
}

// GetBySymbolDate retrieves all reference rows for (symbol, asOfDate) across
// sources, ordered by ingested_at ASC.
func (s *ReferenceOIStore) GetBySymbolDate(_ context.Context, symbol, asOfDate string) ([]*domain.ReferenceOpenInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReferenceOpenInterest
	for _, r := range s.data {
		if r.Symbol == symbol && r.AsOfDate == asOfDate {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.IngestedAtMs != b.IngestedAtMs {
			return a.IngestedAtMs < b.IngestedAtMs
		}
		return s.ord[refOIKey(a)] < s.ord[refOIKey(b)]
	})

	return result, nil
}
