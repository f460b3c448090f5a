package memory

import (
	"context"
	"sort"
	"sync"

	"price-monitor/internal/domain"
	"price-monitor/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceObservation // keyed by observation_id
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]*domain.PriceObservation),
	}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds multiple observations. Fails entire batch on duplicate.
func (s *ObservationStore) InsertBulk(_ context.Context, obs []*domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(obs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, o := range obs {
		if o == nil || o.ObservationID == "" || o.SourceURL == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[o.ObservationID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[o.ObservationID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[o.ObservationID] = struct{}{}
	}

	// Second pass: insert all
	for _, o := range obs {
		obsCopy := *o
		s.data[o.ObservationID] = &obsCopy
	}

	return nil
}

// GetBySourceURL retrieves all observations for a product, ordered by observed_at ASC.
func (s *ObservationStore) GetBySourceURL(_ context.Context, sourceURL string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.SourceURL == sourceURL {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].ObservationID < result[j].ObservationID
	})

	return result, nil
}

// GetBySweepID retrieves all observations recorded by one sweep, ordered by source_url ASC.
func (s *ObservationStore) GetBySweepID(_ context.Context, sweepID string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.SweepID == sweepID {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceURL < result[j].SourceURL
	})

	return result, nil
}
