package memory

import (
	"context"
	"sort"
	"sync"

	"price-monitor/internal/domain"
	"price-monitor/internal/storage"
)

// ProductStore is an in-memory implementation of storage.ProductStore.
type ProductStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrackedProduct // keyed by source_url
}

// NewProductStore creates a new in-memory product store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		data: make(map[string]*domain.TrackedProduct),
	}
}

// Compile-time interface check.
var _ storage.ProductStore = (*ProductStore)(nil)

// Insert adds a new product. Returns ErrDuplicateKey if source_url exists.
func (s *ProductStore) Insert(_ context.Context, p *domain.TrackedProduct) error {
	if p == nil || p.SourceURL == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.SourceURL]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[p.SourceURL] = p.Clone()
	return nil
}

// GetByURL retrieves a product by its source URL. Returns ErrNotFound if not exists.
func (s *ProductStore) GetByURL(_ context.Context, sourceURL string) (*domain.TrackedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[sourceURL]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// FindAll retrieves every tracked product, ordered by created_at ASC, source_url ASC.
func (s *ProductStore) FindAll(_ context.Context) ([]*domain.TrackedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrackedProduct, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].SourceURL < result[j].SourceURL
	})

	return result, nil
}

// UpsertByURL writes the record under sourceURL, inserting it if absent.
// Subscribers are owned by AddSubscriber and are kept from the stored record.
func (s *ProductStore) UpsertByURL(_ context.Context, sourceURL string, p *domain.TrackedProduct) (*domain.TrackedProduct, error) {
	if p == nil || sourceURL == "" {
		return nil, storage.ErrInvalidInput
	}
	if p.SourceURL != "" && p.SourceURL != sourceURL {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Clone()
	next.SourceURL = sourceURL

	if existing, ok := s.data[sourceURL]; ok {
		if !storage.IsHistoryPrefix(existing.PriceHistory, next.PriceHistory) {
			return nil, storage.ErrHistoryRewrite
		}
		next.Subscribers = existing.Clone().Subscribers
		next.CreatedAt = existing.CreatedAt
	}

	s.data[sourceURL] = next
	return next.Clone(), nil
}

// AddSubscriber adds an email to a product's subscribers.
func (s *ProductStore) AddSubscriber(_ context.Context, sourceURL string, sub domain.Subscriber) error {
	if sub.Email == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[sourceURL]
	if !ok {
		return storage.ErrNotFound
	}
	for _, existing := range p.Subscribers {
		if existing.Email == sub.Email {
			return nil
		}
	}
	p.Subscribers = append(p.Subscribers, sub)
	return nil
}
