package storage

import (
	"context"

	"price-monitor/internal/domain"
)

// ProductStore provides access to tracked_products storage.
// Records are keyed by SourceURL. Price history is append-only: stores
// never drop or reorder samples that were already persisted.
type ProductStore interface {
	// Insert adds a new product. Returns ErrDuplicateKey if source_url exists.
	Insert(ctx context.Context, p *domain.TrackedProduct) error

	// GetByURL retrieves a product by its source URL. Returns ErrNotFound if not exists.
	GetByURL(ctx context.Context, sourceURL string) (*domain.TrackedProduct, error)

	// FindAll retrieves every tracked product, ordered by created_at ASC, source_url ASC.
	FindAll(ctx context.Context) ([]*domain.TrackedProduct, error)

	// UpsertByURL writes the record under sourceURL, inserting it if absent,
	// and returns the stored record.
	UpsertByURL(ctx context.Context, sourceURL string, p *domain.TrackedProduct) (*domain.TrackedProduct, error)

	// AddSubscriber adds an email to a product's subscribers. Adding an existing
	// subscriber is a no-op. Returns ErrNotFound if the product does not exist.
	AddSubscriber(ctx context.Context, sourceURL string, sub domain.Subscriber) error
}

// ObservationStore provides access to price_observations storage (analytics).
type ObservationStore interface {
	// InsertBulk adds multiple observations. Fails entire batch on duplicate observation_id.
	InsertBulk(ctx context.Context, obs []*domain.PriceObservation) error

	// GetBySourceURL retrieves all observations for a product, ordered by observed_at ASC.
	GetBySourceURL(ctx context.Context, sourceURL string) ([]*domain.PriceObservation, error)

	// GetBySweepID retrieves all observations recorded by one sweep, ordered by source_url ASC.
	GetBySweepID(ctx context.Context, sweepID string) ([]*domain.PriceObservation, error)
}
