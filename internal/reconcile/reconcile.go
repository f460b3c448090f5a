// Package reconcile merges a fresh scrape into a stored product record.
//
// Reconcile is pure: the stored record and its history are never mutated,
// the updated record is a fresh copy. Persistence is the caller's job.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"price-monitor/internal/classify"
	"price-monitor/internal/domain"
	"price-monitor/internal/stats"
)

// ErrURLMismatch is returned when the snapshot belongs to a different listing.
var ErrURLMismatch = errors.New("snapshot source url does not match product")

// ErrNoPrice is returned when a listing cannot be seeded without a price.
var ErrNoPrice = errors.New("snapshot has no price")

// Observation is the outcome of one scrape within a sweep.
// Exactly one of Snapshot or ScrapeErr is expected to be set.
type Observation struct {
	Snapshot   *domain.ProductSnapshot
	ScrapeErr  error
	ObservedAt time.Time
	SweepID    string
}

// Failed reports whether the scrape produced no usable snapshot.
func (o Observation) Failed() bool {
	return o.ScrapeErr != nil || o.Snapshot == nil
}

// Result is the reconciled record plus the event classified against the pre-update state.
type Result struct {
	Product  *domain.TrackedProduct
	Event    domain.EventKind
	Appended bool // a new sample was added to the history
}

// Reconciler merges observations using a configured classifier.
type Reconciler struct {
	classifier *classify.Classifier
}

// New creates a Reconciler. A nil classifier uses default thresholds.
func New(c *classify.Classifier) *Reconciler {
	if c == nil {
		c = classify.New(classify.DefaultThresholds())
	}
	return &Reconciler{classifier: c}
}

// Reconcile produces the updated record and the notification event.
//
// On a failed scrape the history and aggregates are left untouched and the
// event is SOURCE_UNAVAILABLE. On success the snapshot fields are overwritten,
// one sample is appended and aggregates are recomputed. A snapshot without a
// price (an unavailable listing) updates stock and listing details only.
//
// Retrying the same sweep is idempotent: if the last sample already carries
// obs.SweepID, no second sample is appended.
func (r *Reconciler) Reconcile(stored *domain.TrackedProduct, obs Observation) (*Result, error) {
	if stored == nil {
		return nil, fmt.Errorf("reconcile: nil product")
	}
	if len(stored.PriceHistory) == 0 {
		return nil, fmt.Errorf("reconcile %s: %w", stored.SourceURL, stats.ErrInvalidHistory)
	}

	prev := classify.PreviousFromProduct(stored)
	updated := stored.Clone()

	if obs.Failed() {
		return &Result{
			Product: updated,
			Event:   r.classifier.Classify(prev, classify.Fresh{Failed: true}),
		}, nil
	}

	snap := obs.Snapshot
	if snap.SourceURL != "" && snap.SourceURL != stored.SourceURL {
		return nil, fmt.Errorf("reconcile %s (got %s): %w", stored.SourceURL, snap.SourceURL, ErrURLMismatch)
	}

	event := r.classifier.Classify(prev, classify.FreshFromSnapshot(snap))

	applySnapshot(updated, snap)

	appended := false
	if snap.HasPrice() && !alreadyRecorded(updated.PriceHistory, obs.SweepID) {
		updated.PriceHistory = append(updated.PriceHistory, domain.PriceSample{
			Price:      snap.CurrentPrice,
			ObservedAt: obs.ObservedAt,
			SweepID:    obs.SweepID,
		})
		appended = true
	}

	agg, err := stats.Compute(updated.PriceHistory)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", stored.SourceURL, err)
	}
	updated.LowestPrice = agg.Lowest
	updated.HighestPrice = agg.Highest
	updated.AveragePrice = agg.Average
	updated.UpdatedAt = obs.ObservedAt

	return &Result{
		Product:  updated,
		Event:    event,
		Appended: appended,
	}, nil
}

// applySnapshot overwrites the latest-known snapshot fields. The price fields
// keep their last known values when the snapshot shows no price.
func applySnapshot(p *domain.TrackedProduct, s *domain.ProductSnapshot) {
	p.Title = s.Title
	if s.HasPrice() {
		p.CurrentPrice = s.CurrentPrice
		p.OriginalPrice = s.OriginalPrice
		p.DiscountRate = s.DiscountRate
		p.Currency = s.Currency
	}
	p.StockStatus = s.StockStatus
	p.ImageURL = s.ImageURL
	p.Category = s.Category
	p.ReviewsCount = s.ReviewsCount
	p.Stars = s.Stars
	p.Description = s.Description
}

// alreadyRecorded reports whether the last sample came from the given sweep.
func alreadyRecorded(history []domain.PriceSample, sweepID string) bool {
	if sweepID == "" || len(history) == 0 {
		return false
	}
	return history[len(history)-1].SweepID == sweepID
}

// Seed builds the initial record for a newly tracked listing: the snapshot
// fields, a one-sample history and aggregates over it.
func Seed(snap *domain.ProductSnapshot, observedAt time.Time) (*domain.TrackedProduct, error) {
	if snap == nil || snap.SourceURL == "" {
		return nil, fmt.Errorf("seed: snapshot without source url")
	}
	if !snap.HasPrice() {
		return nil, fmt.Errorf("seed %s: %w", snap.SourceURL, ErrNoPrice)
	}

	p := &domain.TrackedProduct{
		SourceURL: snap.SourceURL,
		PriceHistory: []domain.PriceSample{
			{Price: snap.CurrentPrice, ObservedAt: observedAt},
		},
		CreatedAt: observedAt,
		UpdatedAt: observedAt,
	}
	applySnapshot(p, snap)

	agg, err := stats.Compute(p.PriceHistory)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", snap.SourceURL, err)
	}
	p.LowestPrice = agg.Lowest
	p.HighestPrice = agg.Highest
	p.AveragePrice = agg.Average
	return p, nil
}
