// Package scrape fetches product listings and turns them into snapshots.
package scrape

import (
	"context"
	"errors"

	"price-monitor/internal/domain"
)

// ErrSourceUnavailable is returned when a listing cannot be fetched or
// parsed into a structured snapshot. Callers treat it as recoverable.
var ErrSourceUnavailable = errors.New("source unavailable")

// Scraper fetches a listing and extracts a structured snapshot.
type Scraper interface {
	// Scrape returns the snapshot for sourceURL.
	// Failures wrap ErrSourceUnavailable unless ctx was cancelled.
	Scrape(ctx context.Context, sourceURL string) (*domain.ProductSnapshot, error)
}
