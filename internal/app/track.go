package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"price-monitor/internal/domain"
	"price-monitor/internal/reconcile"
	"price-monitor/internal/scrape"
	"price-monitor/internal/storage"
)

// TrackResult is the outcome of a submission.
type TrackResult struct {
	Product *domain.TrackedProduct
	Created bool // the listing was scraped and inserted by this call
}

// Track starts monitoring a listing. A new URL is scraped once and seeded
// with a one-sample history; an already tracked URL is left as is. When
// email is set it is added to the product's subscribers.
func Track(ctx context.Context, products storage.ProductStore, scraper scrape.Scraper, sourceURL, email string, now time.Time) (*TrackResult, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if err := scrape.ValidateProductURL(sourceURL); err != nil {
		return nil, err
	}

	res := &TrackResult{}
	_, err := products.GetByURL(ctx, sourceURL)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		snap, err := scraper.Scrape(ctx, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", sourceURL, err)
		}
		if snap.SourceURL == "" {
			snap.SourceURL = sourceURL
		}
		p, err := reconcile.Seed(snap, now)
		if err != nil {
			return nil, err
		}
		err = products.Insert(ctx, p)
		switch {
		case err == nil:
			res.Created = true
		case errors.Is(err, storage.ErrDuplicateKey):
			// tracked concurrently, keep the existing record
		default:
			return nil, fmt.Errorf("insert %s: %w", sourceURL, err)
		}
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", sourceURL, err)
	}

	if email = strings.TrimSpace(email); email != "" {
		if err := products.AddSubscriber(ctx, sourceURL, domain.Subscriber{Email: email}); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", email, err)
		}
	}

	p, err := products.GetByURL(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sourceURL, err)
	}
	res.Product = p
	return res, nil
}
