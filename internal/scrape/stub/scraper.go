// Package stub provides a scripted Scraper for tests and local runs.
package stub

import (
	"context"
	"fmt"
	"sync"

	"price-monitor/internal/domain"
	"price-monitor/internal/scrape"
)

// Scraper returns preconfigured snapshots or failures keyed by URL.
// Unknown URLs fail with scrape.ErrSourceUnavailable.
type Scraper struct {
	mu        sync.Mutex
	snapshots map[string]*domain.ProductSnapshot
	failures  map[string]error
	calls     map[string]int
}

// NewScraper creates an empty stub scraper.
func NewScraper() *Scraper {
	return &Scraper{
		snapshots: make(map[string]*domain.ProductSnapshot),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Compile-time interface check.
var _ scrape.Scraper = (*Scraper)(nil)

// SetSnapshot makes Scrape return snap for its SourceURL.
func (s *Scraper) SetSnapshot(snap *domain.ProductSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *snap
	s.snapshots[snap.SourceURL] = &c
	delete(s.failures, snap.SourceURL)
}

// SetFailure makes Scrape fail for url with err.
func (s *Scraper) SetFailure(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[url] = err
	delete(s.snapshots, url)
}

// Calls returns how many times url was scraped.
func (s *Scraper) Calls(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

// Scrape returns the configured result for url.
func (s *Scraper) Scrape(ctx context.Context, url string) (*domain.ProductSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++

	if err, ok := s.failures[url]; ok {
		return nil, err
	}
	snap, ok := s.snapshots[url]
	if !ok {
		return nil, fmt.Errorf("%w: no stub snapshot for %s", scrape.ErrSourceUnavailable, url)
	}
	c := *snap
	return &c, nil
}
