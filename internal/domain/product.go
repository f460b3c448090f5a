package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is one observed price in a product's history.
// Samples are immutable once recorded and only ever appended.
type PriceSample struct {
	Price      decimal.Decimal // observed price
	ObservedAt time.Time       // when the price was observed
	SweepID    string          // sweep that appended the sample, empty for the seed sample
}

// Subscriber is a user interested in notifications for a product.
type Subscriber struct {
	Email string
}

// TrackedProduct represents one monitored listing.
// Corresponds to tracked_products table in PostgreSQL.
type TrackedProduct struct {
	SourceURL string // PRIMARY KEY, stable identity across sweeps

	// Latest snapshot, overwritten every successful sweep
	Title         string
	CurrentPrice  decimal.Decimal
	OriginalPrice decimal.Decimal
	Currency      string
	StockStatus   StockStatus
	ImageURL      string
	DiscountRate  decimal.Decimal // percent off the original price
	Category      string
	ReviewsCount  int
	Stars         decimal.Decimal
	Description   string

	// History and aggregates derived from it
	PriceHistory []PriceSample
	LowestPrice  decimal.Decimal
	HighestPrice decimal.Decimal
	AveragePrice decimal.Decimal

	Subscribers []Subscriber // read-only to the sweep

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriberEmails returns the subscriber address list.
func (p *TrackedProduct) SubscriberEmails() []string {
	emails := make([]string, 0, len(p.Subscribers))
	for _, s := range p.Subscribers {
		emails = append(emails, s.Email)
	}
	return emails
}

// Clone returns a deep copy of the product.
// History and subscriber slices are copied so the clone can be mutated freely.
func (p *TrackedProduct) Clone() *TrackedProduct {
	c := *p
	if p.PriceHistory != nil {
		c.PriceHistory = make([]PriceSample, len(p.PriceHistory))
		copy(c.PriceHistory, p.PriceHistory)
	}
	if p.Subscribers != nil {
		c.Subscribers = make([]Subscriber, len(p.Subscribers))
		copy(c.Subscribers, p.Subscribers)
	}
	return &c
}

// ProductSnapshot is a point-in-time scraped observation of a listing.
type ProductSnapshot struct {
	SourceURL     string
	Title         string
	CurrentPrice  decimal.Decimal
	OriginalPrice decimal.Decimal
	Currency      string
	StockStatus   StockStatus
	ImageURL      string
	DiscountRate  decimal.Decimal
	Category      string
	ReviewsCount  int
	Stars         decimal.Decimal
	Description   string
}

// HasPrice reports whether the listing showed a price. Unavailable listings
// may not.
func (s *ProductSnapshot) HasPrice() bool {
	return s.CurrentPrice.IsPositive()
}
