// Package classify decides which notification event, if any, a sweep
// produced for a product.
//
// Rules are evaluated in fixed precedence and the first match wins:
//  1. SOURCE_UNAVAILABLE - the scrape produced no usable snapshot
//  2. BACK_IN_STOCK      - out of stock before, in stock now
//  3. NEW_LOWEST_PRICE   - fresh price strictly below the historical lowest
//  4. PRICE_DROP         - fresh price below the previous price by at least the threshold
//
// Going out of stock is recorded in the product but never notified.
package classify

import (
	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
)

// DefaultDropPercent is the default relative price-drop threshold.
var DefaultDropPercent = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// Thresholds configures when a plain price decrease is worth a PRICE_DROP.
// A zero value disables that test. With both disabled any decrease counts.
// With both enabled, meeting either one is enough.
type Thresholds struct {
	DropPercent  decimal.Decimal // minimum decrease relative to previous price, in percent (5 = 5%)
	DropAbsolute decimal.Decimal // minimum decrease in currency units
}

// DefaultThresholds returns thresholds with a 5% relative drop and no absolute floor.
func DefaultThresholds() Thresholds {
	return Thresholds{DropPercent: DefaultDropPercent}
}

// Previous is the stored state of a product before the current sweep.
type Previous struct {
	StockStatus  domain.StockStatus
	CurrentPrice decimal.Decimal
	LowestPrice  decimal.Decimal
	HighestPrice decimal.Decimal
}

// Fresh is the outcome of the current sweep's scrape.
type Fresh struct {
	Failed       bool // scrape produced no structured snapshot
	StockStatus  domain.StockStatus
	CurrentPrice decimal.Decimal
}

// PreviousFromProduct captures the classification inputs of a stored product.
func PreviousFromProduct(p *domain.TrackedProduct) Previous {
	return Previous{
		StockStatus:  p.StockStatus,
		CurrentPrice: p.CurrentPrice,
		LowestPrice:  p.LowestPrice,
		HighestPrice: p.HighestPrice,
	}
}

// FreshFromSnapshot captures the classification inputs of a scrape.
// A nil snapshot is treated as a failed scrape.
func FreshFromSnapshot(s *domain.ProductSnapshot) Fresh {
	if s == nil {
		return Fresh{Failed: true}
	}
	return Fresh{
		StockStatus:  s.StockStatus,
		CurrentPrice: s.CurrentPrice,
	}
}

// Classifier applies the precedence rules with configured thresholds.
type Classifier struct {
	thresholds Thresholds
}

// New creates a Classifier. Negative thresholds are clamped to zero.
func New(t Thresholds) *Classifier {
	if t.DropPercent.IsNegative() {
		t.DropPercent = decimal.Zero
	}
	if t.DropAbsolute.IsNegative() {
		t.DropAbsolute = decimal.Zero
	}
	return &Classifier{thresholds: t}
}

// Thresholds returns the configured thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify returns the single event kind for a (previous, fresh) pair.
func (c *Classifier) Classify(prev Previous, fresh Fresh) domain.EventKind {
	if fresh.Failed {
		return domain.EventSourceUnavailable
	}

	if prev.StockStatus == domain.StockOutOfStock && fresh.StockStatus == domain.StockInStock {
		return domain.EventBackInStock
	}

	// Price events need a price; unavailable listings may show none.
	if !fresh.CurrentPrice.IsPositive() {
		return domain.EventNone
	}

	// Tie with the historical low is not a new low.
	if fresh.CurrentPrice.LessThan(prev.LowestPrice) {
		return domain.EventNewLowestPrice
	}

	if c.isSignificantDrop(prev.CurrentPrice, fresh.CurrentPrice) {
		return domain.EventPriceDrop
	}

	return domain.EventNone
}

// isSignificantDrop reports whether fresh is below previous by at least one threshold.
func (c *Classifier) isSignificantDrop(previous, fresh decimal.Decimal) bool {
	if !fresh.LessThan(previous) {
		return false
	}

	decrease := previous.Sub(fresh)
	pctEnabled := c.thresholds.DropPercent.IsPositive()
	absEnabled := c.thresholds.DropAbsolute.IsPositive()

	if !pctEnabled && !absEnabled {
		return true
	}

	if absEnabled && decrease.GreaterThanOrEqual(c.thresholds.DropAbsolute) {
		return true
	}

	// Relative change is undefined against a non-positive previous price.
	if pctEnabled && previous.IsPositive() {
		pct := decrease.Mul(hundred).Div(previous)
		if pct.GreaterThanOrEqual(c.thresholds.DropPercent) {
			return true
		}
	}

	return false
}

// DropPercent returns the relative decrease from previous to fresh in percent.
// Returns zero when the price did not decrease or previous is not positive.
func DropPercent(previous, fresh decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() || !fresh.LessThan(previous) {
		return decimal.Zero
	}
	return previous.Sub(fresh).Mul(hundred).DivRound(previous, 2)
}
