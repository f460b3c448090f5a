// Package stats computes price aggregates over a product's history.
// All functions are pure and operate on decimal prices, so no float
// accumulation error creeps into stored aggregates.
package stats

import (
	"errors"

	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
)

// ErrInvalidHistory is returned when aggregates are requested over an empty history.
var ErrInvalidHistory = errors.New("invalid history: no price samples")

// AveragePrecision is the number of decimal places kept in the average.
const AveragePrecision = 8

// Aggregates holds the derived statistics of a price history.
type Aggregates struct {
	Lowest  decimal.Decimal
	Highest decimal.Decimal
	Average decimal.Decimal
}

// Lowest returns the minimum sample price.
func Lowest(history []domain.PriceSample) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, ErrInvalidHistory
	}
	lowest := history[0].Price
	for _, s := range history[1:] {
		if s.Price.LessThan(lowest) {
			lowest = s.Price
		}
	}
	return lowest, nil
}

// Highest returns the maximum sample price.
func Highest(history []domain.PriceSample) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, ErrInvalidHistory
	}
	highest := history[0].Price
	for _, s := range history[1:] {
		if s.Price.GreaterThan(highest) {
			highest = s.Price
		}
	}
	return highest, nil
}

// Average returns the arithmetic mean of sample prices, rounded to AveragePrecision places.
func Average(history []domain.PriceSample) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, ErrInvalidHistory
	}
	sum := decimal.Zero
	for _, s := range history {
		sum = sum.Add(s.Price)
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(history))), AveragePrecision), nil
}

// Compute returns lowest, highest and average in a single call.
func Compute(history []domain.PriceSample) (Aggregates, error) {
	if len(history) == 0 {
		return Aggregates{}, ErrInvalidHistory
	}

	lowest, _ := Lowest(history)
	highest, _ := Highest(history)
	average, _ := Average(history)

	return Aggregates{
		Lowest:  lowest,
		Highest: highest,
		Average: average,
	}, nil
}
