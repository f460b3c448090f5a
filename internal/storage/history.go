package storage

import "price-monitor/internal/domain"

// IsHistoryPrefix reports whether stored is an unchanged prefix of next,
// i.e. next only appends samples.
func IsHistoryPrefix(stored, next []domain.PriceSample) bool {
	if len(next) < len(stored) {
		return false
	}
	for i, s := range stored {
		n := next[i]
		if !s.Price.Equal(n.Price) || !s.ObservedAt.Equal(n.ObservedAt) || s.SweepID != n.SweepID {
			return false
		}
	}
	return true
}
