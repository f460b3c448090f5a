package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one sweep observation exported for analytics.
// Corresponds to price_observations table in ClickHouse.
type PriceObservation struct {
	ObservationID string // deterministic hash of (source_url, sweep_id)
	SweepID       string
	SourceURL     string
	ObservedAt    time.Time
	Price         decimal.Decimal
	Currency      string
	StockStatus   StockStatus
	Event         EventKind
}
