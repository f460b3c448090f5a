package reporting

import "time"

// Report is the rendered view of one sweep.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	SweepID     string
	StartedAt   time.Time
	FinishedAt  time.Time

	Summary Summary

	// Events counts classified events by kind (sorted by kind).
	Events []EventCountRow

	// Products has one row per product, in load order.
	Products []ProductRow

	// Failures lists products whose unit carried an error.
	Failures []FailureRow

	// History is filled when an observation store is available.
	History []HistoryRow
}

// Summary mirrors the sweep counters.
type Summary struct {
	Processed          int
	ScrapeFailed       int
	Notified           int
	DispatchFailed     int
	PersistFailed      int
	ReconcileFailed    int
	Cancelled          int
	ObservationsFailed int
}

// EventCountRow is one row of the event table.
type EventCountRow struct {
	Event string
	Count int
}

// ProductRow is one product's result.
type ProductRow struct {
	SourceURL    string
	Title        string
	State        string
	Event        string
	Delivery     string // NOTIFIED, NO_NOTIFICATION, DISPATCH_FAILED or empty
	Currency     string
	CurrentPrice string
	LowestPrice  string
	HighestPrice string
	AveragePrice string
	Samples      int
	Subscribers  int
}

// FailureRow describes one degraded or failed unit.
type FailureRow struct {
	SourceURL string
	State     string
	Error     string
}

// HistoryRow summarises the recorded observations of one product.
type HistoryRow struct {
	SourceURL      string
	Observations   int
	Notifications  int    // observations with a notifiable event
	LastEvent      string // most recent notifiable event, empty if none
	LastEventAt    time.Time
	FirstObserved  time.Time
	LatestObserved time.Time
}
