package sweep

import (
	"time"

	"price-monitor/internal/domain"
)

// Outcome is the result of one product's unit of work.
type Outcome struct {
	SourceURL string
	State     State   // terminal state
	Trace     []State // every state the unit passed through, in order
	Event     domain.EventKind
	Updated   *domain.TrackedProduct // persisted record; nil unless persisted
	Err       string                 // first error that degraded or ended the unit
}

// Reached reports whether the unit passed through s.
func (o Outcome) Reached(s State) bool {
	for _, t := range o.Trace {
		if t == s {
			return true
		}
	}
	return false
}

// Report summarises one sweep.
type Report struct {
	SweepID    string
	StartedAt  time.Time
	FinishedAt time.Time

	Processed       int // units that ran to a terminal state other than CANCELLED
	ScrapeFailed    int
	Notified        int
	DispatchFailed  int
	PersistFailed   int
	ReconcileFailed int
	Cancelled       int

	// ObservationsFailed counts observations the analytics sink rejected.
	ObservationsFailed int

	// Outcomes are in the order the products were loaded.
	Outcomes []Outcome
}

// Duration returns how long the sweep ran.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Updated returns the records persisted by this sweep.
func (r *Report) Updated() []*domain.TrackedProduct {
	var out []*domain.TrackedProduct
	for _, o := range r.Outcomes {
		if o.Updated != nil {
			out = append(out, o.Updated)
		}
	}
	return out
}

// Failures returns outcomes that carry an error.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != "" {
			out = append(out, o)
		}
	}
	return out
}

// tally fills the counters from Outcomes.
func (r *Report) tally() {
	for _, o := range r.Outcomes {
		if o.State == StateCancelled {
			r.Cancelled++
			continue
		}
		r.Processed++
		if o.Reached(StateScrapeFailed) {
			r.ScrapeFailed++
		}
		if o.Reached(StateNotified) {
			r.Notified++
		}
		if o.Reached(StateDispatchFailed) {
			r.DispatchFailed++
		}
		switch o.State {
		case StatePersistFailed:
			r.PersistFailed++
		case StateReconcileFailed:
			r.ReconcileFailed++
		}
	}
}
