package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"price-monitor/internal/storage"
	"price-monitor/internal/sweep"
)

// Generator produces reports from sweep results.
type Generator struct {
	observations storage.ObservationStore // optional
	now          func() time.Time         // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. observations may be nil.
func NewGenerator(observations storage.ObservationStore) *Generator {
	return &Generator{
		observations: observations,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one sweep.
func (g *Generator) Generate(ctx context.Context, sr *sweep.Report) (*Report, error) {
	if sr == nil {
		return nil, fmt.Errorf("generate report: nil sweep report")
	}

	r := &Report{
		GeneratedAt: g.now(),
		SweepID:     sr.SweepID,
		StartedAt:   sr.StartedAt,
		FinishedAt:  sr.FinishedAt,
		Summary: Summary{
			Processed:          sr.Processed,
			ScrapeFailed:       sr.ScrapeFailed,
			Notified:           sr.Notified,
			DispatchFailed:     sr.DispatchFailed,
			PersistFailed:      sr.PersistFailed,
			ReconcileFailed:    sr.ReconcileFailed,
			Cancelled:          sr.Cancelled,
			ObservationsFailed: sr.ObservationsFailed,
		},
	}

	events := make(map[string]int)
	for _, o := range sr.Outcomes {
		r.Products = append(r.Products, productRow(o))
		if o.Event != "" {
			events[string(o.Event)]++
		}
		if o.Err != "" {
			r.Failures = append(r.Failures, FailureRow{
				SourceURL: o.SourceURL,
				State:     string(o.State),
				Error:     o.Err,
			})
		}
	}
	r.Events = sortedEventCounts(events)

	if g.observations != nil {
		history, err := g.generateHistory(ctx, sr)
		if err != nil {
			return nil, err
		}
		r.History = history
	}

	return r, nil
}

func productRow(o sweep.Outcome) ProductRow {
	row := ProductRow{
		SourceURL: o.SourceURL,
		State:     string(o.State),
		Event:     string(o.Event),
	}
	for _, s := range []sweep.State{sweep.StateNotified, sweep.StateNoNotification, sweep.StateDispatchFailed} {
		if o.Reached(s) {
			row.Delivery = string(s)
		}
	}
	if p := o.Updated; p != nil {
		row.Title = p.Title
		row.Currency = p.Currency
		row.CurrentPrice = p.CurrentPrice.String()
		row.LowestPrice = p.LowestPrice.String()
		row.HighestPrice = p.HighestPrice.String()
		row.AveragePrice = p.AveragePrice.StringFixed(2)
		row.Samples = len(p.PriceHistory)
		row.Subscribers = len(p.Subscribers)
	}
	return row
}

func sortedEventCounts(events map[string]int) []EventCountRow {
	rows := make([]EventCountRow, 0, len(events))
	for e, n := range events {
		rows = append(rows, EventCountRow{Event: e, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Event < rows[j].Event })
	return rows
}

// generateHistory loads recorded observations for every product in the sweep.
func (g *Generator) generateHistory(ctx context.Context, sr *sweep.Report) ([]HistoryRow, error) {
	var rows []HistoryRow
	for _, o := range sr.Outcomes {
		if o.State == sweep.StateCancelled {
			continue
		}
		obs, err := g.observations.GetBySourceURL(ctx, o.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("load observations for %s: %w", o.SourceURL, err)
		}
		if len(obs) == 0 {
			continue
		}

		row := HistoryRow{
			SourceURL:      o.SourceURL,
			Observations:   len(obs),
			FirstObserved:  obs[0].ObservedAt,
			LatestObserved: obs[len(obs)-1].ObservedAt,
		}
		for _, ob := range obs {
			if ob.Event.IsNotifiable() {
				row.Notifications++
				row.LastEvent = string(ob.Event)
				row.LastEventAt = ob.ObservedAt
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
