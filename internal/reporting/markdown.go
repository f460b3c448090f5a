package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Sweep Report\n\n")
	sb.WriteString(fmt.Sprintf("Sweep: `%s`\n\n", r.SweepID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Started: %s | Finished: %s | Duration: %s\n\n",
		r.StartedAt.Format(time.RFC3339), r.FinishedAt.Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt)))

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Processed | %d |\n", s.Processed))
	sb.WriteString(fmt.Sprintf("| Scrape Failed | %d |\n", s.ScrapeFailed))
	sb.WriteString(fmt.Sprintf("| Notified | %d |\n", s.Notified))
	sb.WriteString(fmt.Sprintf("| Dispatch Failed | %d |\n", s.DispatchFailed))
	sb.WriteString(fmt.Sprintf("| Persist Failed | %d |\n", s.PersistFailed))
	if s.ReconcileFailed > 0 {
		sb.WriteString(fmt.Sprintf("| Reconcile Failed | %d |\n", s.ReconcileFailed))
	}
	if s.Cancelled > 0 {
		sb.WriteString(fmt.Sprintf("| Cancelled | %d |\n", s.Cancelled))
	}
	if s.ObservationsFailed > 0 {
		sb.WriteString(fmt.Sprintf("| Observations Not Recorded | %d |\n", s.ObservationsFailed))
	}
	sb.WriteString("\n")

	// Events
	sb.WriteString("## Events\n\n")
	if len(r.Events) > 0 {
		sb.WriteString("| Event | Count |\n")
		sb.WriteString("|-------|-------|\n")
		for _, e := range r.Events {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", e.Event, e.Count))
		}
	} else {
		sb.WriteString("No events classified.\n")
	}
	sb.WriteString("\n")

	// Products
	sb.WriteString("## Products\n\n")
	if len(r.Products) > 0 {
		sb.WriteString("| Product | State | Event | Delivery | Price | Lowest | Highest | Average | Samples |\n")
		sb.WriteString("|---------|-------|-------|----------|-------|--------|---------|---------|---------|\n")
		for _, p := range r.Products {
			name := p.Title
			if name == "" {
				name = p.SourceURL
			}
			sb.WriteString(fmt.Sprintf("| [%s](%s) | %s | %s | %s | %s%s | %s%s | %s%s | %s%s | %d |\n",
				escapeCell(name), p.SourceURL, p.State, orDash(p.Event), orDash(p.Delivery),
				p.Currency, orDash(p.CurrentPrice), p.Currency, orDash(p.LowestPrice),
				p.Currency, orDash(p.HighestPrice), p.Currency, orDash(p.AveragePrice), p.Samples))
		}
	} else {
		sb.WriteString("No tracked products.\n")
	}
	sb.WriteString("\n")

	// Failures
	if len(r.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", f.SourceURL, f.State, escapeCell(f.Error)))
		}
		sb.WriteString("\n")
	}

	// History
	if len(r.History) > 0 {
		sb.WriteString("## Observation History\n\n")
		sb.WriteString("| Product | Observations | Notifications | Last Event | First Seen | Last Seen |\n")
		sb.WriteString("|---------|--------------|---------------|------------|------------|-----------|\n")
		for _, h := range r.History {
			last := "-"
			if h.LastEvent != "" {
				last = fmt.Sprintf("%s (%s)", h.LastEvent, h.LastEventAt.Format(time.RFC3339))
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
				h.SourceURL, h.Observations, h.Notifications, last,
				h.FirstObserved.Format(time.RFC3339), h.LatestObserved.Format(time.RFC3339)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
