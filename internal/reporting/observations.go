package reporting

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"price-monitor/internal/domain"
)

// RenderObservationsCSV renders recorded observations, one row each.
func RenderObservationsCSV(obs []*domain.PriceObservation) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"observation_id", "sweep_id", "source_url", "observed_at", "price", "currency", "stock_status", "event"}); err != nil {
		return "", err
	}
	for _, o := range obs {
		record := []string{
			o.ObservationID,
			o.SweepID,
			o.SourceURL,
			o.ObservedAt.UTC().Format(time.RFC3339),
			o.Price.String(),
			o.Currency,
			string(o.StockStatus),
			string(o.Event),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderObservationsMarkdown renders recorded observations. scope names what
// was queried, a sweep ID or a product URL.
func RenderObservationsMarkdown(scope string, obs []*domain.PriceObservation) string {
	var sb strings.Builder

	sb.WriteString("# Recorded Observations\n\n")
	sb.WriteString(fmt.Sprintf("Scope: `%s`\n\n", scope))

	if len(obs) == 0 {
		sb.WriteString("No observations recorded.\n")
		return sb.String()
	}

	sb.WriteString("| Product | Observed | Price | Stock | Event |\n")
	sb.WriteString("|---------|----------|-------|-------|-------|\n")
	for _, o := range obs {
		price := "-"
		if o.Price.IsPositive() {
			price = o.Currency + o.Price.StringFixed(2)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			o.SourceURL, o.ObservedAt.UTC().Format(time.RFC3339), price, orDash(string(o.StockStatus)), o.Event))
	}
	sb.WriteString("\n")
	return sb.String()
}
