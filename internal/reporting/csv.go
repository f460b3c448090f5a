package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders one row per product.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{
		"sweep_id", "source_url", "title", "state", "event", "delivery",
		"currency", "current_price", "lowest_price", "highest_price", "average_price",
		"samples", "subscribers", "error",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	errs := make(map[string]string, len(r.Failures))
	for _, f := range r.Failures {
		errs[f.SourceURL] = f.Error
	}

	for _, p := range r.Products {
		record := []string{
			r.SweepID,
			p.SourceURL,
			p.Title,
			p.State,
			p.Event,
			p.Delivery,
			p.Currency,
			p.CurrentPrice,
			p.LowestPrice,
			p.HighestPrice,
			p.AveragePrice,
			strconv.Itoa(p.Samples),
			strconv.Itoa(p.Subscribers),
			errs[p.SourceURL],
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
