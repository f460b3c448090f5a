package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
	"price-monitor/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds multiple observations. Fails entire batch on duplicate observation_id.
func (s *ObservationStore) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (err error) {
	if len(obs) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_observations", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(obs))
	ids := make([]string, 0, len(obs))
	for _, o := range obs {
		if o == nil || o.ObservationID == "" || o.SourceURL == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[o.ObservationID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[o.ObservationID] = struct{}{}
		ids = append(ids, o.ObservationID)
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	var count uint64
	err = s.conn.QueryRow(ctx, `
		SELECT count(*) FROM price_observations
		WHERE observation_id IN (?)
	`, ids).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			observation_id, sweep_id, source_url, observed_at,
			price, currency, stock_status, event
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		err = batch.Append(
			o.ObservationID, o.SweepID, o.SourceURL, o.ObservedAt.UTC(),
			o.Price, o.Currency, string(o.StockStatus), string(o.Event),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySourceURL retrieves all observations for a product, ordered by observed_at ASC.
func (s *ObservationStore) GetBySourceURL(ctx context.Context, sourceURL string) (_ []*domain.PriceObservation, err error) {
	defer func(start time.Time) { observe("get_observations_by_url", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT observation_id, sweep_id, source_url, observed_at,
			price, currency, stock_status, event
		FROM price_observations FINAL
		WHERE source_url = ?
		ORDER BY observed_at ASC, observation_id ASC
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("query by source url: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetBySweepID retrieves all observations recorded by one sweep, ordered by source_url ASC.
func (s *ObservationStore) GetBySweepID(ctx context.Context, sweepID string) (_ []*domain.PriceObservation, err error) {
	defer func(start time.Time) { observe("get_observations_by_sweep", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT observation_id, sweep_id, source_url, observed_at,
			price, currency, stock_status, event
		FROM price_observations FINAL
		WHERE sweep_id = ?
		ORDER BY source_url ASC
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query by sweep id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]*domain.PriceObservation, error) {
	var result []*domain.PriceObservation

	for rows.Next() {
		var o domain.PriceObservation
		var price decimal.Decimal
		var stock, event string

		err := rows.Scan(
			&o.ObservationID, &o.SweepID, &o.SourceURL, &o.ObservedAt,
			&price, &o.Currency, &stock, &event,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		o.Price = price
		o.StockStatus = domain.StockStatus(stock)
		o.Event = domain.EventKind(event)
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return result, nil
}
