package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
	"price-monitor/internal/storage"
)

// ProductStore implements storage.ProductStore using PostgreSQL.
// Products live in tracked_products, history in price_samples (one row per
// sample, ordered by seq) and subscribers in product_subscribers.
type ProductStore struct {
	pool *Pool
}

// NewProductStore creates a new ProductStore.
func NewProductStore(pool *Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProductStore = (*ProductStore)(nil)

// Numeric columns are read as text and written through a text cast so that
// prices round-trip through decimal.Decimal without float conversion.
const selectProductColumns = `
	source_url, title, current_price::text, original_price::text, currency, stock_status,
	image_url, discount_rate::text, category, reviews_count, stars::text, description,
	lowest_price::text, highest_price::text, average_price::text, created_at, updated_at
`

// Insert adds a new product with its seed history. Returns ErrDuplicateKey if source_url exists.
func (s *ProductStore) Insert(ctx context.Context, p *domain.TrackedProduct) (err error) {
	if p == nil || p.SourceURL == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_product", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tracked_products (
			source_url, title, current_price, original_price, currency, stock_status,
			image_url, discount_rate, category, reviews_count, stars, description,
			lowest_price, highest_price, average_price, created_at, updated_at
		) VALUES (
			$1, $2, $3::text::numeric, $4::text::numeric, $5, $6,
			$7, $8::text::numeric, $9, $10, $11::text::numeric, $12,
			$13::text::numeric, $14::text::numeric, $15::text::numeric, $16, $17
		)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = tx.Exec(ctx, query,
		p.SourceURL,
		p.Title,
		p.CurrentPrice.String(),
		p.OriginalPrice.String(),
		p.Currency,
		string(p.StockStatus),
		p.ImageURL,
		p.DiscountRate.String(),
		p.Category,
		p.ReviewsCount,
		p.Stars.String(),
		p.Description,
		p.LowestPrice.String(),
		p.HighestPrice.String(),
		p.AveragePrice.String(),
		createdAt,
		updatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert product: %w", err)
	}

	if err := insertSamples(ctx, tx, p.SourceURL, 0, p.PriceHistory); err != nil {
		return err
	}
	if err := insertSubscribers(ctx, tx, p.SourceURL, p.Subscribers); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByURL retrieves a product by its source URL. Returns ErrNotFound if not exists.
func (s *ProductStore) GetByURL(ctx context.Context, sourceURL string) (*domain.TrackedProduct, error) {
	start := time.Now()
	p, err := getProduct(ctx, s.pool, sourceURL)
	if err == storage.ErrNotFound {
		observe("get_product", start, nil)
		return nil, err
	}
	observe("get_product", start, err)
	return p, err
}

// FindAll retrieves every tracked product, ordered by created_at ASC, source_url ASC.
func (s *ProductStore) FindAll(ctx context.Context) (_ []*domain.TrackedProduct, err error) {
	defer func(start time.Time) { observe("find_all_products", start, err) }(time.Now())

	query := `SELECT ` + selectProductColumns + `
		FROM tracked_products
		ORDER BY created_at ASC, source_url ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find all products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	byURL := make(map[string]*domain.TrackedProduct, len(products))
	for _, p := range products {
		byURL[p.SourceURL] = p
	}

	samples, err := loadAllSamples(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	for url, history := range samples {
		if p, ok := byURL[url]; ok {
			p.PriceHistory = history
		}
	}

	subs, err := loadAllSubscribers(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	for url, list := range subs {
		if p, ok := byURL[url]; ok {
			p.Subscribers = list
		}
	}

	return products, nil
}

// UpsertByURL writes the record under sourceURL, inserting it if absent.
// Samples already stored must be an unchanged prefix of p.PriceHistory;
// only the new tail is inserted. Subscribers are not touched by an update.
func (s *ProductStore) UpsertByURL(ctx context.Context, sourceURL string, p *domain.TrackedProduct) (_ *domain.TrackedProduct, err error) {
	if p == nil || sourceURL == "" {
		return nil, storage.ErrInvalidInput
	}
	if p.SourceURL != "" && p.SourceURL != sourceURL {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("upsert_product", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the row so concurrent writers append in turn.
	var exists bool
	err = tx.QueryRow(ctx, `SELECT true FROM tracked_products WHERE source_url = $1 FOR UPDATE`, sourceURL).Scan(&exists)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("lock product: %w", err)
	}

	var stored []domain.PriceSample
	if exists {
		stored, err = loadSamples(ctx, tx, sourceURL)
		if err != nil {
			return nil, err
		}
		if !storage.IsHistoryPrefix(stored, p.PriceHistory) {
			return nil, storage.ErrHistoryRewrite
		}
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	query := `
		INSERT INTO tracked_products (
			source_url, title, current_price, original_price, currency, stock_status,
			image_url, discount_rate, category, reviews_count, stars, description,
			lowest_price, highest_price, average_price, created_at, updated_at
		) VALUES (
			$1, $2, $3::text::numeric, $4::text::numeric, $5, $6,
			$7, $8::text::numeric, $9, $10, $11::text::numeric, $12,
			$13::text::numeric, $14::text::numeric, $15::text::numeric, $16, $17
		)
		ON CONFLICT (source_url) DO UPDATE SET
			title = EXCLUDED.title,
			current_price = EXCLUDED.current_price,
			original_price = EXCLUDED.original_price,
			currency = EXCLUDED.currency,
			stock_status = EXCLUDED.stock_status,
			image_url = EXCLUDED.image_url,
			discount_rate = EXCLUDED.discount_rate,
			category = EXCLUDED.category,
			reviews_count = EXCLUDED.reviews_count,
			stars = EXCLUDED.stars,
			description = EXCLUDED.description,
			lowest_price = EXCLUDED.lowest_price,
			highest_price = EXCLUDED.highest_price,
			average_price = EXCLUDED.average_price,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.Exec(ctx, query,
		sourceURL,
		p.Title,
		p.CurrentPrice.String(),
		p.OriginalPrice.String(),
		p.Currency,
		string(p.StockStatus),
		p.ImageURL,
		p.DiscountRate.String(),
		p.Category,
		p.ReviewsCount,
		p.Stars.String(),
		p.Description,
		p.LowestPrice.String(),
		p.HighestPrice.String(),
		p.AveragePrice.String(),
		createdAt,
		updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	if err := insertSamples(ctx, tx, sourceURL, len(stored), p.PriceHistory[len(stored):]); err != nil {
		return nil, err
	}
	if !exists {
		if err := insertSubscribers(ctx, tx, sourceURL, p.Subscribers); err != nil {
			return nil, err
		}
	}

	result, err := getProduct(ctx, tx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// AddSubscriber adds an email to a product's subscribers.
func (s *ProductStore) AddSubscriber(ctx context.Context, sourceURL string, sub domain.Subscriber) (err error) {
	if sub.Email == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("add_subscriber", start, err) }(time.Now())

	query := `
		INSERT INTO product_subscribers (source_url, email)
		VALUES ($1, $2)
		ON CONFLICT (source_url, email) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, sourceURL, sub.Email); err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// getProduct loads one product with its history and subscribers.
func getProduct(ctx context.Context, q querier, sourceURL string) (*domain.TrackedProduct, error) {
	query := `SELECT ` + selectProductColumns + `
		FROM tracked_products
		WHERE source_url = $1
	`

	p, err := scanProduct(q.QueryRow(ctx, query, sourceURL))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product by url: %w", err)
	}

	if p.PriceHistory, err = loadSamples(ctx, q, sourceURL); err != nil {
		return nil, err
	}
	if p.Subscribers, err = loadSubscribers(ctx, q, sourceURL); err != nil {
		return nil, err
	}
	return p, nil
}

// insertSamples appends samples starting at sequence number firstSeq.
func insertSamples(ctx context.Context, tx pgx.Tx, sourceURL string, firstSeq int, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	query := `
		INSERT INTO price_samples (source_url, seq, price, observed_at, sweep_id)
		VALUES ($1, $2, $3::text::numeric, $4, $5)
	`

	batch := &pgx.Batch{}
	for i, sample := range samples {
		batch.Queue(query, sourceURL, firstSeq+i, sample.Price.String(), sample.ObservedAt, sample.SweepID)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for range samples {
		if _, err := br.Exec(); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price sample: %w", err)
		}
	}
	return nil
}

func insertSubscribers(ctx context.Context, tx pgx.Tx, sourceURL string, subs []domain.Subscriber) error {
	for _, sub := range subs {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_subscribers (source_url, email)
			VALUES ($1, $2)
			ON CONFLICT (source_url, email) DO NOTHING
		`, sourceURL, sub.Email)
		if err != nil {
			return fmt.Errorf("insert subscriber: %w", err)
		}
	}
	return nil
}

func loadSamples(ctx context.Context, q querier, sourceURL string) ([]domain.PriceSample, error) {
	rows, err := q.Query(ctx, `
		SELECT price::text, observed_at, sweep_id
		FROM price_samples
		WHERE source_url = $1
		ORDER BY seq ASC
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("get price samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.PriceSample
	for rows.Next() {
		var priceStr string
		var sample domain.PriceSample
		if err := rows.Scan(&priceStr, &sample.ObservedAt, &sample.SweepID); err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}
		if sample.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse sample price: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}
	return samples, nil
}

func loadAllSamples(ctx context.Context, q querier) (map[string][]domain.PriceSample, error) {
	rows, err := q.Query(ctx, `
		SELECT source_url, price::text, observed_at, sweep_id
		FROM price_samples
		ORDER BY source_url ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all price samples: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.PriceSample)
	for rows.Next() {
		var url, priceStr string
		var sample domain.PriceSample
		if err := rows.Scan(&url, &priceStr, &sample.ObservedAt, &sample.SweepID); err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}
		if sample.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse sample price: %w", err)
		}
		result[url] = append(result[url], sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}
	return result, nil
}

func loadSubscribers(ctx context.Context, q querier, sourceURL string) ([]domain.Subscriber, error) {
	rows, err := q.Query(ctx, `
		SELECT email FROM product_subscribers
		WHERE source_url = $1
		ORDER BY created_at ASC, email ASC
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("get subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.Email); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return subs, nil
}

func loadAllSubscribers(ctx context.Context, q querier) (map[string][]domain.Subscriber, error) {
	rows, err := q.Query(ctx, `
		SELECT source_url, email FROM product_subscribers
		ORDER BY source_url ASC, created_at ASC, email ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all subscribers: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.Subscriber)
	for rows.Next() {
		var url string
		var sub domain.Subscriber
		if err := rows.Scan(&url, &sub.Email); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		result[url] = append(result[url], sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return result, nil
}

// productRow holds the text-encoded numeric columns of one row.
type productRow struct {
	p                                  domain.TrackedProduct
	stock                              string
	current, original, discount, stars string
	lowest, highest, average           string
}

func (r *productRow) dest() []any {
	return []any{
		&r.p.SourceURL, &r.p.Title, &r.current, &r.original, &r.p.Currency, &r.stock,
		&r.p.ImageURL, &r.discount, &r.p.Category, &r.p.ReviewsCount, &r.stars, &r.p.Description,
		&r.lowest, &r.highest, &r.average, &r.p.CreatedAt, &r.p.UpdatedAt,
	}
}

func (r *productRow) product() (*domain.TrackedProduct, error) {
	p := r.p
	p.StockStatus = domain.StockStatus(r.stock)

	fields := []struct {
		name string
		text string
		dst  *decimal.Decimal
	}{
		{"current_price", r.current, &p.CurrentPrice},
		{"original_price", r.original, &p.OriginalPrice},
		{"discount_rate", r.discount, &p.DiscountRate},
		{"stars", r.stars, &p.Stars},
		{"lowest_price", r.lowest, &p.LowestPrice},
		{"highest_price", r.highest, &p.HighestPrice},
		{"average_price", r.average, &p.AveragePrice},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return &p, nil
}

// scanProduct scans a single row into a TrackedProduct (without history).
func scanProduct(row pgx.Row) (*domain.TrackedProduct, error) {
	var r productRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.product()
}

// scanProducts scans multiple rows into a slice of TrackedProduct (without history).
func scanProducts(rows pgx.Rows) ([]*domain.TrackedProduct, error) {
	defer rows.Close()

	var products []*domain.TrackedProduct
	for rows.Next() {
		var r productRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		p, err := r.product()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}
