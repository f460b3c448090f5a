package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-monitor/internal/domain"
	"price-monitor/internal/storage"
)

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newProduct(url string, prices ...string) *domain.TrackedProduct {
	history := make([]domain.PriceSample, len(prices))
	for i, p := range prices {
		history[i] = domain.PriceSample{
			Price:      decimal.RequireFromString(p),
			ObservedAt: created.Add(time.Duration(i) * time.Hour),
			SweepID:    "seed",
		}
	}
	last := history[len(history)-1].Price
	return &domain.TrackedProduct{
		SourceURL:     url,
		Title:         "Product " + url,
		CurrentPrice:  last,
		OriginalPrice: decimal.RequireFromString("199.99"),
		Currency:      "$",
		StockStatus:   domain.StockInStock,
		DiscountRate:  decimal.NewFromInt(10),
		ReviewsCount:  42,
		Stars:         decimal.RequireFromString("4.5"),
		PriceHistory:  history,
		LowestPrice:   last,
		HighestPrice:  last,
		AveragePrice:  last,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestProductStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	p := newProduct("https://www.amazon.com/dp/A", "129.99")
	p.Subscribers = []domain.Subscriber{{Email: "a@example.com"}}
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByURL(ctx, p.SourceURL)
	require.NoError(t, err)

	assert.Equal(t, p.Title, got.Title)
	assert.True(t, got.CurrentPrice.Equal(p.CurrentPrice))
	assert.True(t, got.OriginalPrice.Equal(p.OriginalPrice))
	assert.True(t, got.Stars.Equal(p.Stars))
	assert.Equal(t, 42, got.ReviewsCount)
	assert.Equal(t, domain.StockInStock, got.StockStatus)
	require.Len(t, got.PriceHistory, 1)
	assert.True(t, got.PriceHistory[0].Price.Equal(decimal.RequireFromString("129.99")))
	assert.Equal(t, "seed", got.PriceHistory[0].SweepID)
	assert.Equal(t, []string{"a@example.com"}, got.SubscriberEmails())

	err = store.Insert(ctx, p)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestProductStore_GetByURL_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewProductStore(pool).GetByURL(context.Background(), "https://www.amazon.com/dp/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProductStore_FindAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	empty, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	b := newProduct("https://www.amazon.com/dp/B", "10", "12")
	a := newProduct("https://www.amazon.com/dp/A", "5")
	c := newProduct("https://www.amazon.com/dp/C", "7")
	c.CreatedAt = created.Add(-time.Hour)
	for _, p := range []*domain.TrackedProduct{b, a, c} {
		require.NoError(t, store.Insert(ctx, p))
	}
	require.NoError(t, store.AddSubscriber(ctx, b.SourceURL, domain.Subscriber{Email: "b@example.com"}))

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, c.SourceURL, all[0].SourceURL)
	assert.Equal(t, a.SourceURL, all[1].SourceURL)
	assert.Equal(t, b.SourceURL, all[2].SourceURL)
	assert.Len(t, all[2].PriceHistory, 2)
	assert.Equal(t, []string{"b@example.com"}, all[2].SubscriberEmails())
	assert.Empty(t, all[1].Subscribers)
}

func TestProductStore_UpsertByURL_AppendsHistory(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	p := newProduct("https://www.amazon.com/dp/A", "100")
	require.NoError(t, store.Insert(ctx, p))
	require.NoError(t, store.AddSubscriber(ctx, p.SourceURL, domain.Subscriber{Email: "x@example.com"}))

	next := p.Clone()
	next.CurrentPrice = decimal.NewFromInt(80)
	next.LowestPrice = decimal.NewFromInt(80)
	next.AveragePrice = decimal.NewFromInt(90)
	next.Subscribers = nil
	next.UpdatedAt = created.Add(24 * time.Hour)
	next.PriceHistory = append(next.PriceHistory, domain.PriceSample{
		Price:      decimal.NewFromInt(80),
		ObservedAt: next.UpdatedAt,
		SweepID:    "sweep-1",
	})

	got, err := store.UpsertByURL(ctx, p.SourceURL, next)
	require.NoError(t, err)
	require.Len(t, got.PriceHistory, 2)
	assert.Equal(t, "sweep-1", got.PriceHistory[1].SweepID)
	assert.True(t, got.LowestPrice.Equal(decimal.NewFromInt(80)))
	assert.True(t, got.AveragePrice.Equal(decimal.NewFromInt(90)))
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(next.UpdatedAt))
	assert.Equal(t, []string{"x@example.com"}, got.SubscriberEmails())

	// Same record again is a no-op for history.
	again, err := store.UpsertByURL(ctx, p.SourceURL, next)
	require.NoError(t, err)
	assert.Len(t, again.PriceHistory, 2)
}

func TestProductStore_UpsertByURL_RejectsRewrite(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	p := newProduct("https://www.amazon.com/dp/A", "100", "90")
	require.NoError(t, store.Insert(ctx, p))

	shorter := p.Clone()
	shorter.PriceHistory = shorter.PriceHistory[:1]
	_, err := store.UpsertByURL(ctx, p.SourceURL, shorter)
	assert.ErrorIs(t, err, storage.ErrHistoryRewrite)

	changed := p.Clone()
	changed.PriceHistory[0].Price = decimal.NewFromInt(1)
	_, err = store.UpsertByURL(ctx, p.SourceURL, changed)
	assert.ErrorIs(t, err, storage.ErrHistoryRewrite)

	_, err = store.UpsertByURL(ctx, "https://www.amazon.com/dp/other", p)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestProductStore_UpsertByURL_InsertsWhenAbsent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	p := newProduct("https://www.amazon.com/dp/new", "15.25")
	got, err := store.UpsertByURL(ctx, p.SourceURL, p)
	require.NoError(t, err)
	assert.Len(t, got.PriceHistory, 1)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProductStore_UpsertByURL_ConcurrentAppends(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	p := newProduct("https://www.amazon.com/dp/A", "100")
	require.NoError(t, store.Insert(ctx, p))

	// Two writers extend the same stored prefix; exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := p.Clone()
			next.PriceHistory = append(next.PriceHistory, domain.PriceSample{
				Price:      decimal.NewFromInt(int64(50 + i)),
				ObservedAt: created.Add(time.Duration(i+1) * time.Minute),
			})
			_, errs[i] = store.UpsertByURL(ctx, p.SourceURL, next)
		}(i)
	}
	wg.Wait()

	var ok, rewrites int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, storage.ErrHistoryRewrite):
			rewrites++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rewrites)

	got, err := store.GetByURL(ctx, p.SourceURL)
	require.NoError(t, err)
	assert.Len(t, got.PriceHistory, 2)
}

func TestProductStore_AddSubscriber(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProductStore(pool)
	ctx := context.Background()

	err := store.AddSubscriber(ctx, "https://www.amazon.com/dp/missing", domain.Subscriber{Email: "a@example.com"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	p := newProduct("https://www.amazon.com/dp/A", "100")
	require.NoError(t, store.Insert(ctx, p))

	require.NoError(t, store.AddSubscriber(ctx, p.SourceURL, domain.Subscriber{Email: "a@example.com"}))
	require.NoError(t, store.AddSubscriber(ctx, p.SourceURL, domain.Subscriber{Email: "a@example.com"}))
	require.NoError(t, store.AddSubscriber(ctx, p.SourceURL, domain.Subscriber{Email: "b@example.com"}))

	got, err := store.GetByURL(ctx, p.SourceURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.SubscriberEmails())

	assert.ErrorIs(t, store.AddSubscriber(ctx, p.SourceURL, domain.Subscriber{}), storage.ErrInvalidInput)
}
