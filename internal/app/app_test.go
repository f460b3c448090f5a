package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-monitor/internal/config"
	"price-monitor/internal/domain"
	"price-monitor/internal/notify"
	"price-monitor/internal/scrape"
	"price-monitor/internal/storage/memory"
)

const listingURL = "https://www.amazon.com/dp/B0TRACK001"

type stubScraper struct {
	snap  *domain.ProductSnapshot
	err   error
	calls int
}

func (s *stubScraper) Scrape(_ context.Context, sourceURL string) (*domain.ProductSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	snap := *s.snap
	snap.SourceURL = sourceURL
	return &snap, nil
}

func newStubScraper(price string) *stubScraper {
	return &stubScraper{snap: &domain.ProductSnapshot{
		Title:        "Desk Lamp",
		CurrentPrice: decimal.RequireFromString(price),
		Currency:     "$",
		StockStatus:  domain.StockInStock,
	}}
}

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestTrack_NewListing(t *testing.T) {
	ctx := context.Background()
	products := memory.NewProductStore()
	scraper := newStubScraper("24.50")

	res, err := Track(ctx, products, scraper, listingURL, "a@example.com", now)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "Desk Lamp", res.Product.Title)
	require.Len(t, res.Product.PriceHistory, 1)
	assert.True(t, res.Product.LowestPrice.Equal(decimal.RequireFromString("24.50")))
	assert.Equal(t, []string{"a@example.com"}, res.Product.SubscriberEmails())
}

func TestTrack_ExistingListingOnlySubscribes(t *testing.T) {
	ctx := context.Background()
	products := memory.NewProductStore()
	scraper := newStubScraper("24.50")

	_, err := Track(ctx, products, scraper, listingURL, "a@example.com", now)
	require.NoError(t, err)

	res, err := Track(ctx, products, scraper, listingURL, "b@example.com", now.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, 1, scraper.calls, "tracked listing must not be re-scraped")
	assert.Len(t, res.Product.PriceHistory, 1)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, res.Product.SubscriberEmails())
}

func TestTrack_InvalidURL(t *testing.T) {
	scraper := newStubScraper("1")

	_, err := Track(context.Background(), memory.NewProductStore(), scraper, "https://example.com/item", "", now)
	assert.ErrorIs(t, err, scrape.ErrInvalidProductURL)
	assert.Zero(t, scraper.calls)
}

func TestTrack_ScrapeFailure(t *testing.T) {
	products := memory.NewProductStore()
	scraper := &stubScraper{err: scrape.ErrSourceUnavailable}

	_, err := Track(context.Background(), products, scraper, listingURL, "a@example.com", now)
	assert.ErrorIs(t, err, scrape.ErrSourceUnavailable)

	all, err := products.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "failed scrape must not create a record")
}

func TestOpenStores_Memory(t *testing.T) {
	stores, err := OpenStores(context.Background(), config.Config{UseMemory: true}, nil)
	require.NoError(t, err)
	defer stores.Close()

	assert.NotNil(t, stores.Products)
	assert.NotNil(t, stores.Observations)
}

func TestNewSender(t *testing.T) {
	_, ok := NewSender(config.Config{DryRun: true}, nil).(*notify.LogSender)
	assert.True(t, ok, "dry run should log instead of sending")

	_, ok = NewSender(config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "bot@example.com"}, nil).(*notify.SMTPSender)
	assert.True(t, ok)
}

func TestNewOrchestrator_DryRunSweep(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{UseMemory: true, DryRun: true, SweepConcurrency: 2, DropPercent: decimal.NewFromInt(5)}
	stores, err := OpenStores(ctx, cfg, nil)
	require.NoError(t, err)

	scraper := newStubScraper("100")
	_, err = Track(ctx, stores.Products, scraper, listingURL, "a@example.com", now)
	require.NoError(t, err)

	scraper.snap.CurrentPrice = decimal.RequireFromString("80")
	sender := notify.NewLogSender(nil)
	report, err := NewOrchestrator(cfg, stores, scraper, sender, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Notified)
	require.Len(t, sender.Sent(), 1)
	assert.Equal(t, []string{"a@example.com"}, sender.Sent()[0].Recipients)

	obs, err := stores.Observations.GetBySweepID(ctx, report.SweepID)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, domain.EventNewLowestPrice, obs[0].Event)
}

func TestStores_CloseOrder(t *testing.T) {
	var order []int
	s := &Stores{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	s.Close()
	s.Close()
	assert.Equal(t, []int{2, 1}, order)
}

