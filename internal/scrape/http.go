package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"price-monitor/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

// Price selectors in the order they are tried.
var priceSelectors = []string{
	"#corePrice_feature_div .a-price:not(.a-text-price) .a-offscreen",
	".priceToPay .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	".a-price:not(.a-text-price) .a-offscreen",
	".priceToPay span.a-price-whole",
}

var originalPriceSelectors = []string{
	"#priceblock_ourprice",
	".a-price.a-text-price span.a-offscreen",
	"#listPrice",
	"#priceblock_dealprice",
	".a-size-base.a-color-price",
}

var numberPattern = regexp.MustCompile(`[0-9][0-9,]*(\.[0-9]+)?`)

// HTTPScraper scrapes Amazon product pages over HTTP.
type HTTPScraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// HTTPOptions configures HTTPScraper.
type HTTPOptions struct {
	Client        *http.Client // defaults to a client with a 30s timeout
	RatePerSecond float64      // requests per second, 0 = unlimited
	Burst         int          // limiter burst, defaults to 1
	UserAgent     string
}

// NewHTTPScraper creates a scraper throttled by a token-bucket limiter.
func NewHTTPScraper(opts HTTPOptions) *HTTPScraper {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &HTTPScraper{
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: ua,
	}
}

// Compile-time interface check.
var _ Scraper = (*HTTPScraper)(nil)

// Scrape fetches sourceURL and parses the listing.
func (s *HTTPScraper) Scrape(ctx context.Context, sourceURL string) (*domain.ProductSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrSourceUnavailable, sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrSourceUnavailable, sourceURL, resp.StatusCode)
	}

	snap, err := Parse(io.LimitReader(resp.Body, maxBodyBytes), sourceURL)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Parse extracts a snapshot from a product page.
//
// Without a buy-box price the list price is used. An out-of-stock page with
// neither yields a snapshot with a zero CurrentPrice (price unknown). Any
// other page without a title or a parsable price is ErrSourceUnavailable.
func Parse(r io.Reader, sourceURL string) (*domain.ProductSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrSourceUnavailable, err)
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		return nil, fmt.Errorf("%w: %s: no product title", ErrSourceUnavailable, sourceURL)
	}

	stock := stockStatus(doc)
	original, hasOriginal := firstPrice(doc, originalPriceSelectors)
	current, ok := firstPrice(doc, priceSelectors)
	if !ok && hasOriginal {
		current, ok = original, true
	}
	if !ok && stock != domain.StockOutOfStock {
		return nil, fmt.Errorf("%w: %s: no price", ErrSourceUnavailable, sourceURL)
	}
	if !hasOriginal || original.LessThan(current) {
		original = current
	}

	snap := &domain.ProductSnapshot{
		SourceURL:     sourceURL,
		Title:         title,
		CurrentPrice:  current,
		OriginalPrice: original,
		Currency:      strings.TrimSpace(doc.Find(".a-price-symbol").First().Text()),
		StockStatus:   stock,
		ImageURL:      imageURL(doc),
		DiscountRate:  discountRate(doc),
		Category:      category(doc),
		ReviewsCount:  reviewsCount(doc),
		Stars:         stars(doc),
		Description:   description(doc),
	}
	return snap, nil
}

// firstPrice returns the first selector value that parses as a price.
func firstPrice(doc *goquery.Document, selectors []string) (decimal.Decimal, bool) {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if price, err := parsePrice(text); err == nil && price.IsPositive() {
			return price, true
		}
	}
	return decimal.Zero, false
}

// parsePrice extracts a decimal price from text such as "$1,299.99".
func parsePrice(text string) (decimal.Decimal, error) {
	match := numberPattern.FindString(text)
	if match == "" {
		return decimal.Zero, errors.New("no number in price text")
	}
	match = strings.TrimSuffix(strings.ReplaceAll(match, ",", ""), ".")
	return decimal.NewFromString(match)
}

func stockStatus(doc *goquery.Document) domain.StockStatus {
	availability := strings.ToLower(strings.TrimSpace(doc.Find("#availability span").Text()))
	if strings.Contains(availability, "currently unavailable") || strings.Contains(availability, "out of stock") {
		return domain.StockOutOfStock
	}
	return domain.StockInStock
}

// imageURL picks the first key of the landing image's dynamic image map.
func imageURL(doc *goquery.Document) string {
	img := doc.Find("#landingImage, #imgBlkFront").First()
	if raw, ok := img.Attr("data-a-dynamic-image"); ok && raw != "" {
		var urls map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &urls); err == nil {
			best := ""
			for u := range urls {
				if best == "" || u < best {
					best = u
				}
			}
			if best != "" {
				return best
			}
		}
	}
	src, _ := img.Attr("src")
	return src
}

func discountRate(doc *goquery.Document) decimal.Decimal {
	text := strings.TrimSpace(doc.Find(".savingsPercentage").First().Text())
	if text == "" {
		return decimal.Zero
	}
	pct, err := parsePrice(text)
	if err != nil {
		return decimal.Zero
	}
	return pct
}

func category(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#wayfinding-breadcrumbs_feature_div ul li a").Last().Text())
}

func reviewsCount(doc *goquery.Document) int {
	text := doc.Find("#acrCustomerReviewText").First().Text()
	match := numberPattern.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func stars(doc *goquery.Document) decimal.Decimal {
	text := doc.Find("#acrPopover").AttrOr("title", "")
	if text == "" {
		text = doc.Find(".a-icon-star .a-icon-alt").First().Text()
	}
	value, err := parsePrice(text)
	if err != nil {
		return decimal.Zero
	}
	return value
}

func description(doc *goquery.Document) string {
	var parts []string
	doc.Find("#feature-bullets li span.a-list-item").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}
