package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
)

func testProduct() *domain.TrackedProduct {
	return &domain.TrackedProduct{
		SourceURL:    "https://www.amazon.com/dp/B0TEST",
		Title:        "Noise Cancelling Headphones",
		Currency:     "$",
		CurrentPrice: decimal.RequireFromString("89.5"),
		LowestPrice:  decimal.RequireFromString("89.5"),
		HighestPrice: decimal.RequireFromString("129.99"),
		AveragePrice: decimal.RequireFromString("109.745"),
		StockStatus:  domain.StockInStock,
		ImageURL:     "https://m.media-amazon.com/images/I/test.jpg",
	}
}

func TestRenderer_AllNotifiableKinds(t *testing.T) {
	r := MustNewRenderer()

	for _, kind := range domain.AllEventKinds {
		if !kind.IsNotifiable() {
			continue
		}
		t.Run(string(kind), func(t *testing.T) {
			msg, err := r.Render(Notification{
				Kind:          kind,
				Product:       testProduct(),
				PreviousPrice: decimal.RequireFromString("99.50"),
			})
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if !strings.Contains(msg.Subject, "Noise Cancelling Headphones") {
				t.Errorf("subject missing title: %q", msg.Subject)
			}
			if !strings.Contains(msg.TextBody, "https://www.amazon.com/dp/B0TEST") {
				t.Errorf("text body missing url: %q", msg.TextBody)
			}
			if !strings.Contains(msg.HTMLBody, `href="https://www.amazon.com/dp/B0TEST"`) {
				t.Errorf("html body missing link: %q", msg.HTMLBody)
			}
		})
	}
}

func TestRenderer_PriceDropBody(t *testing.T) {
	r := MustNewRenderer()

	msg, err := r.Render(Notification{
		Kind:          domain.EventPriceDrop,
		Product:       testProduct(),
		PreviousPrice: decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if msg.Subject != "Price drop: Noise Cancelling Headphones is now $89.50" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "dropped 10.5%") {
		t.Errorf("expected drop percent in body: %q", msg.TextBody)
	}
	if !strings.Contains(msg.TextBody, "was $100.00") {
		t.Errorf("expected previous price in body: %q", msg.TextBody)
	}
}

func TestRenderer_NoTemplateForNone(t *testing.T) {
	r := MustNewRenderer()

	_, err := r.Render(Notification{Kind: domain.EventNone, Product: testProduct()})
	if !errors.Is(err, ErrNoTemplate) {
		t.Errorf("expected ErrNoTemplate, got %v", err)
	}

	if _, err := r.Render(Notification{Kind: domain.EventPriceDrop}); err == nil {
		t.Error("expected error for nil product")
	}
}

func TestRenderer_EscapesHTML(t *testing.T) {
	r := MustNewRenderer()
	p := testProduct()
	p.Title = `<script>alert("x")</script>`

	msg, err := r.Render(Notification{Kind: domain.EventBackInStock, Product: p})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(msg.HTMLBody, "<script>") {
		t.Errorf("title was not escaped: %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.Subject, "<script>") {
		t.Errorf("subject should carry raw title: %q", msg.Subject)
	}
}

func TestRenderer_TitleFallsBackToURL(t *testing.T) {
	r := MustNewRenderer()
	p := testProduct()
	p.Title = ""

	msg, err := r.Render(Notification{Kind: domain.EventSourceUnavailable, Product: p})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if msg.Subject != "We could not check https://www.amazon.com/dp/B0TEST" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
}
