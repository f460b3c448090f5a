package classify

import (
	"testing"

	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func inStock(price string) Fresh {
	return Fresh{StockStatus: domain.StockInStock, CurrentPrice: d(price)}
}

func TestClassify_Precedence(t *testing.T) {
	c := New(DefaultThresholds())

	tests := []struct {
		name  string
		prev  Previous
		fresh Fresh
		want  domain.EventKind
	}{
		{
			name:  "failed scrape beats everything",
			prev:  Previous{StockStatus: domain.StockOutOfStock, CurrentPrice: d("120"), LowestPrice: d("100")},
			fresh: Fresh{Failed: true, StockStatus: domain.StockInStock, CurrentPrice: d("1")},
			want:  domain.EventSourceUnavailable,
		},
		{
			name:  "back in stock beats new lowest",
			prev:  Previous{StockStatus: domain.StockOutOfStock, CurrentPrice: d("120"), LowestPrice: d("100")},
			fresh: inStock("90"),
			want:  domain.EventBackInStock,
		},
		{
			name:  "new lowest beats price drop",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("60"), LowestPrice: d("50")},
			fresh: inStock("49"),
			want:  domain.EventNewLowestPrice,
		},
		{
			name:  "tie with lowest is not a new low",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("50"), LowestPrice: d("50")},
			fresh: inStock("50"),
			want:  domain.EventNone,
		},
		{
			name:  "drop above threshold",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: inStock("94"),
			want:  domain.EventPriceDrop,
		},
		{
			name:  "drop exactly at threshold",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: inStock("95"),
			want:  domain.EventPriceDrop,
		},
		{
			name:  "drop below threshold",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: inStock("96"),
			want:  domain.EventNone,
		},
		{
			name:  "price increase",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: inStock("110"),
			want:  domain.EventNone,
		},
		{
			name:  "unchanged price",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: inStock("100"),
			want:  domain.EventNone,
		},
		{
			name:  "going out of stock is silent",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: Fresh{StockStatus: domain.StockOutOfStock, CurrentPrice: d("100")},
			want:  domain.EventNone,
		},
		{
			name:  "unavailable listing without a price is silent",
			prev:  Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: Fresh{StockStatus: domain.StockOutOfStock},
			want:  domain.EventNone,
		},
		{
			name:  "back in stock without a price still notifies",
			prev:  Previous{StockStatus: domain.StockOutOfStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: Fresh{StockStatus: domain.StockInStock},
			want:  domain.EventBackInStock,
		},
		{
			name:  "staying out of stock with lower price is a new low",
			prev:  Previous{StockStatus: domain.StockOutOfStock, CurrentPrice: d("100"), LowestPrice: d("80")},
			fresh: Fresh{StockStatus: domain.StockOutOfStock, CurrentPrice: d("70")},
			want:  domain.EventNewLowestPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.prev, tt.fresh)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_AbsoluteThreshold(t *testing.T) {
	c := New(Thresholds{DropAbsolute: d("10")})
	prev := Previous{StockStatus: domain.StockInStock, CurrentPrice: d("500"), LowestPrice: d("400")}

	if got := c.Classify(prev, inStock("490")); got != domain.EventPriceDrop {
		t.Errorf("10 off: expected PRICE_DROP, got %s", got)
	}
	if got := c.Classify(prev, inStock("491")); got != domain.EventNone {
		t.Errorf("9 off: expected NONE, got %s", got)
	}
}

func TestClassify_EitherThresholdSuffices(t *testing.T) {
	c := New(Thresholds{DropPercent: d("5"), DropAbsolute: d("10")})
	prev := Previous{StockStatus: domain.StockInStock, CurrentPrice: d("1000"), LowestPrice: d("500")}

	// 1% but 10 absolute
	if got := c.Classify(prev, inStock("990")); got != domain.EventPriceDrop {
		t.Errorf("expected absolute threshold to trigger, got %s", got)
	}

	cheap := Previous{StockStatus: domain.StockInStock, CurrentPrice: d("20"), LowestPrice: d("10")}
	// 2 absolute but 10%
	if got := c.Classify(cheap, inStock("18")); got != domain.EventPriceDrop {
		t.Errorf("expected relative threshold to trigger, got %s", got)
	}
}

func TestClassify_NoThresholdsAnyDecrease(t *testing.T) {
	c := New(Thresholds{})
	prev := Previous{StockStatus: domain.StockInStock, CurrentPrice: d("100"), LowestPrice: d("50")}

	if got := c.Classify(prev, inStock("99.99")); got != domain.EventPriceDrop {
		t.Errorf("expected PRICE_DROP, got %s", got)
	}
}

func TestClassify_ZeroPreviousPrice(t *testing.T) {
	c := New(DefaultThresholds())
	prev := Previous{StockStatus: domain.StockInStock, CurrentPrice: decimal.Zero, LowestPrice: decimal.Zero}

	if got := c.Classify(prev, inStock("0")); got != domain.EventNone {
		t.Errorf("expected NONE, got %s", got)
	}
}

func TestNew_ClampsNegativeThresholds(t *testing.T) {
	c := New(Thresholds{DropPercent: d("-5"), DropAbsolute: d("-1")})

	if !c.Thresholds().DropPercent.IsZero() || !c.Thresholds().DropAbsolute.IsZero() {
		t.Errorf("expected clamped thresholds, got %+v", c.Thresholds())
	}
}

func TestFreshFromSnapshot_Nil(t *testing.T) {
	if !FreshFromSnapshot(nil).Failed {
		t.Error("expected nil snapshot to be a failed scrape")
	}
}

func TestDropPercent(t *testing.T) {
	if got := DropPercent(d("200"), d("150")); !got.Equal(d("25")) {
		t.Errorf("expected 25, got %s", got)
	}
	if got := DropPercent(d("100"), d("120")); !got.IsZero() {
		t.Errorf("expected 0 for increase, got %s", got)
	}
}
