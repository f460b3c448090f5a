package domain

// EventKind is the notification event produced for a product in one sweep.
// At most one kind applies per product per sweep.
type EventKind string

const (
	EventNone              EventKind = "NONE"
	EventSourceUnavailable EventKind = "SOURCE_UNAVAILABLE"
	EventBackInStock       EventKind = "BACK_IN_STOCK"
	EventNewLowestPrice    EventKind = "NEW_LOWEST_PRICE"
	EventPriceDrop         EventKind = "PRICE_DROP"
)

// AllEventKinds lists every kind that triggers a notification.
var AllEventKinds = []EventKind{
	EventSourceUnavailable,
	EventBackInStock,
	EventNewLowestPrice,
	EventPriceDrop,
}

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsNotifiable reports whether subscribers should hear about the event.
func (k EventKind) IsNotifiable() bool {
	return k != "" && k != EventNone
}
