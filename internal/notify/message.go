// Package notify renders price events into email messages and delivers them.
package notify

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"price-monitor/internal/domain"
)

// ErrNoRecipients is returned when a notification has nobody to go to.
var ErrNoRecipients = errors.New("notification has no recipients")

// Message is a rendered email.
type Message struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// Notification is one event for one product, addressed to its subscribers.
type Notification struct {
	Kind          domain.EventKind
	Product       *domain.TrackedProduct
	PreviousPrice decimal.Decimal
	Recipients    []string
}

// Sender delivers a rendered message to a list of addresses.
type Sender interface {
	Send(ctx context.Context, msg Message, recipients []string) error
}
