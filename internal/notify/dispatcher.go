package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/logging"
)

// Dispatcher renders a notification and hands it to a Sender.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	logger   logrus.FieldLogger
}

// NewDispatcher creates a dispatcher. A nil renderer uses the built-in templates.
func NewDispatcher(renderer *Renderer, sender Sender, logger logrus.FieldLogger) *Dispatcher {
	if renderer == nil {
		renderer = MustNewRenderer()
	}
	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		logger:   logging.OrDiscard(logger),
	}
}

// Dispatch renders n and sends it to n.Recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return ErrNoRecipients
	}

	msg, err := d.renderer.Render(n)
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, msg, n.Recipients); err != nil {
		return fmt.Errorf("send %s: %w", n.Kind, err)
	}

	d.logger.WithFields(logrus.Fields{
		"component":  "notify",
		"event":      n.Kind,
		"source_url": n.Product.SourceURL,
		"recipients": len(n.Recipients),
	}).Debug("notification sent")
	return nil
}
