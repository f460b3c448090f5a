package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/logging"
)

// LogSender logs messages instead of sending them. Used for dry runs.
// It also keeps every message it was given, which tests inspect.
type LogSender struct {
	logger logrus.FieldLogger

	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage is one message recorded by LogSender.
type SentMessage struct {
	Message    Message
	Recipients []string
}

// NewLogSender creates a LogSender. A nil logger discards output.
func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logging.OrDiscard(logger)}
}

// Send records and logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message, recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, SentMessage{Message: msg, Recipients: append([]string(nil), recipients...)})
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"component":  "notify",
		"subject":    msg.Subject,
		"recipients": len(recipients),
	}).Info("dry run: email not sent")
	return nil
}

// Sent returns a copy of all recorded messages.
func (s *LogSender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}
