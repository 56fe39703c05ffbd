// Package notify delivers queued notifications to their recipients.
// Delivery happens outside transition transactions; the outbox drainer
// hands rows to a Sender and records the outcome.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/models"
)

// Sender delivers one notification. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, n *models.Notification) error

// Send calls f(ctx, n).
func (f SenderFunc) Send(ctx context.Context, n *models.Notification) error {
	return f(ctx, n)
}

// LogSender writes deliveries to the log. It stands in for SMS and alert
// gateways in development and single-shop installs.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification and reports success.
func (s *LogSender) Send(ctx context.Context, n *models.Notification) error {
	s.logger.Info("notification delivered",
		zap.Int64("id", n.ID),
		zap.Int64("inspection_id", n.InspectionID),
		zap.String("kind", string(n.Kind)),
		zap.String("recipient", n.Recipient),
		zap.String("body", n.Body),
	)
	return nil
}
