// Package tasks provides background task runners for ratchet.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/notify"
)

// deliveryTries is how often one drain pass tries a single notification
// before leaving it for the next pass.
const deliveryTries = 3

// DeliveryResult represents the outcome of delivering a single
// notification.
type DeliveryResult struct {
	NotificationID int64  `json:"notification_id"`
	InspectionID   int64  `json:"inspection_id"`
	Kind           string `json:"kind"`
	Recipient      string `json:"recipient"`
	Delivered      bool   `json:"delivered"`
	GaveUp         bool   `json:"gave_up,omitempty"`
	ErrorMessage   string `json:"error,omitempty"`
}

// DrainResult represents the result of one drain pass.
type DrainResult struct {
	Processed int               `json:"processed"`
	Sent      int               `json:"sent"`
	Failed    int               `json:"failed"`
	GaveUp    int               `json:"gave_up"`
	Results   []*DeliveryResult `json:"results,omitempty"`
}

// NotificationDrainer delivers queued notifications. Within a pass each
// notification is tried a few times with fibonacci backoff; one that still
// fails stays pending for later passes until maxAttempts passes have
// failed, after which it is marked failed for good.
type NotificationDrainer struct {
	notifications *db.NotificationRepo
	sender        notify.Sender
	logger        *zap.Logger
	maxAttempts   int
	backoffBase   time.Duration
}

// NewNotificationDrainer creates a drainer. maxAttempts values below one
// fall back to a single attempt.
func NewNotificationDrainer(database *sql.DB, sender notify.Sender, maxAttempts int, logger *zap.Logger) *NotificationDrainer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationDrainer{
		notifications: db.NewNotificationRepo(database),
		sender:        sender,
		logger:        logger,
		maxAttempts:   maxAttempts,
		backoffBase:   200 * time.Millisecond,
	}
}

// DrainAll delivers every pending notification, oldest first. A limit of
// zero processes the whole queue.
func (d *NotificationDrainer) DrainAll(ctx context.Context, limit int) (*DrainResult, error) {
	pending, err := d.notifications.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	result := &DrainResult{Processed: len(pending)}
	for _, n := range pending {
		dr := d.deliver(ctx, n)
		result.Results = append(result.Results, dr)

		switch {
		case dr.Delivered:
			result.Sent++
		case dr.GaveUp:
			result.GaveUp++
			result.Failed++
		default:
			result.Failed++
		}
	}
	return result, nil
}

// deliver tries one notification and records the outcome on its row.
func (d *NotificationDrainer) deliver(ctx context.Context, n *models.Notification) *DeliveryResult {
	dr := &DeliveryResult{
		NotificationID: n.ID,
		InspectionID:   n.InspectionID,
		Kind:           string(n.Kind),
		Recipient:      n.Recipient,
	}

	backoff := retry.WithMaxRetries(deliveryTries-1, retry.NewFibonacci(d.backoffBase))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.sender.Send(ctx, n); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	if sendErr == nil {
		if err := d.notifications.MarkSent(ctx, n.ID, time.Now().UTC()); err != nil {
			dr.ErrorMessage = fmt.Sprintf("delivered but failed to mark sent: %v", err)
			return dr
		}
		dr.Delivered = true
		d.logger.Debug("notification delivered",
			zap.Int64("notification_id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.String("recipient", n.Recipient),
		)
		return dr
	}

	final := n.Attempts+1 >= d.maxAttempts
	dr.GaveUp = final
	dr.ErrorMessage = sendErr.Error()
	if err := d.notifications.MarkFailed(ctx, n.ID, sendErr.Error(), final); err != nil {
		dr.ErrorMessage = fmt.Sprintf("%v (and failed to record: %v)", sendErr, err)
		return dr
	}

	d.logger.Warn("notification delivery failed",
		zap.Int64("notification_id", n.ID),
		zap.Int("attempt", n.Attempts+1),
		zap.Int("max_attempts", d.maxAttempts),
		zap.Bool("gave_up", final),
		zap.Error(sendErr),
	)
	return dr
}

// RunDaemon drains the queue every interval until the context is
// canceled. The callback, when set, receives each pass's result.
func (d *NotificationDrainer) RunDaemon(ctx context.Context, interval time.Duration, callback func(*DrainResult)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	if result, err := d.DrainAll(ctx, 0); err == nil && callback != nil {
		callback(result)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := d.DrainAll(ctx, 0)
			if err != nil {
				d.logger.Error("drain pass failed", zap.Error(err))
				continue
			}
			if callback != nil {
				callback(result)
			}
		}
	}
}
