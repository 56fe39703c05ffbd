package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// NotificationRepo provides database operations for the notification
// outbox. Rows are enqueued inside the transition transaction and drained
// out of band.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Enqueue inserts a pending notification. The Querier lets the transition
// executor enqueue inside the same transaction as the state update.
func (r *NotificationRepo) Enqueue(ctx context.Context, q Querier, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}

	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	query := `
		INSERT INTO notifications (
			shop_id, inspection_id, kind, recipient, body, status, attempts,
			last_error, created_at, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()

	result, err := q.ExecContext(ctx, query,
		n.ShopID, n.InspectionID, n.Kind, n.Recipient, n.Body, n.Status,
		n.Attempts, nullString(n.LastError), FormatTime(now), FormatTimePtr(n.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification id: %w", err)
	}

	n.ID = id
	n.CreatedAt = now
	return nil
}

// GetByID retrieves a notification by ID. It returns (nil, nil) when the
// notification does not exist.
func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `
		SELECT id, shop_id, inspection_id, kind, recipient, body, status,
			attempts, last_error, created_at, sent_at
		FROM notifications
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListPending retrieves pending notifications in enqueue order. A limit of
// zero returns all pending rows.
func (r *NotificationRepo) ListPending(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, shop_id, inspection_id, kind, recipient, body, status,
			attempts, last_error, created_at, sent_at
		FROM notifications
		WHERE status = ?
		ORDER BY id
	`
	args := []interface{}{models.NotificationPending}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// CountPending returns the number of undelivered notifications.
func (r *NotificationRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE status = ?",
		models.NotificationPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

// MarkSent records a successful delivery.
func (r *NotificationRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = NULL, sent_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, models.NotificationSent, FormatTime(at), id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt. When final is true the
// notification moves to the failed status and is no longer retried.
func (r *NotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string, final bool) error {
	status := models.NotificationPending
	if final {
		status = models.NotificationFailed
	}

	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, status, nullString(errMsg), id); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *NotificationRepo) scanOne(row *sql.Row) (*models.Notification, error) {
	var n models.Notification
	var lastError sql.NullString
	var sentAt sql.NullTime

	err := row.Scan(
		&n.ID, &n.ShopID, &n.InspectionID, &n.Kind, &n.Recipient, &n.Body,
		&n.Status, &n.Attempts, &lastError, &n.CreatedAt, &sentAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.LastError = lastError.String
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	return &n, nil
}

func (r *NotificationRepo) scanRow(rows *sql.Rows) (*models.Notification, error) {
	var n models.Notification
	var lastError sql.NullString
	var sentAt sql.NullTime

	err := rows.Scan(
		&n.ID, &n.ShopID, &n.InspectionID, &n.Kind, &n.Recipient, &n.Body,
		&n.Status, &n.Attempts, &lastError, &n.CreatedAt, &sentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.LastError = lastError.String
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	return &n, nil
}
