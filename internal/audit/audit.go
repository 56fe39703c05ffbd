// Package audit records who did what to which inspection. Every engine
// entry point writes one entry, including denied attempts, so the trail is
// complete even when a transition never commits.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
)

// Entry is one audit record.
type Entry struct {
	ID           int64       `json:"id"`
	ShopID       int64       `json:"shop_id"`
	InspectionID int64       `json:"inspection_id,omitempty"`
	Actor        string      `json:"actor"`
	Role         models.Role `json:"role,omitempty"`
	Action       string      `json:"action"`
	Detail       string      `json:"detail,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Sink receives audit entries. Recording is best effort: a sink failure is
// logged by callers and never fails the operation being audited.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// SQLiteSink writes audit entries to the audit_log table.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSink creates a SQLite-backed audit sink.
func NewSQLiteSink(db *sql.DB, logger *zap.Logger) *SQLiteSink {
	return &SQLiteSink{db: db, logger: logger}
}

// Record writes one audit entry.
func (s *SQLiteSink) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO audit_log (shop_id, inspection_id, actor, role, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var inspectionID interface{}
	if e.InspectionID > 0 {
		inspectionID = e.InspectionID
	}
	var role interface{}
	if e.Role != "" {
		role = string(e.Role)
	}
	var detail interface{}
	if e.Detail != "" {
		detail = e.Detail
	}

	_, err := s.db.ExecContext(ctx, query,
		e.ShopID, inspectionID, e.Actor, role, e.Action, detail, db.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	s.logger.Debug("audit entry recorded",
		zap.Int64("shop_id", e.ShopID),
		zap.Int64("inspection_id", e.InspectionID),
		zap.String("actor", e.Actor),
		zap.String("action", e.Action),
	)
	return nil
}

// List retrieves audit entries for a shop, most recent first. A limit of
// zero returns all entries.
func (s *SQLiteSink) List(ctx context.Context, shopID int64, limit int) ([]Entry, error) {
	query := `
		SELECT id, shop_id, inspection_id, actor, role, action, detail, created_at
		FROM audit_log
		WHERE shop_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{shopID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var inspectionID sql.NullInt64
		var role, detail sql.NullString

		err := rows.Scan(&e.ID, &e.ShopID, &inspectionID, &e.Actor, &role,
			&e.Action, &detail, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.InspectionID = inspectionID.Int64
		e.Role = models.Role(role.String)
		e.Detail = detail.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}
