package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// HistoryRepo provides database operations for the append-only state
// history. Entries are only ever inserted; there is no update or delete.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append writes one history entry. The Querier lets the transition executor
// write the entry inside the same transaction as the state update.
func (r *HistoryRepo) Append(ctx context.Context, q Querier, entry *models.StateHistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid history entry: %w", err)
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}

	query := `
		INSERT INTO state_history (
			inspection_id, shop_id, from_state, to_state, changed_by, role,
			reason, metadata, validation_passed, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		entry.InspectionID, entry.ShopID, entry.FromState, entry.ToState,
		entry.ChangedBy, nullString(string(entry.Role)), nullString(entry.Reason),
		nullString(entry.Metadata), entry.ValidationPassed, FormatTime(entry.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history entry id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByInspection retrieves the history of an inspection, most recent
// first, scoped to a shop. A limit of zero returns all entries.
func (r *HistoryRepo) ListByInspection(ctx context.Context, inspectionID, shopID int64, limit int) ([]*models.StateHistoryEntry, error) {
	query := `
		SELECT id, inspection_id, shop_id, from_state, to_state, changed_by,
			role, reason, metadata, validation_passed, changed_at
		FROM state_history
		WHERE inspection_id = ? AND shop_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{inspectionID, shopID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.StateHistoryEntry
	for rows.Next() {
		var e models.StateHistoryEntry
		var role, reason, metadata sql.NullString

		err := rows.Scan(
			&e.ID, &e.InspectionID, &e.ShopID, &e.FromState, &e.ToState,
			&e.ChangedBy, &role, &reason, &metadata, &e.ValidationPassed,
			&e.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		e.Role = models.Role(role.String)
		e.Reason = reason.String
		e.Metadata = metadata.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// CountByInspection returns the number of history entries on an inspection.
func (r *HistoryRepo) CountByInspection(ctx context.Context, inspectionID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM state_history WHERE inspection_id = ?", inspectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}
