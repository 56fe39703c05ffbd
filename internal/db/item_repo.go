package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// ItemRepo provides database operations for inspection items.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo creates a new ItemRepo.
func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// Create creates a new inspection item. Position defaults to the next free
// slot on the inspection when zero.
func (r *ItemRepo) Create(ctx context.Context, item *models.InspectionItem) error {
	if item.Condition == "" {
		item.Condition = models.ConditionNotInspected
	}

	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	position := item.Position
	if position == 0 {
		var maxPos sql.NullInt64
		err := r.db.QueryRowContext(ctx,
			"SELECT MAX(position) FROM inspection_items WHERE inspection_id = ?",
			item.InspectionID,
		).Scan(&maxPos)
		if err != nil {
			return fmt.Errorf("failed to get next item position: %w", err)
		}
		position = int(maxPos.Int64) + 1
	}

	query := `
		INSERT INTO inspection_items (
			inspection_id, name, condition, notes, position, resolved_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	nowStr := FormatTime(now)

	result, err := r.db.ExecContext(ctx, query,
		item.InspectionID, item.Name, item.Condition, nullString(item.Notes),
		position, FormatTimePtr(item.ResolvedAt), nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get item id: %w", err)
	}

	item.ID = id
	item.Position = position
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// GetByID retrieves an item by ID, scoped to its inspection. It returns
// (nil, nil) when no such item exists on the inspection.
func (r *ItemRepo) GetByID(ctx context.Context, id, inspectionID int64) (*models.InspectionItem, error) {
	query := `
		SELECT id, inspection_id, name, condition, notes, position, resolved_at,
			created_at, updated_at
		FROM inspection_items
		WHERE id = ? AND inspection_id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, inspectionID))
}

// ListByInspection retrieves all items on an inspection in position order.
// The Querier lets condition checks read items inside a transaction.
func (r *ItemRepo) ListByInspection(ctx context.Context, q Querier, inspectionID int64) ([]*models.InspectionItem, error) {
	query := `
		SELECT id, inspection_id, name, condition, notes, position, resolved_at,
			created_at, updated_at
		FROM inspection_items
		WHERE inspection_id = ?
		ORDER BY position, id
	`
	rows, err := q.QueryContext(ctx, query, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// SetCondition scores an item. It returns false with no error when the item
// does not exist on the inspection.
func (r *ItemRepo) SetCondition(ctx context.Context, id, inspectionID int64, condition models.ItemCondition, notes string) (bool, error) {
	query := `
		UPDATE inspection_items
		SET condition = ?, notes = ?, updated_at = ?
		WHERE id = ? AND inspection_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, condition, nullString(notes), NowRFC3339(), id, inspectionID)
	if err != nil {
		return false, fmt.Errorf("failed to score item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkResolved records that a critical item was addressed. It returns false
// with no error when the item does not exist on the inspection.
func (r *ItemRepo) MarkResolved(ctx context.Context, id, inspectionID int64, at time.Time) (bool, error) {
	query := `
		UPDATE inspection_items
		SET resolved_at = ?, updated_at = ?
		WHERE id = ? AND inspection_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, FormatTime(at), NowRFC3339(), id, inspectionID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *ItemRepo) scanOne(row *sql.Row) (*models.InspectionItem, error) {
	var item models.InspectionItem
	var notes sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.InspectionID, &item.Name, &item.Condition, &notes,
		&item.Position, &resolvedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Notes = notes.String
	if resolvedAt.Valid {
		item.ResolvedAt = &resolvedAt.Time
	}
	return &item, nil
}

func (r *ItemRepo) scanMany(rows *sql.Rows) ([]*models.InspectionItem, error) {
	var items []*models.InspectionItem
	for rows.Next() {
		var item models.InspectionItem
		var notes sql.NullString
		var resolvedAt sql.NullTime

		err := rows.Scan(
			&item.ID, &item.InspectionID, &item.Name, &item.Condition, &notes,
			&item.Position, &resolvedAt, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		item.Notes = notes.String
		if resolvedAt.Valid {
			item.ResolvedAt = &resolvedAt.Time
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}
