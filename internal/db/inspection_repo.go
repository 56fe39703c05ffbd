package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// InspectionRepo provides database operations for inspections.
type InspectionRepo struct {
	db *sql.DB
}

// NewInspectionRepo creates a new InspectionRepo.
func NewInspectionRepo(db *sql.DB) *InspectionRepo {
	return &InspectionRepo{db: db}
}

// InspectionFilter defines filters for listing inspections.
type InspectionFilter struct {
	ShopID       int64
	State        *models.WorkflowState
	TechnicianID string
	Limit        int
	Offset       int
}

// StateChange is the persistence payload of one transition. ExpectedVersion
// is the version read at the start of the transaction; the update applies
// only if the row still carries it.
type StateChange struct {
	InspectionID    int64
	ShopID          int64
	FromState       models.WorkflowState
	ToState         models.WorkflowState
	ExpectedVersion int64
	ChangedBy       string
	ChangedAt       time.Time
}

// Create creates a new inspection in the initial workflow state.
func (r *InspectionRepo) Create(ctx context.Context, insp *models.Inspection) error {
	if insp.WorkflowState == "" {
		insp.WorkflowState = models.StateDraft
	}
	if insp.Version == 0 {
		insp.Version = 1
	}

	if err := insp.Validate(); err != nil {
		return fmt.Errorf("invalid inspection: %w", err)
	}

	query := `
		INSERT INTO inspections (
			shop_id, customer_id, vehicle_id, workflow_state, previous_state,
			version, state_changed_at, state_changed_by, technician_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	nowStr := FormatTime(now)

	result, err := r.db.ExecContext(ctx, query,
		insp.ShopID, insp.CustomerID, insp.VehicleID, insp.WorkflowState,
		nullString(string(insp.PreviousState)), insp.Version, nowStr,
		nullString(insp.StateChangedBy), nullString(insp.TechnicianID),
		nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inspection id: %w", err)
	}

	insp.ID = id
	insp.StateChangedAt = now
	insp.CreatedAt = now
	insp.UpdatedAt = now
	return nil
}

// GetByID retrieves an inspection by ID, scoped to a shop. It returns
// (nil, nil) when no such inspection exists in the shop. The Querier lets
// the transition executor re-read the row inside its transaction.
func (r *InspectionRepo) GetByID(ctx context.Context, q Querier, id, shopID int64) (*models.Inspection, error) {
	query := `
		SELECT id, shop_id, customer_id, vehicle_id, workflow_state, previous_state,
			version, state_changed_at, state_changed_by, technician_id,
			started_at, inspection_seconds, completed_at, finalized_at,
			rejection_reason, report_summary, customer_link_token,
			created_at, updated_at
		FROM inspections
		WHERE id = ? AND shop_id = ?
	`
	return r.scanOne(q.QueryRowContext(ctx, query, id, shopID))
}

// List retrieves inspections matching the filter, newest first.
func (r *InspectionRepo) List(ctx context.Context, filter InspectionFilter) ([]*models.Inspection, error) {
	query := `
		SELECT id, shop_id, customer_id, vehicle_id, workflow_state, previous_state,
			version, state_changed_at, state_changed_by, technician_id,
			started_at, inspection_seconds, completed_at, finalized_at,
			rejection_reason, report_summary, customer_link_token,
			created_at, updated_at
		FROM inspections
		WHERE shop_id = ?
	`
	args := []interface{}{filter.ShopID}

	if filter.State != nil {
		query += " AND workflow_state = ?"
		args = append(args, *filter.State)
	}
	if filter.TechnicianID != "" {
		query += " AND technician_id = ?"
		args = append(args, filter.TechnicianID)
	}

	query += " ORDER BY id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// ApplyStateChange performs the version-guarded state update of a
// transition. It returns false with no error when the guard misses, meaning
// another transition committed between the caller's read and this write.
func (r *InspectionRepo) ApplyStateChange(ctx context.Context, q Querier, sc StateChange) (bool, error) {
	query := `
		UPDATE inspections
		SET workflow_state = ?, previous_state = ?, version = version + 1,
			state_changed_at = ?, state_changed_by = ?, updated_at = ?
		WHERE id = ? AND shop_id = ? AND version = ?
	`
	changedAt := FormatTime(sc.ChangedAt)
	result, err := q.ExecContext(ctx, query,
		sc.ToState, sc.FromState, changedAt, nullString(sc.ChangedBy), changedAt,
		sc.InspectionID, sc.ShopID, sc.ExpectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update inspection state: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// SetTechnician assigns the inspection to a technician.
func (r *InspectionRepo) SetTechnician(ctx context.Context, q Querier, id int64, technicianID string) error {
	return r.setColumn(ctx, q, id, "technician_id", nullString(technicianID))
}

// SetStartedAt records when active inspection work began.
func (r *InspectionRepo) SetStartedAt(ctx context.Context, q Querier, id int64, t time.Time) error {
	return r.setColumn(ctx, q, id, "started_at", FormatTime(t))
}

// SetInspectionSeconds records the measured inspection duration.
func (r *InspectionRepo) SetInspectionSeconds(ctx context.Context, q Querier, id int64, secs int64) error {
	return r.setColumn(ctx, q, id, "inspection_seconds", secs)
}

// SetCompletedAt records when inspection work finished.
func (r *InspectionRepo) SetCompletedAt(ctx context.Context, q Querier, id int64, t time.Time) error {
	return r.setColumn(ctx, q, id, "completed_at", FormatTime(t))
}

// SetFinalizedAt records when the workflow reached its terminal state.
func (r *InspectionRepo) SetFinalizedAt(ctx context.Context, q Querier, id int64, t time.Time) error {
	return r.setColumn(ctx, q, id, "finalized_at", FormatTime(t))
}

// SetRejectionReason stores the manager's rejection reason. An empty string
// clears it.
func (r *InspectionRepo) SetRejectionReason(ctx context.Context, q Querier, id int64, reason string) error {
	return r.setColumn(ctx, q, id, "rejection_reason", nullString(reason))
}

// SetReportSummary stores the prepared customer report as a JSON string.
func (r *InspectionRepo) SetReportSummary(ctx context.Context, q Querier, id int64, summary string) error {
	return r.setColumn(ctx, q, id, "report_summary", nullString(summary))
}

// SetCustomerLinkToken stores the shareable report link token.
func (r *InspectionRepo) SetCustomerLinkToken(ctx context.Context, q Querier, id int64, token string) error {
	return r.setColumn(ctx, q, id, "customer_link_token", nullString(token))
}

func (r *InspectionRepo) setColumn(ctx context.Context, q Querier, id int64, column string, value interface{}) error {
	query := fmt.Sprintf("UPDATE inspections SET %s = ?, updated_at = ? WHERE id = ?", column)
	if _, err := q.ExecContext(ctx, query, value, NowRFC3339(), id); err != nil {
		return fmt.Errorf("failed to update inspection %s: %w", column, err)
	}
	return nil
}

func (r *InspectionRepo) scanOne(row *sql.Row) (*models.Inspection, error) {
	var insp models.Inspection
	var prevState, changedBy, techID, rejection, summary, token sql.NullString
	var startedAt, completedAt, finalizedAt sql.NullTime
	var seconds sql.NullInt64

	err := row.Scan(
		&insp.ID, &insp.ShopID, &insp.CustomerID, &insp.VehicleID,
		&insp.WorkflowState, &prevState, &insp.Version, &insp.StateChangedAt,
		&changedBy, &techID, &startedAt, &seconds, &completedAt, &finalizedAt,
		&rejection, &summary, &token, &insp.CreatedAt, &insp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan inspection: %w", err)
	}

	insp.PreviousState = models.WorkflowState(prevState.String)
	insp.StateChangedBy = changedBy.String
	insp.TechnicianID = techID.String
	insp.RejectionReason = rejection.String
	insp.ReportSummary = summary.String
	insp.CustomerLinkToken = token.String
	if startedAt.Valid {
		insp.StartedAt = &startedAt.Time
	}
	if seconds.Valid {
		insp.InspectionSeconds = &seconds.Int64
	}
	if completedAt.Valid {
		insp.CompletedAt = &completedAt.Time
	}
	if finalizedAt.Valid {
		insp.FinalizedAt = &finalizedAt.Time
	}
	return &insp, nil
}

func (r *InspectionRepo) scanMany(rows *sql.Rows) ([]*models.Inspection, error) {
	var inspections []*models.Inspection
	for rows.Next() {
		var insp models.Inspection
		var prevState, changedBy, techID, rejection, summary, token sql.NullString
		var startedAt, completedAt, finalizedAt sql.NullTime
		var seconds sql.NullInt64

		err := rows.Scan(
			&insp.ID, &insp.ShopID, &insp.CustomerID, &insp.VehicleID,
			&insp.WorkflowState, &prevState, &insp.Version, &insp.StateChangedAt,
			&changedBy, &techID, &startedAt, &seconds, &completedAt, &finalizedAt,
			&rejection, &summary, &token, &insp.CreatedAt, &insp.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}

		insp.PreviousState = models.WorkflowState(prevState.String)
		insp.StateChangedBy = changedBy.String
		insp.TechnicianID = techID.String
		insp.RejectionReason = rejection.String
		insp.ReportSummary = summary.String
		insp.CustomerLinkToken = token.String
		if startedAt.Valid {
			insp.StartedAt = &startedAt.Time
		}
		if seconds.Valid {
			insp.InspectionSeconds = &seconds.Int64
		}
		if completedAt.Valid {
			insp.CompletedAt = &completedAt.Time
		}
		if finalizedAt.Valid {
			insp.FinalizedAt = &finalizedAt.Time
		}
		inspections = append(inspections, &insp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inspections: %w", err)
	}
	return inspections, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
