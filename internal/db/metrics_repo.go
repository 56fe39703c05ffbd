package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MetricsRepo provides aggregate queries over the state history.
type MetricsRepo struct {
	db *sql.DB
}

// NewMetricsRepo creates a new MetricsRepo.
func NewMetricsRepo(db *sql.DB) *MetricsRepo {
	return &MetricsRepo{db: db}
}

// MetricsFilter defines filters for metrics queries.
type MetricsFilter struct {
	ShopID int64
	Since  *time.Time
}

// TransitionCount is the number of times one edge was taken.
type TransitionCount struct {
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Count     int    `json:"count"`
}

// StateDwell is the average time inspections spent in one state before
// leaving it. Terminal states never appear because they are never left.
type StateDwell struct {
	State    string  `json:"state"`
	AvgHours float64 `json:"avg_hours"`
	Samples  int     `json:"samples"`
}

// TransitionCounts returns how many times each edge was taken, grouped by
// from and to state.
func (r *MetricsRepo) TransitionCounts(ctx context.Context, filter MetricsFilter) ([]TransitionCount, error) {
	where, args := r.buildFilterWhere(filter, "h")
	query := fmt.Sprintf(`
		SELECT h.from_state, h.to_state, COUNT(*) as count
		FROM state_history h
		WHERE 1=1 %s
		GROUP BY h.from_state, h.to_state
		ORDER BY h.from_state, h.to_state
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transition counts: %w", err)
	}
	defer rows.Close()

	var results []TransitionCount
	for rows.Next() {
		var tc TransitionCount
		if err := rows.Scan(&tc.FromState, &tc.ToState, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan transition count: %w", err)
		}
		results = append(results, tc)
	}
	return results, rows.Err()
}

// AvgCompletionHours returns the average hours from inspection creation to
// the transition that reached the completed state, and the number of
// completions measured.
func (r *MetricsRepo) AvgCompletionHours(ctx context.Context, filter MetricsFilter) (float64, int, error) {
	where, args := r.buildFilterWhere(filter, "h")
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as completions,
			AVG((julianday(h.changed_at) - julianday(i.created_at)) * 24) as avg_hours
		FROM state_history h
		JOIN inspections i ON h.inspection_id = i.id
		WHERE h.to_state = 'completed' %s
	`, where)

	var completions int
	var avgHours sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&completions, &avgHours)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("failed to get completion hours: %w", err)
	}

	if !avgHours.Valid {
		return 0, completions, nil
	}
	return avgHours.Float64, completions, nil
}

// StateDwells returns the average dwell per state. The dwell of a state is
// measured on the transition that left it: the gap between that transition
// and the previous one on the same inspection, or inspection creation for
// the first transition.
func (r *MetricsRepo) StateDwells(ctx context.Context, filter MetricsFilter) ([]StateDwell, error) {
	where, args := r.buildFilterWhere(filter, "h")
	query := fmt.Sprintf(`
		SELECT from_state, AVG(dwell_hours) as avg_hours, COUNT(*) as samples
		FROM (
			SELECT
				h.from_state as from_state,
				(julianday(h.changed_at) - julianday(COALESCE(
					LAG(h.changed_at) OVER (PARTITION BY h.inspection_id ORDER BY h.id),
					i.created_at
				))) * 24 as dwell_hours
			FROM state_history h
			JOIN inspections i ON h.inspection_id = i.id
			WHERE 1=1 %s
		)
		GROUP BY from_state
		ORDER BY avg_hours DESC
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get state dwells: %w", err)
	}
	defer rows.Close()

	var results []StateDwell
	for rows.Next() {
		var sd StateDwell
		var avgHours sql.NullFloat64
		if err := rows.Scan(&sd.State, &avgHours, &sd.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan state dwell: %w", err)
		}
		if avgHours.Valid {
			sd.AvgHours = avgHours.Float64
		}
		results = append(results, sd)
	}
	return results, rows.Err()
}

// buildFilterWhere builds the WHERE clause portion for filters.
// The alias parameter is the table alias for state_history (usually "h").
func (r *MetricsRepo) buildFilterWhere(filter MetricsFilter, alias string) (string, []interface{}) {
	where := ""
	var args []interface{}

	if filter.ShopID > 0 {
		where += fmt.Sprintf(" AND %s.shop_id = ?", alias)
		args = append(args, filter.ShopID)
	}
	if filter.Since != nil {
		where += fmt.Sprintf(" AND julianday(%s.changed_at) >= julianday(?)", alias)
		args = append(args, FormatTime(*filter.Since))
	}

	return where, args
}
