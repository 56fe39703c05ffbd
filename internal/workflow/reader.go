package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
)

// Statistics summarizes a shop's workflow activity over a time window.
// TransitionCounts is keyed "from->to".
type Statistics struct {
	ShopID             int64           `json:"shop_id"`
	WindowDays         int             `json:"window_days"`
	TransitionCounts   map[string]int  `json:"transition_counts"`
	AvgCompletionHours float64         `json:"avg_completion_hours"`
	Completions        int             `json:"completions"`
	StateDwells        []db.StateDwell `json:"state_dwells,omitempty"`
	Bottlenecks        []Bottleneck    `json:"bottlenecks,omitempty"`
}

// Bottleneck is a state whose average dwell time stands out against the
// shop's average across all states.
type Bottleneck struct {
	State        models.WorkflowState `json:"state"`
	AvgHours     float64              `json:"avg_hours"`
	ShopAvgHours float64              `json:"shop_avg_hours"`
}

// Reader serves history and statistics queries. Reads run outside any
// transaction; history order and shop scoping are enforced in SQL.
type Reader struct {
	db          *db.DB
	inspections *db.InspectionRepo
	history     *db.HistoryRepo
	metrics     *db.MetricsRepo
	cfg         config.MetricsConfig
	logger      *zap.Logger
}

// NewReader creates a Reader.
func NewReader(database *db.DB, cfg config.MetricsConfig, logger *zap.Logger) *Reader {
	return &Reader{
		db:          database,
		inspections: db.NewInspectionRepo(database.DB),
		history:     db.NewHistoryRepo(database.DB),
		metrics:     db.NewMetricsRepo(database.DB),
		cfg:         cfg,
		logger:      logger,
	}
}

// History returns an inspection's transition history, most recent first.
// The inspection must belong to the actor's shop. A limit of zero returns
// all entries.
func (r *Reader) History(ctx context.Context, inspectionID int64, actor models.Actor, limit int) ([]*models.StateHistoryEntry, error) {
	if inspectionID <= 0 {
		return nil, errors.InvalidArgs("inspection id is required")
	}
	if actor.ShopID <= 0 {
		return nil, errors.InvalidArgs("invalid actor: shop_id is required")
	}

	insp, err := r.inspections.GetByID(ctx, r.db, inspectionID, actor.ShopID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load inspection")
	}
	if insp == nil {
		return nil, errors.NotFound("inspection %d not found", inspectionID)
	}

	entries, err := r.history.ListByInspection(ctx, inspectionID, actor.ShopID, limit)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load history")
	}
	return entries, nil
}

// Statistics computes transition counts, completion averages and dwell
// bottlenecks for one shop. A windowDays of zero or less uses the
// configured default.
func (r *Reader) Statistics(ctx context.Context, shopID int64, windowDays int) (*Statistics, error) {
	if shopID <= 0 {
		return nil, errors.InvalidArgs("shop id is required")
	}
	if windowDays <= 0 {
		windowDays = r.cfg.DefaultWindowDays
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	filter := db.MetricsFilter{ShopID: shopID, Since: &since}

	counts, err := r.metrics.TransitionCounts(ctx, filter)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to count transitions")
	}
	avgHours, completions, err := r.metrics.AvgCompletionHours(ctx, filter)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to compute completion average")
	}
	dwells, err := r.metrics.StateDwells(ctx, filter)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to compute state dwells")
	}

	stats := &Statistics{
		ShopID:             shopID,
		WindowDays:         windowDays,
		TransitionCounts:   make(map[string]int, len(counts)),
		AvgCompletionHours: avgHours,
		Completions:        completions,
		StateDwells:        dwells,
	}
	for _, c := range counts {
		stats.TransitionCounts[TransitionKey(models.WorkflowState(c.FromState), models.WorkflowState(c.ToState))] = c.Count
	}
	stats.Bottlenecks = r.findBottlenecks(dwells)

	return stats, nil
}

// findBottlenecks flags states whose average dwell exceeds the configured
// multiple of the shop-wide average. The shop average weights each state
// by its sample count so a one-off slow state does not skew it.
func (r *Reader) findBottlenecks(dwells []db.StateDwell) []Bottleneck {
	var totalHours float64
	var totalSamples int
	for _, d := range dwells {
		totalHours += d.AvgHours * float64(d.Samples)
		totalSamples += d.Samples
	}
	if totalSamples == 0 {
		return nil
	}
	shopAvg := totalHours / float64(totalSamples)

	multiplier := r.cfg.BottleneckMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	var bottlenecks []Bottleneck
	for _, d := range dwells {
		if d.AvgHours > multiplier*shopAvg {
			bottlenecks = append(bottlenecks, Bottleneck{
				State:        models.WorkflowState(d.State),
				AvgHours:     d.AvgHours,
				ShopAvgHours: shopAvg,
			})
		}
	}
	return bottlenecks
}
