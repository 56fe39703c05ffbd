package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/audit"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
)

// TransitionRequest asks the executor to move one inspection along a
// declared edge. From is the state the caller believes the inspection is
// in; a mismatch is a conflict, not a silent re-read.
type TransitionRequest struct {
	InspectionID int64                  `json:"inspection_id"`
	From         models.WorkflowState   `json:"from"`
	To           models.WorkflowState   `json:"to"`
	Actor        models.Actor           `json:"actor"`
	Reason       string                 `json:"reason,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ForceRequest asks the executor to move an inspection to an arbitrary
// valid state, skipping the rule table. Admin only, reason required.
type ForceRequest struct {
	InspectionID int64                  `json:"inspection_id"`
	To           models.WorkflowState   `json:"to"`
	Actor        models.Actor           `json:"actor"`
	Reason       string                 `json:"reason"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// TransitionResult carries the inspection as re-read after the commit and
// any warnings the checks or actions produced along the way.
type TransitionResult struct {
	Inspection *models.Inspection `json:"inspection"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Executor applies workflow transitions. Each call runs the full sequence
// of rule lookup, checks, state write, history append and actions inside a
// single transaction, so a failure at any step leaves no trace beyond the
// audit log.
type Executor struct {
	db          *db.DB
	inspections *db.InspectionRepo
	history     *db.HistoryRepo
	evaluator   *Evaluator
	actions     *ActionRunner
	sink        audit.Sink
	logger      *zap.Logger
}

// NewExecutor creates an Executor and its repositories over the given
// database.
func NewExecutor(database *db.DB, sink audit.Sink, logger *zap.Logger) *Executor {
	inspections := db.NewInspectionRepo(database.DB)
	items := db.NewItemRepo(database.DB)
	customers := db.NewCustomerRepo(database.DB)
	notifications := db.NewNotificationRepo(database.DB)
	reader := NewDataReader(items, customers)

	return &Executor{
		db:          database,
		inspections: inspections,
		history:     db.NewHistoryRepo(database.DB),
		evaluator:   NewEvaluator(reader, logger),
		actions:     NewActionRunner(inspections, notifications, reader, logger),
		sink:        sink,
		logger:      logger,
	}
}

// Execute applies one rule-table transition. On success the returned
// result holds the updated inspection; on failure the inspection row,
// history and queued notifications are untouched.
func (ex *Executor) Execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	result, err := ex.execute(ctx, req)
	if err != nil {
		ex.audit(ctx, req.Actor, req.InspectionID, "transition_denied",
			fmt.Sprintf("%s -> %s: %s", req.From, req.To, err.Error()))
		return nil, err
	}

	ex.audit(ctx, req.Actor, req.InspectionID, "transition",
		fmt.Sprintf("%s -> %s", req.From, req.To))
	ex.logger.Info("transition applied",
		zap.Int64("inspection_id", req.InspectionID),
		zap.String("from", string(req.From)),
		zap.String("to", string(req.To)),
		zap.String("user", req.Actor.UserID),
	)
	return result, nil
}

func (ex *Executor) execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if err := validateTransitionRequest(req.InspectionID, req.Actor); err != nil {
		return nil, err
	}
	if !req.From.IsValid() {
		return nil, errors.InvalidArgs("invalid from state: %s", req.From)
	}
	if !req.To.IsValid() {
		return nil, errors.InvalidArgs("invalid to state: %s", req.To)
	}

	rule, ok := RuleFor(req.From, req.To)
	if !ok {
		return nil, errors.InvalidTransition("no transition from %s to %s", req.From, req.To)
	}
	if !rule.AllowsRole(req.Actor.Role) {
		return nil, errors.Unauthorized("role %s may not transition %s to %s",
			req.Actor.Role, req.From, req.To)
	}

	var (
		updated  *models.Inspection
		warnings []string
	)
	err := ex.db.WithTx(ctx, func(tx *sql.Tx) error {
		insp, err := ex.inspections.GetByID(ctx, tx, req.InspectionID, req.Actor.ShopID)
		if err != nil {
			return err
		}
		if insp == nil {
			return errors.NotFound("inspection %d not found", req.InspectionID)
		}
		if insp.WorkflowState != req.From {
			return errors.StateConflict("inspection is in state %s, not %s",
				insp.WorkflowState, req.From)
		}

		now := time.Now().UTC()
		creq := CheckRequest{Inspection: insp, Actor: req.Actor, Reason: req.Reason}

		var failed []string
		for _, name := range rule.Conditions {
			res, err := ex.evaluator.CheckCondition(ctx, tx, name, creq)
			if err != nil {
				return err
			}
			warnings = append(warnings, res.Warnings...)
			failed = append(failed, res.Errors...)
		}
		if len(failed) > 0 {
			return errors.ConditionFailed(failed)
		}

		for _, name := range rule.Validations {
			res, err := ex.evaluator.CheckValidation(ctx, tx, name, creq)
			if err != nil {
				return err
			}
			warnings = append(warnings, res.Warnings...)
			failed = append(failed, res.Errors...)
		}
		if len(failed) > 0 {
			return errors.ValidationFailed(failed)
		}

		applied, err := ex.inspections.ApplyStateChange(ctx, tx, db.StateChange{
			InspectionID:    insp.ID,
			ShopID:          insp.ShopID,
			FromState:       req.From,
			ToState:         req.To,
			ExpectedVersion: insp.Version,
			ChangedBy:       req.Actor.UserID,
			ChangedAt:       now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return errors.StateConflict("inspection was modified concurrently")
		}

		if req.To == models.StateRejected {
			if err := ex.inspections.SetRejectionReason(ctx, tx, insp.ID, req.Reason); err != nil {
				return err
			}
		}

		entry := &models.StateHistoryEntry{
			InspectionID:     insp.ID,
			ShopID:           insp.ShopID,
			FromState:        req.From,
			ToState:          req.To,
			ChangedBy:        req.Actor.UserID,
			Role:             req.Actor.Role,
			Reason:           req.Reason,
			ValidationPassed: true,
			ChangedAt:        now,
		}
		if err := entry.SetMetadata(req.Metadata); err != nil {
			return err
		}
		if err := ex.history.Append(ctx, tx, entry); err != nil {
			return err
		}

		actx := &ActionContext{
			Inspection: insp,
			Actor:      req.Actor,
			Reason:     req.Reason,
			Now:        now,
		}
		actionWarnings, err := ex.actions.Run(ctx, tx, rule.Actions, actx)
		if err != nil {
			return err
		}
		warnings = append(warnings, actionWarnings...)

		updated, err = ex.inspections.GetByID(ctx, tx, insp.ID, insp.ShopID)
		return err
	})
	if err != nil {
		return nil, internalize(err)
	}

	return &TransitionResult{Inspection: updated, Warnings: warnings}, nil
}

// Force moves an inspection to any valid state without consulting the rule
// table. Conditions, validations and actions are all skipped; the history
// entry records validation_passed=false and metadata.forced=true so the
// bypass is visible forever.
func (ex *Executor) Force(ctx context.Context, req ForceRequest) (*TransitionResult, error) {
	result, err := ex.force(ctx, req)
	if err != nil {
		ex.audit(ctx, req.Actor, req.InspectionID, "force_transition_denied",
			fmt.Sprintf("-> %s: %s", req.To, err.Error()))
		return nil, err
	}

	ex.audit(ctx, req.Actor, req.InspectionID, "force_transition",
		fmt.Sprintf("%s -> %s", result.Inspection.PreviousState, req.To))
	ex.logger.Warn("transition forced",
		zap.Int64("inspection_id", req.InspectionID),
		zap.String("to", string(req.To)),
		zap.String("user", req.Actor.UserID),
		zap.String("reason", req.Reason),
	)
	return result, nil
}

func (ex *Executor) force(ctx context.Context, req ForceRequest) (*TransitionResult, error) {
	if err := validateTransitionRequest(req.InspectionID, req.Actor); err != nil {
		return nil, err
	}
	if req.Actor.Role != models.RoleAdmin {
		return nil, errors.Unauthorized("only admins may force transitions")
	}
	if !req.To.IsValid() {
		return nil, errors.InvalidArgs("invalid to state: %s", req.To)
	}
	if req.Reason == "" {
		return nil, errors.ConditionFailed([]string{"reason is required"})
	}

	var updated *models.Inspection
	err := ex.db.WithTx(ctx, func(tx *sql.Tx) error {
		insp, err := ex.inspections.GetByID(ctx, tx, req.InspectionID, req.Actor.ShopID)
		if err != nil {
			return err
		}
		if insp == nil {
			return errors.NotFound("inspection %d not found", req.InspectionID)
		}

		now := time.Now().UTC()
		applied, err := ex.inspections.ApplyStateChange(ctx, tx, db.StateChange{
			InspectionID:    insp.ID,
			ShopID:          insp.ShopID,
			FromState:       insp.WorkflowState,
			ToState:         req.To,
			ExpectedVersion: insp.Version,
			ChangedBy:       req.Actor.UserID,
			ChangedAt:       now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return errors.StateConflict("inspection was modified concurrently")
		}

		md := make(map[string]interface{}, len(req.Metadata)+1)
		for k, v := range req.Metadata {
			md[k] = v
		}
		md["forced"] = true

		entry := &models.StateHistoryEntry{
			InspectionID:     insp.ID,
			ShopID:           insp.ShopID,
			FromState:        insp.WorkflowState,
			ToState:          req.To,
			ChangedBy:        req.Actor.UserID,
			Role:             req.Actor.Role,
			Reason:           req.Reason,
			ValidationPassed: false,
			ChangedAt:        now,
		}
		if err := entry.SetMetadata(md); err != nil {
			return err
		}
		if err := ex.history.Append(ctx, tx, entry); err != nil {
			return err
		}

		updated, err = ex.inspections.GetByID(ctx, tx, insp.ID, insp.ShopID)
		return err
	})
	if err != nil {
		return nil, internalize(err)
	}

	return &TransitionResult{Inspection: updated}, nil
}

func validateTransitionRequest(inspectionID int64, actor models.Actor) error {
	if inspectionID <= 0 {
		return errors.InvalidArgs("inspection id is required")
	}
	if err := actor.Validate(); err != nil {
		return errors.InvalidArgs("invalid actor: %v", err)
	}
	return nil
}

// internalize keeps engine error kinds intact and wraps everything else,
// storage failures mostly, as internal.
func internalize(err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.WrapInternal(err, "transition failed")
}

// audit records one trail entry. Sink failures are logged and swallowed so
// auditing never fails the operation it describes.
func (ex *Executor) audit(ctx context.Context, actor models.Actor, inspectionID int64, action, detail string) {
	err := ex.sink.Record(ctx, audit.Entry{
		ShopID:       actor.ShopID,
		InspectionID: inspectionID,
		Actor:        actor.UserID,
		Role:         actor.Role,
		Action:       action,
		Detail:       detail,
	})
	if err != nil {
		ex.logger.Error("failed to record audit entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
