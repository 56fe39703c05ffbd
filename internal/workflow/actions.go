package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
)

// ActionCategory separates actions that write inspection columns through
// the open transaction from actions that enqueue outbox notifications. Both
// run inside the transition transaction; only delivery happens later.
type ActionCategory string

const (
	ActionCategoryTransactional ActionCategory = "transactional"
	ActionCategoryQueued        ActionCategory = "queued"
)

// ActionContext carries what actions may read and the clock they share.
// Inspection is the row as read at the start of the transaction; actions
// that write through it also update the in-memory copy so later actions in
// the same list observe the write.
type ActionContext struct {
	Inspection *models.Inspection
	Actor      models.Actor
	Reason     string
	Now        time.Time
}

type actionFunc func(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error)

type actionEntry struct {
	Category ActionCategory
	Run      actionFunc
}

var actionRegistry = map[ActionName]actionEntry{
	ActionStartTimer:            {ActionCategoryTransactional, runStartTimer},
	ActionCalcDuration:          {ActionCategoryTransactional, runCalcDuration},
	ActionSetCompletionTime:     {ActionCategoryTransactional, runSetCompletionTime},
	ActionPrepareCustomerReport: {ActionCategoryTransactional, runPrepareCustomerReport},
	ActionClearRejectionReason:  {ActionCategoryTransactional, runClearRejectionReason},
	ActionCreateCustomerLink:    {ActionCategoryTransactional, runCreateCustomerLink},
	ActionRecordCompletion:      {ActionCategoryTransactional, runRecordCompletion},
	ActionNotifyManagers:        {ActionCategoryQueued, runNotifyManagers},
	ActionNotifyTechnician:      {ActionCategoryQueued, runNotifyTechnician},
	ActionSendSMS:               {ActionCategoryQueued, runSendSMS},
}

// CategoryOf returns the category of a known action name.
func CategoryOf(name ActionName) (ActionCategory, bool) {
	entry, ok := actionRegistry[name]
	return entry.Category, ok
}

// ActionRunner executes the actions declared on a transition rule inside
// the executor's transaction.
type ActionRunner struct {
	inspections   *db.InspectionRepo
	notifications *db.NotificationRepo
	reader        DataReader
	logger        *zap.Logger
}

// NewActionRunner creates an ActionRunner.
func NewActionRunner(inspections *db.InspectionRepo, notifications *db.NotificationRepo, reader DataReader, logger *zap.Logger) *ActionRunner {
	return &ActionRunner{
		inspections:   inspections,
		notifications: notifications,
		reader:        reader,
		logger:        logger,
	}
}

// Run executes names in declared order, accumulating warnings. Unknown
// names are logged and skipped; any action error aborts the caller's
// transaction.
func (r *ActionRunner) Run(ctx context.Context, tx *sql.Tx, names []ActionName, actx *ActionContext) ([]string, error) {
	var warnings []string
	for _, name := range names {
		entry, ok := actionRegistry[name]
		if !ok {
			r.logger.Warn("unknown action skipped",
				zap.String("action", string(name)),
				zap.Int64("inspection_id", actx.Inspection.ID),
			)
			continue
		}

		w, err := entry.Run(ctx, r, tx, actx)
		if err != nil {
			return nil, fmt.Errorf("action %s failed: %w", name, err)
		}
		warnings = append(warnings, w...)
	}
	return warnings, nil
}

func runStartTimer(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if err := r.inspections.SetStartedAt(ctx, tx, actx.Inspection.ID, actx.Now); err != nil {
		return nil, err
	}
	started := actx.Now
	actx.Inspection.StartedAt = &started
	return nil, nil
}

func runCalcDuration(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if actx.Inspection.StartedAt == nil {
		return []string{"inspection timer was never started"}, nil
	}

	secs := int64(actx.Now.Sub(*actx.Inspection.StartedAt).Seconds())
	if secs < 0 {
		secs = 0
	}
	if err := r.inspections.SetInspectionSeconds(ctx, tx, actx.Inspection.ID, secs); err != nil {
		return nil, err
	}
	actx.Inspection.InspectionSeconds = &secs
	return nil, nil
}

func runSetCompletionTime(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if err := r.inspections.SetCompletedAt(ctx, tx, actx.Inspection.ID, actx.Now); err != nil {
		return nil, err
	}
	completed := actx.Now
	actx.Inspection.CompletedAt = &completed
	return nil, nil
}

// reportSummary is the snapshot stored in inspections.report_summary when
// an inspection is approved.
type reportSummary struct {
	GeneratedAt time.Time      `json:"generated_at"`
	TotalItems  int            `json:"total_items"`
	Counts      map[string]int `json:"counts"`
}

func runPrepareCustomerReport(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	items, err := r.reader.ItemsForInspection(ctx, tx, actx.Inspection.ID)
	if err != nil {
		return nil, err
	}

	summary := reportSummary{
		GeneratedAt: actx.Now,
		TotalItems:  len(items),
		Counts:      make(map[string]int),
	}
	for _, item := range items {
		summary.Counts[string(item.Condition)]++
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report summary: %w", err)
	}
	if err := r.inspections.SetReportSummary(ctx, tx, actx.Inspection.ID, string(data)); err != nil {
		return nil, err
	}
	actx.Inspection.ReportSummary = string(data)
	return nil, nil
}

func runClearRejectionReason(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if err := r.inspections.SetRejectionReason(ctx, tx, actx.Inspection.ID, ""); err != nil {
		return nil, err
	}
	actx.Inspection.RejectionReason = ""
	return nil, nil
}

func runCreateCustomerLink(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if _, err := r.ensureLinkToken(ctx, tx, actx); err != nil {
		return nil, err
	}
	return nil, nil
}

func runRecordCompletion(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	if err := r.inspections.SetFinalizedAt(ctx, tx, actx.Inspection.ID, actx.Now); err != nil {
		return nil, err
	}
	finalized := actx.Now
	actx.Inspection.FinalizedAt = &finalized
	return nil, nil
}

func runNotifyManagers(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	n := &models.Notification{
		ShopID:       actx.Inspection.ShopID,
		InspectionID: actx.Inspection.ID,
		Kind:         models.NotificationKindAlert,
		Recipient:    "managers",
		Body:         fmt.Sprintf("Inspection %d is ready for review", actx.Inspection.ID),
	}
	return nil, r.notifications.Enqueue(ctx, tx, n)
}

func runNotifyTechnician(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	recipient := actx.Inspection.TechnicianID
	if recipient == "" {
		recipient = "technician"
	}

	n := &models.Notification{
		ShopID:       actx.Inspection.ShopID,
		InspectionID: actx.Inspection.ID,
		Kind:         models.NotificationKindAlert,
		Recipient:    recipient,
		Body:         fmt.Sprintf("Inspection %d was rejected: %s", actx.Inspection.ID, actx.Reason),
	}
	return nil, r.notifications.Enqueue(ctx, tx, n)
}

func runSendSMS(ctx context.Context, r *ActionRunner, tx *sql.Tx, actx *ActionContext) ([]string, error) {
	customer, err := r.reader.CustomerForInspection(ctx, tx, actx.Inspection)
	if err != nil {
		return nil, err
	}
	if customer == nil || !customer.HasPhone() {
		return nil, fmt.Errorf("customer has no phone number")
	}

	token, err := r.ensureLinkToken(ctx, tx, actx)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		ShopID:       actx.Inspection.ShopID,
		InspectionID: actx.Inspection.ID,
		Kind:         models.NotificationKindSMS,
		Recipient:    customer.Phone,
		Body:         fmt.Sprintf("Your inspection report is ready. Access code: %s", token),
	}
	return nil, r.notifications.Enqueue(ctx, tx, n)
}

// ensureLinkToken returns the inspection's share token, generating and
// storing one when absent. send_sms and create_customer_link both call it,
// so the token survives whichever order the rule declares them in.
func (r *ActionRunner) ensureLinkToken(ctx context.Context, tx *sql.Tx, actx *ActionContext) (string, error) {
	if actx.Inspection.CustomerLinkToken != "" {
		return actx.Inspection.CustomerLinkToken, nil
	}

	token := uuid.NewString()
	if err := r.inspections.SetCustomerLinkToken(ctx, tx, actx.Inspection.ID, token); err != nil {
		return "", err
	}
	actx.Inspection.CustomerLinkToken = token
	return token, nil
}
