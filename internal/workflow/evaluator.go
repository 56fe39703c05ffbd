package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
)

// CheckResult accumulates the outcome of one check. Errors block the
// transition; warnings ride along on success. A result with no errors
// passes.
type CheckResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func pass(warnings ...string) CheckResult {
	return CheckResult{OK: true, Warnings: warnings}
}

func fail(errors ...string) CheckResult {
	return CheckResult{OK: false, Errors: errors}
}

// CheckRequest carries what checks may inspect: the row as read inside the
// transaction, the caller, and the caller's reason.
type CheckRequest struct {
	Inspection *models.Inspection
	Actor      models.Actor
	Reason     string
}

// DataReader is the storage surface checks and actions read through. The
// Querier argument keeps reads inside the executor's open transaction.
type DataReader interface {
	ItemsForInspection(ctx context.Context, q db.Querier, inspectionID int64) ([]*models.InspectionItem, error)
	CustomerForInspection(ctx context.Context, q db.Querier, insp *models.Inspection) (*models.Customer, error)
}

type dbReader struct {
	items     *db.ItemRepo
	customers *db.CustomerRepo
}

// NewDataReader creates a DataReader over the item and customer repos.
func NewDataReader(items *db.ItemRepo, customers *db.CustomerRepo) DataReader {
	return &dbReader{items: items, customers: customers}
}

func (r *dbReader) ItemsForInspection(ctx context.Context, q db.Querier, inspectionID int64) ([]*models.InspectionItem, error) {
	return r.items.ListByInspection(ctx, q, inspectionID)
}

func (r *dbReader) CustomerForInspection(ctx context.Context, q db.Querier, insp *models.Inspection) (*models.Customer, error) {
	return r.customers.GetByID(ctx, q, insp.CustomerID, insp.ShopID)
}

// Evaluator runs condition and validation checks against a closed registry
// of known names. Unknown names warn and pass rather than brick a
// transition whose rule names a check this build does not know.
type Evaluator struct {
	reader DataReader
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(reader DataReader, logger *zap.Logger) *Evaluator {
	return &Evaluator{reader: reader, logger: logger}
}

// CheckCondition evaluates one named condition. The error return is for
// storage failures only; semantic failures land in the CheckResult.
func (e *Evaluator) CheckCondition(ctx context.Context, q db.Querier, name ConditionName, req CheckRequest) (CheckResult, error) {
	fn, ok := conditionRegistry[name]
	if !ok {
		e.logger.Warn("unknown condition, passing with warning",
			zap.String("condition", string(name)),
			zap.Int64("inspection_id", req.Inspection.ID),
		)
		return pass(fmt.Sprintf("unknown condition %q skipped", name)), nil
	}
	return fn(ctx, e, q, req)
}

// CheckValidation evaluates one named validation. The error return is for
// storage failures only; semantic failures land in the CheckResult.
func (e *Evaluator) CheckValidation(ctx context.Context, q db.Querier, name ValidationName, req CheckRequest) (CheckResult, error) {
	fn, ok := validationRegistry[name]
	if !ok {
		e.logger.Warn("unknown validation, passing with warning",
			zap.String("validation", string(name)),
			zap.Int64("inspection_id", req.Inspection.ID),
		)
		return pass(fmt.Sprintf("unknown validation %q skipped", name)), nil
	}
	return fn(ctx, e, q, req)
}

type checkFunc func(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error)

var conditionRegistry = map[ConditionName]checkFunc{
	ConditionMayAddItems:      checkMayAddItems,
	ConditionHasItems:         checkHasItems,
	ConditionAllItemsScored:   checkAllItemsScored,
	ConditionReasonRequired:   checkReasonRequired,
	ConditionCustomerHasPhone: checkCustomerHasPhone,
}

var validationRegistry = map[ValidationName]checkFunc{
	ValidationCheckCriticalItems:      checkCriticalItems,
	ValidationNoBlockingCriticalItems: checkNoBlockingCriticalItems,
}

func checkMayAddItems(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	if !req.Inspection.CanModifyItems() {
		return fail(fmt.Sprintf("items can no longer be added in state %s", req.Inspection.WorkflowState)), nil
	}
	return pass(), nil
}

func checkHasItems(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	items, err := e.reader.ItemsForInspection(ctx, q, req.Inspection.ID)
	if err != nil {
		return CheckResult{}, err
	}
	if len(items) == 0 {
		return fail("inspection has no items"), nil
	}
	return pass(), nil
}

func checkAllItemsScored(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	items, err := e.reader.ItemsForInspection(ctx, q, req.Inspection.ID)
	if err != nil {
		return CheckResult{}, err
	}
	unscored := 0
	for _, item := range items {
		if !item.IsScored() {
			unscored++
		}
	}
	if unscored > 0 {
		return fail(fmt.Sprintf("%d item(s) not yet scored", unscored)), nil
	}
	return pass(), nil
}

func checkReasonRequired(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	if req.Reason == "" {
		return fail("reason is required"), nil
	}
	return pass(), nil
}

func checkCustomerHasPhone(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	customer, err := e.reader.CustomerForInspection(ctx, q, req.Inspection)
	if err != nil {
		return CheckResult{}, err
	}
	if customer == nil {
		return fail("customer not found"), nil
	}
	if !customer.HasPhone() {
		return fail("customer has no phone number on file"), nil
	}
	return pass(), nil
}

func checkCriticalItems(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	items, err := e.reader.ItemsForInspection(ctx, q, req.Inspection.ID)
	if err != nil {
		return CheckResult{}, err
	}
	critical := 0
	for _, item := range items {
		if item.Condition.IsCritical() {
			critical++
		}
	}
	if critical > 0 {
		return pass(fmt.Sprintf("%d critical item(s) need immediate attention", critical)), nil
	}
	return pass(), nil
}

func checkNoBlockingCriticalItems(ctx context.Context, e *Evaluator, q db.Querier, req CheckRequest) (CheckResult, error) {
	items, err := e.reader.ItemsForInspection(ctx, q, req.Inspection.ID)
	if err != nil {
		return CheckResult{}, err
	}
	for _, item := range items {
		if item.IsBlockingCritical() {
			return fail("cannot approve with unresolved critical items"), nil
		}
	}
	return pass(), nil
}
