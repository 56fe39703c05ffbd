// Package workflow implements the inspection approval workflow: the
// transition rule table, condition and validation checks, the transactional
// transition executor, its actions, and read access to history and
// statistics.
package workflow

import (
	"github.com/spannerworks/ratchet/internal/models"
)

// ConditionName identifies a pre-transition gate check.
type ConditionName string

const (
	ConditionMayAddItems      ConditionName = "may_add_items"
	ConditionHasItems         ConditionName = "has_items"
	ConditionAllItemsScored   ConditionName = "all_items_scored"
	ConditionReasonRequired   ConditionName = "reason_required"
	ConditionCustomerHasPhone ConditionName = "customer_has_phone"
)

// ValidationName identifies a business-rule check. Validations may block
// with errors or pass with warnings.
type ValidationName string

const (
	ValidationCheckCriticalItems      ValidationName = "check_critical_items"
	ValidationNoBlockingCriticalItems ValidationName = "no_blocking_critical_items"
)

// ActionName identifies a side effect declared on a transition rule.
type ActionName string

const (
	ActionStartTimer            ActionName = "start_timer"
	ActionCalcDuration          ActionName = "calc_duration"
	ActionSetCompletionTime     ActionName = "set_completion_time"
	ActionPrepareCustomerReport ActionName = "prepare_customer_report"
	ActionClearRejectionReason  ActionName = "clear_rejection_reason"
	ActionCreateCustomerLink    ActionName = "create_customer_link"
	ActionRecordCompletion      ActionName = "record_completion"
	ActionNotifyManagers        ActionName = "notify_managers"
	ActionNotifyTechnician      ActionName = "notify_technician"
	ActionSendSMS               ActionName = "send_sms"
)

// TransitionRule defines a valid state transition and its requirements.
type TransitionRule struct {
	From        models.WorkflowState
	To          models.WorkflowState
	Roles       []models.Role
	Conditions  []ConditionName
	Validations []ValidationName
	Actions     []ActionName
	Description string
}

// AllowsRole returns true if the role may perform this transition.
func (r *TransitionRule) AllowsRole(role models.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// transitionRules defines all valid state transitions.
var transitionRules = []TransitionRule{
	{
		From:        models.StateDraft,
		To:          models.StateInProgress,
		Roles:       []models.Role{models.RoleTechnician, models.RoleManager, models.RoleAdmin},
		Conditions:  []ConditionName{ConditionMayAddItems},
		Actions:     []ActionName{ActionStartTimer},
		Description: "Inspection work started",
	},
	{
		From:        models.StateInProgress,
		To:          models.StatePendingReview,
		Roles:       []models.Role{models.RoleTechnician, models.RoleManager, models.RoleAdmin},
		Conditions:  []ConditionName{ConditionHasItems, ConditionAllItemsScored},
		Validations: []ValidationName{ValidationCheckCriticalItems},
		Actions:     []ActionName{ActionCalcDuration, ActionNotifyManagers},
		Description: "Inspection submitted for review",
	},
	{
		From:        models.StatePendingReview,
		To:          models.StateApproved,
		Roles:       []models.Role{models.RoleManager, models.RoleAdmin},
		Validations: []ValidationName{ValidationNoBlockingCriticalItems},
		Actions:     []ActionName{ActionSetCompletionTime, ActionPrepareCustomerReport},
		Description: "Inspection approved by manager",
	},
	{
		From:        models.StatePendingReview,
		To:          models.StateRejected,
		Roles:       []models.Role{models.RoleManager, models.RoleAdmin},
		Conditions:  []ConditionName{ConditionReasonRequired},
		Actions:     []ActionName{ActionNotifyTechnician},
		Description: "Inspection rejected back to the technician",
	},
	{
		From:        models.StateRejected,
		To:          models.StateInProgress,
		Roles:       []models.Role{models.RoleTechnician, models.RoleManager, models.RoleAdmin},
		Actions:     []ActionName{ActionClearRejectionReason},
		Description: "Rejected inspection reopened for rework",
	},
	{
		From:        models.StateApproved,
		To:          models.StateSentToCustomer,
		Roles:       []models.Role{models.RoleManager, models.RoleAdmin},
		Conditions:  []ConditionName{ConditionCustomerHasPhone},
		Actions:     []ActionName{ActionSendSMS, ActionCreateCustomerLink},
		Description: "Report sent to the customer",
	},
	{
		From:        models.StateSentToCustomer,
		To:          models.StateCompleted,
		Roles:       []models.Role{models.RoleTechnician, models.RoleManager, models.RoleAdmin},
		Actions:     []ActionName{ActionRecordCompletion},
		Description: "Inspection closed out",
	},
	{
		From:        models.StateCompleted,
		To:          models.StateApproved,
		Roles:       []models.Role{models.RoleAdmin},
		Conditions:  []ConditionName{ConditionReasonRequired},
		Description: "Completed inspection reopened by an admin",
	},
}

// transitionRuleMap provides fast lookup of transition rules.
var transitionRuleMap map[string]*TransitionRule

func init() {
	transitionRuleMap = make(map[string]*TransitionRule)
	for i := range transitionRules {
		rule := &transitionRules[i]
		transitionRuleMap[TransitionKey(rule.From, rule.To)] = rule
	}
}

// TransitionKey returns the canonical "from->to" key for an edge. The same
// format keys transition counts in statistics.
func TransitionKey(from, to models.WorkflowState) string {
	return string(from) + "->" + string(to)
}

// RuleFor returns the rule for a transition and whether it exists.
func RuleFor(from, to models.WorkflowState) (*TransitionRule, bool) {
	rule, ok := transitionRuleMap[TransitionKey(from, to)]
	return rule, ok
}

// RulesFrom returns all rules leaving the given state.
func RulesFrom(from models.WorkflowState) []TransitionRule {
	var rules []TransitionRule
	for _, rule := range transitionRules {
		if rule.From == from {
			rules = append(rules, rule)
		}
	}
	return rules
}

// AllRules returns a copy of the full rule table.
func AllRules() []TransitionRule {
	result := make([]TransitionRule, len(transitionRules))
	copy(result, transitionRules)
	return result
}
