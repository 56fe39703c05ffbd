// Package models defines the domain models for ratchet.
package models

import (
	"fmt"
	"strings"
)

// WorkflowState represents the lifecycle stage of an inspection.
// - draft: created, items may be added, work not started
// - in_progress: technician actively inspecting
// - pending_review: submitted, awaiting manager review
// - approved: manager signed off
// - rejected: manager sent back with a reason
// - sent_to_customer: report delivered to the customer
// - completed: closed out (terminal except the admin override)
type WorkflowState string

const (
	StateDraft          WorkflowState = "draft"
	StateInProgress     WorkflowState = "in_progress"
	StatePendingReview  WorkflowState = "pending_review"
	StateApproved       WorkflowState = "approved"
	StateRejected       WorkflowState = "rejected"
	StateSentToCustomer WorkflowState = "sent_to_customer"
	StateCompleted      WorkflowState = "completed"
)

// IsValid returns true if the state is a valid workflow state.
func (s WorkflowState) IsValid() bool {
	switch s {
	case StateDraft, StateInProgress, StatePendingReview, StateApproved,
		StateRejected, StateSentToCustomer, StateCompleted:
		return true
	}
	return false
}

// IsInitial returns true if the state is the entry point of the workflow.
func (s WorkflowState) IsInitial() bool {
	return s == StateDraft
}

// IsTerminal returns true if the state is terminal. The admin-only
// completed -> approved override is the single sanctioned exit.
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted
}

// CanModifyItems returns true if inspection items can still be added or
// rescored in this state.
func (s WorkflowState) CanModifyItems() bool {
	return s == StateDraft || s == StateInProgress
}

// ParseWorkflowState parses a user-supplied state string. It accepts any
// case, surrounding whitespace, and hyphens in place of underscores.
func ParseWorkflowState(s string) (WorkflowState, error) {
	normalized := normalize(s)
	state := WorkflowState(normalized)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid workflow state: %q (valid: draft, in_progress, pending_review, approved, rejected, sent_to_customer, completed)", s)
	}
	return state, nil
}

// Role represents the caller's role, resolved by upstream auth.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
)

// IsValid returns true if the role is one of the closed set.
func (r Role) IsValid() bool {
	switch r {
	case RoleTechnician, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a user-supplied role string. "tech" and "shop_manager"
// are accepted aliases.
func ParseRole(s string) (Role, error) {
	normalized := normalize(s)
	switch normalized {
	case "tech":
		normalized = string(RoleTechnician)
	case "shop_manager":
		normalized = string(RoleManager)
	}
	role := Role(normalized)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %q (valid: technician, manager, admin)", s)
	}
	return role, nil
}

// ItemCondition represents the scored condition of an inspection item.
type ItemCondition string

const (
	ConditionNotInspected   ItemCondition = "not_inspected"
	ConditionGood           ItemCondition = "good"
	ConditionNeedsAttention ItemCondition = "needs_attention"
	ConditionNeedsImmediate ItemCondition = "needs_immediate"
)

// IsValid returns true if the condition is a valid item condition.
func (c ItemCondition) IsValid() bool {
	switch c {
	case ConditionNotInspected, ConditionGood, ConditionNeedsAttention, ConditionNeedsImmediate:
		return true
	}
	return false
}

// IsScored returns true once a technician has rated the item.
func (c ItemCondition) IsScored() bool {
	return c != ConditionNotInspected && c != ""
}

// IsCritical returns true if the condition flags an immediate safety issue.
func (c ItemCondition) IsCritical() bool {
	return c == ConditionNeedsImmediate
}

// ParseItemCondition parses a user-supplied condition string.
func ParseItemCondition(s string) (ItemCondition, error) {
	cond := ItemCondition(normalize(s))
	if !cond.IsValid() {
		return "", fmt.Errorf("invalid condition: %q (valid: not_inspected, good, needs_attention, needs_immediate)", s)
	}
	return cond, nil
}

// normalize lowercases, trims, and folds hyphens to underscores so CLI and
// HTTP input can be forgiving about enum spellings.
func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// NotificationKind represents the delivery channel of a queued notification.
type NotificationKind string

const (
	NotificationKindSMS   NotificationKind = "sms"
	NotificationKindAlert NotificationKind = "alert"
)

// IsValid returns true if the kind is valid.
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationKindSMS, NotificationKindAlert:
		return true
	}
	return false
}

// NotificationStatus represents the outbox delivery state of a notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// IsValid returns true if the status is valid.
func (ns NotificationStatus) IsValid() bool {
	switch ns {
	case NotificationPending, NotificationSent, NotificationFailed:
		return true
	}
	return false
}

// IsTerminal returns true once the notification will not be retried.
func (ns NotificationStatus) IsTerminal() bool {
	return ns != NotificationPending
}
