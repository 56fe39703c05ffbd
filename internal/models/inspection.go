package models

import (
	"fmt"
	"time"
)

// Inspection is the subject of the workflow. The engine owns WorkflowState,
// PreviousState, Version, StateChangedAt and StateChangedBy; the remaining
// fields are written only through declared transition actions.
type Inspection struct {
	ID         int64 `json:"id"`
	ShopID     int64 `json:"shop_id"`
	CustomerID int64 `json:"customer_id"`
	VehicleID  int64 `json:"vehicle_id"`

	// Workflow bookkeeping
	WorkflowState  WorkflowState `json:"workflow_state"`
	PreviousState  WorkflowState `json:"previous_state,omitempty"`
	Version        int64         `json:"version"`
	StateChangedAt time.Time     `json:"state_changed_at"`
	StateChangedBy string        `json:"state_changed_by,omitempty"`

	// Assignment
	TechnicianID string `json:"technician_id,omitempty"`

	// Timer fields written by transition actions
	StartedAt         *time.Time `json:"started_at,omitempty"`
	InspectionSeconds *int64     `json:"inspection_seconds,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`

	// Review outcome
	RejectionReason string `json:"rejection_reason,omitempty"`

	// Customer delivery
	ReportSummary     string `json:"report_summary,omitempty"` // JSON string
	CustomerLinkToken string `json:"customer_link_token,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates the inspection fields.
func (i *Inspection) Validate() error {
	if i.ShopID <= 0 {
		return fmt.Errorf("shop_id is required")
	}
	if i.CustomerID <= 0 {
		return fmt.Errorf("customer_id is required")
	}
	if i.VehicleID <= 0 {
		return fmt.Errorf("vehicle_id is required")
	}
	if !i.WorkflowState.IsValid() {
		return fmt.Errorf("invalid workflow state: %s", i.WorkflowState)
	}
	if i.PreviousState != "" && !i.PreviousState.IsValid() {
		return fmt.Errorf("invalid previous state: %s", i.PreviousState)
	}
	if i.Version < 0 {
		return fmt.Errorf("version cannot be negative")
	}
	return nil
}

// IsTerminal returns true if the inspection has reached its terminal state.
func (i *Inspection) IsTerminal() bool {
	return i.WorkflowState.IsTerminal()
}

// CanModifyItems returns true if items can still be added or rescored.
func (i *Inspection) CanModifyItems() bool {
	return i.WorkflowState.CanModifyItems()
}

// Actor is the resolved caller identity attached to every engine entry
// point. It is produced by upstream auth and trusted as-is.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	ShopID int64  `json:"shop_id"`
}

// Validate validates the actor triple.
func (a Actor) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", a.Role)
	}
	if a.ShopID <= 0 {
		return fmt.Errorf("shop_id is required")
	}
	return nil
}
