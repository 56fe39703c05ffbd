package models

import (
	"fmt"
	"time"
)

// InspectionItem is a single checklist entry on an inspection (brakes,
// tires, fluids, ...). Items start not_inspected and are scored by the
// technician; critical items can later be marked resolved.
type InspectionItem struct {
	ID           int64         `json:"id"`
	InspectionID int64         `json:"inspection_id"`
	Name         string        `json:"name"`
	Condition    ItemCondition `json:"condition"`
	Notes        string        `json:"notes,omitempty"`
	Position     int           `json:"position"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Validate validates the item fields.
func (it *InspectionItem) Validate() error {
	if it.InspectionID <= 0 {
		return fmt.Errorf("inspection_id is required")
	}
	if it.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if it.Condition != "" && !it.Condition.IsValid() {
		return fmt.Errorf("invalid condition: %s", it.Condition)
	}
	return nil
}

// IsScored returns true once the item has been rated.
func (it *InspectionItem) IsScored() bool {
	return it.Condition.IsScored()
}

// IsBlockingCritical returns true if the item is critical and has not been
// marked resolved. Blocking items stop manager approval.
func (it *InspectionItem) IsBlockingCritical() bool {
	return it.Condition.IsCritical() && it.ResolvedAt == nil
}
