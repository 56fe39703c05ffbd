package models

import (
	"fmt"
	"time"
)

// Notification is an outbox row: queued transition side effects (SMS,
// manager/technician alerts) committed atomically with the transition and
// delivered later by the drainer. Delivery failure never fails a
// transition.
type Notification struct {
	ID           int64              `json:"id"`
	ShopID       int64              `json:"shop_id"`
	InspectionID int64              `json:"inspection_id"`
	Kind         NotificationKind   `json:"kind"`
	Recipient    string             `json:"recipient"`
	Body         string             `json:"body"`
	Status       NotificationStatus `json:"status"`
	Attempts     int                `json:"attempts"`
	LastError    string             `json:"last_error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
}

// Validate validates the notification fields.
func (n *Notification) Validate() error {
	if n.ShopID <= 0 {
		return fmt.Errorf("shop_id is required")
	}
	if n.InspectionID <= 0 {
		return fmt.Errorf("inspection_id is required")
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("invalid kind: %s", n.Kind)
	}
	if n.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if n.Body == "" {
		return fmt.Errorf("body cannot be empty")
	}
	return nil
}
