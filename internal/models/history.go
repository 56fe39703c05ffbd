package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StateHistoryEntry is the append-only record of one transition that
// reached the persistence step, forced transitions included. Entries are
// never updated or deleted by the engine.
type StateHistoryEntry struct {
	ID               int64         `json:"id"`
	InspectionID     int64         `json:"inspection_id"`
	ShopID           int64         `json:"shop_id"`
	FromState        WorkflowState `json:"from_state"`
	ToState          WorkflowState `json:"to_state"`
	ChangedBy        string        `json:"changed_by"`
	Role             Role          `json:"role,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	Metadata         string        `json:"metadata,omitempty"` // JSON string
	ValidationPassed bool          `json:"validation_passed"`
	ChangedAt        time.Time     `json:"changed_at"`
}

// Validate validates the history entry.
func (h *StateHistoryEntry) Validate() error {
	if h.InspectionID <= 0 {
		return fmt.Errorf("inspection_id is required")
	}
	if !h.FromState.IsValid() {
		return fmt.Errorf("invalid from state: %s", h.FromState)
	}
	if !h.ToState.IsValid() {
		return fmt.Errorf("invalid to state: %s", h.ToState)
	}
	if h.ChangedBy == "" {
		return fmt.Errorf("changed_by is required")
	}
	return nil
}

// GetMetadata parses the JSON metadata into a map.
func (h *StateHistoryEntry) GetMetadata() (map[string]interface{}, error) {
	if h.Metadata == "" {
		return nil, nil
	}
	var md map[string]interface{}
	if err := json.Unmarshal([]byte(h.Metadata), &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return md, nil
}

// SetMetadata sets the metadata from a map.
func (h *StateHistoryEntry) SetMetadata(md map[string]interface{}) error {
	if md == nil {
		h.Metadata = ""
		return nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	h.Metadata = string(data)
	return nil
}

// IsForced reports whether this entry was written by the admin force path.
func (h *StateHistoryEntry) IsForced() bool {
	md, err := h.GetMetadata()
	if err != nil || md == nil {
		return false
	}
	forced, ok := md["forced"].(bool)
	return ok && forced
}
