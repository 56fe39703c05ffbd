package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
)

func TestSQLiteSink_RecordAndList(t *testing.T) {
	database := db.NewTestDB(t)
	defer database.Close()

	sink := NewSQLiteSink(database.DB, zap.NewNop())
	ctx := context.Background()

	entries := []Entry{
		{ShopID: 1, InspectionID: 10, Actor: "tech-1", Role: models.RoleTechnician, Action: "transition", Detail: "draft -> in_progress"},
		{ShopID: 1, Actor: "mgr-1", Role: models.RoleManager, Action: "transition_denied", Detail: "unauthorized"},
		{ShopID: 2, Actor: "tech-2", Role: models.RoleTechnician, Action: "transition"},
	}
	for _, e := range entries {
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := sink.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for shop 1, got %d", len(got))
	}
	if got[0].Action != "transition_denied" {
		t.Errorf("expected most recent entry first, got %q", got[0].Action)
	}
	if got[1].InspectionID != 10 {
		t.Errorf("expected inspection id 10, got %d", got[1].InspectionID)
	}
	if got[1].Role != models.RoleTechnician {
		t.Errorf("expected technician role, got %q", got[1].Role)
	}

	limited, err := sink.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 entry with limit, got %d", len(limited))
	}
}
