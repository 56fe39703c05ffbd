package db

import (
	"context"
	"testing"
	"time"

	"github.com/spannerworks/ratchet/internal/models"

	_ "modernc.org/sqlite"
)

func TestItemRepo_Create(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateDraft)
	repo := NewItemRepo(db)
	ctx := context.Background()

	t.Run("assigns sequential positions", func(t *testing.T) {
		brakes := &models.InspectionItem{InspectionID: insp.ID, Name: "Brakes"}
		if err := repo.Create(ctx, brakes); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		tires := &models.InspectionItem{InspectionID: insp.ID, Name: "Tires"}
		if err := repo.Create(ctx, tires); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if brakes.Position != 1 {
			t.Errorf("expected position 1, got %d", brakes.Position)
		}
		if tires.Position != 2 {
			t.Errorf("expected position 2, got %d", tires.Position)
		}
		if brakes.Condition != models.ConditionNotInspected {
			t.Errorf("expected default condition not_inspected, got %q", brakes.Condition)
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		item := &models.InspectionItem{InspectionID: insp.ID}
		if err := repo.Create(ctx, item); err == nil {
			t.Error("expected error for empty name")
		}
	})
}

func TestItemRepo_ListByInspection(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateDraft)
	other := createTestInspection(t, db, shopID, models.StateDraft)
	repo := NewItemRepo(db)
	ctx := context.Background()

	for _, name := range []string{"Brakes", "Tires", "Fluids"} {
		if err := repo.Create(ctx, &models.InspectionItem{InspectionID: insp.ID, Name: name}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := repo.Create(ctx, &models.InspectionItem{InspectionID: other.ID, Name: "Wipers"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	items, err := repo.ListByInspection(ctx, db, insp.ID)
	if err != nil {
		t.Fatalf("ListByInspection failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Name != "Brakes" || items[1].Name != "Tires" || items[2].Name != "Fluids" {
		t.Errorf("expected position order, got %q, %q, %q", items[0].Name, items[1].Name, items[2].Name)
	}
}

func TestItemRepo_SetCondition(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateInProgress)
	repo := NewItemRepo(db)
	ctx := context.Background()

	item := &models.InspectionItem{InspectionID: insp.ID, Name: "Brakes"}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("scores existing item", func(t *testing.T) {
		ok, err := repo.SetCondition(ctx, item.ID, insp.ID, models.ConditionNeedsImmediate, "pads worn to metal")
		if err != nil {
			t.Fatalf("SetCondition failed: %v", err)
		}
		if !ok {
			t.Fatal("expected item to be updated")
		}

		got, err := repo.GetByID(ctx, item.ID, insp.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Condition != models.ConditionNeedsImmediate {
			t.Errorf("expected needs_immediate, got %q", got.Condition)
		}
		if got.Notes != "pads worn to metal" {
			t.Errorf("expected notes, got %q", got.Notes)
		}
	})

	t.Run("misses item on another inspection", func(t *testing.T) {
		other := createTestInspection(t, db, shopID, models.StateInProgress)
		ok, err := repo.SetCondition(ctx, item.ID, other.ID, models.ConditionGood, "")
		if err != nil {
			t.Fatalf("SetCondition failed: %v", err)
		}
		if ok {
			t.Error("expected no update for item on another inspection")
		}
	})
}

func TestItemRepo_MarkResolved(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateInProgress)
	repo := NewItemRepo(db)
	ctx := context.Background()

	item := &models.InspectionItem{
		InspectionID: insp.ID,
		Name:         "Brakes",
		Condition:    models.ConditionNeedsImmediate,
	}
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, item.ID, insp.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.IsBlockingCritical() {
		t.Fatal("expected unresolved critical item to block")
	}

	resolved := time.Date(2025, 3, 11, 14, 30, 0, 0, time.UTC)
	ok, err := repo.MarkResolved(ctx, item.ID, insp.ID, resolved)
	if err != nil {
		t.Fatalf("MarkResolved failed: %v", err)
	}
	if !ok {
		t.Fatal("expected item to be updated")
	}

	got, err = repo.GetByID(ctx, item.ID, insp.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolved) {
		t.Errorf("expected resolved_at %v, got %v", resolved, got.ResolvedAt)
	}
	if got.IsBlockingCritical() {
		t.Error("expected resolved critical item to stop blocking")
	}
}
