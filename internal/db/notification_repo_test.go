package db

import (
	"context"
	"testing"
	"time"

	"github.com/spannerworks/ratchet/internal/models"

	_ "modernc.org/sqlite"
)

func TestNotificationRepo_Enqueue(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StatePendingReview)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	n := &models.Notification{
		ShopID:       shopID,
		InspectionID: insp.ID,
		Kind:         models.NotificationKindAlert,
		Recipient:    "managers",
		Body:         "Inspection ready for review",
	}
	if err := repo.Enqueue(ctx, db, n); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if n.ID == 0 {
		t.Error("expected notification ID to be set")
	}
	if n.Status != models.NotificationPending {
		t.Errorf("expected status pending, got %q", n.Status)
	}
}

func TestNotificationRepo_ListPending(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateApproved)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n := &models.Notification{
			ShopID:       shopID,
			InspectionID: insp.ID,
			Kind:         models.NotificationKindSMS,
			Recipient:    "+15555550100",
			Body:         "Your report is ready",
		}
		if err := repo.Enqueue(ctx, db, n); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	pending, err := repo.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	if pending[0].ID > pending[1].ID {
		t.Error("expected enqueue order")
	}

	// Sent rows drop out of the pending list
	if err := repo.MarkSent(ctx, pending[0].ID, time.Now()); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	pending, err = repo.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending after send, got %d", len(pending))
	}

	count, err := repo.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestNotificationRepo_MarkSent(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateApproved)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	n := &models.Notification{
		ShopID:       shopID,
		InspectionID: insp.ID,
		Kind:         models.NotificationKindSMS,
		Recipient:    "+15555550100",
		Body:         "Your report is ready",
	}
	if err := repo.Enqueue(ctx, db, n); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	sentAt := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	if err := repo.MarkSent(ctx, n.ID, sentAt); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}

	got, err := repo.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.NotificationSent {
		t.Errorf("expected status sent, got %q", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", got.Attempts)
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Errorf("expected sent_at %v, got %v", sentAt, got.SentAt)
	}
}

func TestNotificationRepo_MarkFailed(t *testing.T) {
	db := NewTestSqlDB(t)
	defer db.Close()

	shopID := createTestShop(t, db)
	insp := createTestInspection(t, db, shopID, models.StateApproved)
	repo := NewNotificationRepo(db)
	ctx := context.Background()

	n := &models.Notification{
		ShopID:       shopID,
		InspectionID: insp.ID,
		Kind:         models.NotificationKindSMS,
		Recipient:    "+15555550100",
		Body:         "Your report is ready",
	}
	if err := repo.Enqueue(ctx, db, n); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	t.Run("retryable failure stays pending", func(t *testing.T) {
		if err := repo.MarkFailed(ctx, n.ID, "gateway timeout", false); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}

		got, err := repo.GetByID(ctx, n.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != models.NotificationPending {
			t.Errorf("expected status pending, got %q", got.Status)
		}
		if got.Attempts != 1 {
			t.Errorf("expected attempts 1, got %d", got.Attempts)
		}
		if got.LastError != "gateway timeout" {
			t.Errorf("expected last_error, got %q", got.LastError)
		}
	})

	t.Run("final failure moves to failed", func(t *testing.T) {
		if err := repo.MarkFailed(ctx, n.ID, "invalid number", true); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}

		got, err := repo.GetByID(ctx, n.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != models.NotificationFailed {
			t.Errorf("expected status failed, got %q", got.Status)
		}
		if got.Attempts != 2 {
			t.Errorf("expected attempts 2, got %d", got.Attempts)
		}
	})
}
