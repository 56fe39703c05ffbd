package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func countShops(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM shops").Scan(&n); err != nil {
		t.Fatalf("failed to count shops: %v", err)
	}
	return n
}

func TestWithTx_Commit(t *testing.T) {
	database := NewTestDB(t)
	defer database.Close()

	err := database.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO shops (name, created_at) VALUES ('A', datetime('now'))")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	if n := countShops(t, database); n != 1 {
		t.Errorf("expected 1 shop after commit, got %d", n)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	database := NewTestDB(t)
	defer database.Close()

	sentinel := errors.New("boom")
	err := database.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO shops (name, created_at) VALUES ('A', datetime('now'))"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error back, got %v", err)
	}

	if n := countShops(t, database); n != 0 {
		t.Errorf("expected 0 shops after rollback, got %d", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	database := NewTestDB(t)
	defer database.Close()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		database.WithTx(context.Background(), func(tx *sql.Tx) error {
			tx.Exec("INSERT INTO shops (name, created_at) VALUES ('A', datetime('now'))")
			panic("boom")
		})
	}()

	if n := countShops(t, database); n != 0 {
		t.Errorf("expected 0 shops after panic rollback, got %d", n)
	}
}
