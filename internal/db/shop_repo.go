package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// ShopRepo provides database operations for shops.
type ShopRepo struct {
	db *sql.DB
}

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(db *sql.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

// Create creates a new shop.
func (r *ShopRepo) Create(ctx context.Context, shop *models.Shop) error {
	if err := shop.Validate(); err != nil {
		return fmt.Errorf("invalid shop: %w", err)
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO shops (name, created_at) VALUES (?, ?)",
		shop.Name, FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create shop: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get shop id: %w", err)
	}

	shop.ID = id
	shop.CreatedAt = now
	return nil
}

// GetByID retrieves a shop by ID. It returns (nil, nil) when the shop does
// not exist.
func (r *ShopRepo) GetByID(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM shops WHERE id = ?", id,
	).Scan(&shop.ID, &shop.Name, &shop.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shop: %w", err)
	}
	return &shop, nil
}

// List retrieves all shops.
func (r *ShopRepo) List(ctx context.Context) ([]*models.Shop, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at FROM shops ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	defer rows.Close()

	var shops []*models.Shop
	for rows.Next() {
		var shop models.Shop
		if err := rows.Scan(&shop.ID, &shop.Name, &shop.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, &shop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shops: %w", err)
	}
	return shops, nil
}
