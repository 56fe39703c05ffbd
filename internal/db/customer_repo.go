package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// CustomerRepo provides database operations for customers.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// Create creates a new customer.
func (r *CustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid customer: %w", err)
	}

	query := `
		INSERT INTO customers (shop_id, first_name, last_name, phone, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	nowStr := FormatTime(now)

	result, err := r.db.ExecContext(ctx, query,
		c.ShopID, c.FirstName, c.LastName, nullString(c.Phone), nullString(c.Email), nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get customer id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetByID retrieves a customer by ID, scoped to a shop. It returns
// (nil, nil) when no such customer exists in the shop. The Querier lets
// condition checks read the customer inside a transaction.
func (r *CustomerRepo) GetByID(ctx context.Context, q Querier, id, shopID int64) (*models.Customer, error) {
	query := `
		SELECT id, shop_id, first_name, last_name, phone, email, created_at, updated_at
		FROM customers
		WHERE id = ? AND shop_id = ?
	`
	var c models.Customer
	var phone, email sql.NullString

	err := q.QueryRowContext(ctx, query, id, shopID).Scan(
		&c.ID, &c.ShopID, &c.FirstName, &c.LastName, &phone, &email,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	c.Phone = phone.String
	c.Email = email.String
	return &c, nil
}
