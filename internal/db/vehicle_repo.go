package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spannerworks/ratchet/internal/models"
)

// VehicleRepo provides database operations for vehicles.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo creates a new VehicleRepo.
func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// Create creates a new vehicle.
func (r *VehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid vehicle: %w", err)
	}

	query := `
		INSERT INTO vehicles (shop_id, customer_id, make, model, year, plate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	nowStr := FormatTime(now)

	var year interface{}
	if v.Year > 0 {
		year = v.Year
	}

	result, err := r.db.ExecContext(ctx, query,
		v.ShopID, v.CustomerID, v.Make, v.Model, year, nullString(v.Plate), nowStr, nowStr,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get vehicle id: %w", err)
	}

	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// GetByID retrieves a vehicle by ID, scoped to a shop. It returns
// (nil, nil) when no such vehicle exists in the shop.
func (r *VehicleRepo) GetByID(ctx context.Context, q Querier, id, shopID int64) (*models.Vehicle, error) {
	query := `
		SELECT id, shop_id, customer_id, make, model, year, plate, created_at, updated_at
		FROM vehicles
		WHERE id = ? AND shop_id = ?
	`
	var v models.Vehicle
	var year sql.NullInt64
	var plate sql.NullString

	err := q.QueryRowContext(ctx, query, id, shopID).Scan(
		&v.ID, &v.ShopID, &v.CustomerID, &v.Make, &v.Model, &year, &plate,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicle: %w", err)
	}

	v.Year = int(year.Int64)
	v.Plate = plate.String
	return &v, nil
}
