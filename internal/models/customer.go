package models

import (
	"fmt"
	"time"
)

// Shop is the owning tenant for customers, vehicles and inspections.
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate validates the shop fields.
func (s *Shop) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

// Customer holds the contact data the workflow reads when delivering a
// report. Phone may legitimately be empty; the customer_has_phone condition
// gates SMS delivery on it.
type Customer struct {
	ID        int64     `json:"id"`
	ShopID    int64     `json:"shop_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates the customer fields.
func (c *Customer) Validate() error {
	if c.ShopID <= 0 {
		return fmt.Errorf("shop_id is required")
	}
	if c.FirstName == "" && c.LastName == "" {
		return fmt.Errorf("customer name cannot be empty")
	}
	return nil
}

// FullName returns the customer's display name.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// HasPhone returns true if the customer can receive SMS.
func (c *Customer) HasPhone() bool {
	return c.Phone != ""
}

// Vehicle identifies the inspected vehicle.
type Vehicle struct {
	ID         int64     `json:"id"`
	ShopID     int64     `json:"shop_id"`
	CustomerID int64     `json:"customer_id"`
	Make       string    `json:"make"`
	Model      string    `json:"model"`
	Year       int       `json:"year,omitempty"`
	Plate      string    `json:"plate,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate validates the vehicle fields.
func (v *Vehicle) Validate() error {
	if v.ShopID <= 0 {
		return fmt.Errorf("shop_id is required")
	}
	if v.CustomerID <= 0 {
		return fmt.Errorf("customer_id is required")
	}
	if v.Make == "" || v.Model == "" {
		return fmt.Errorf("make and model are required")
	}
	return nil
}

// Label returns a short display label for the vehicle.
func (v *Vehicle) Label() string {
	if v.Year > 0 {
		return fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
	}
	return fmt.Sprintf("%s %s", v.Make, v.Model)
}
