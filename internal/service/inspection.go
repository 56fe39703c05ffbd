// Package service provides business logic services for ratchet.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/audit"
	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/workflow"
)

// InspectionService is the facade the CLI and HTTP server talk to. It owns
// row creation and item scoring directly and delegates every state change
// to the workflow executor.
type InspectionService struct {
	db          *db.DB
	shops       *db.ShopRepo
	customers   *db.CustomerRepo
	vehicles    *db.VehicleRepo
	inspections *db.InspectionRepo
	items       *db.ItemRepo
	executor    *workflow.Executor
	reader      *workflow.Reader
	sink        audit.Sink
	logger      *zap.Logger
}

// NewInspectionService creates a service with all repositories and the
// workflow engine wired to the given database.
func NewInspectionService(database *db.DB, cfg *config.Config, logger *zap.Logger) *InspectionService {
	sink := audit.NewSQLiteSink(database.DB, logger)
	return &InspectionService{
		db:          database,
		shops:       db.NewShopRepo(database.DB),
		customers:   db.NewCustomerRepo(database.DB),
		vehicles:    db.NewVehicleRepo(database.DB),
		inspections: db.NewInspectionRepo(database.DB),
		items:       db.NewItemRepo(database.DB),
		executor:    workflow.NewExecutor(database, sink, logger),
		reader:      workflow.NewReader(database, cfg.Metrics, logger),
		sink:        sink,
		logger:      logger,
	}
}

// CustomerInput holds the fields for creating a customer.
type CustomerInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// VehicleInput holds the fields for creating a vehicle.
type VehicleInput struct {
	CustomerID int64  `json:"customer_id"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	Plate      string `json:"plate"`
}

// CreateInspectionInput holds the fields for opening a new inspection.
type CreateInspectionInput struct {
	CustomerID   int64  `json:"customer_id"`
	VehicleID    int64  `json:"vehicle_id"`
	TechnicianID string `json:"technician_id"`
}

// ItemInput holds the fields for adding a checklist item.
type ItemInput struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// InspectionDetail bundles an inspection with its items and the customer
// and vehicle rows it references.
type InspectionDetail struct {
	Inspection *models.Inspection       `json:"inspection"`
	Items      []*models.InspectionItem `json:"items"`
	Customer   *models.Customer         `json:"customer,omitempty"`
	Vehicle    *models.Vehicle          `json:"vehicle,omitempty"`
}

// ListFilter narrows inspection listings.
type ListFilter struct {
	State        string `json:"state,omitempty"`
	TechnicianID string `json:"technician_id,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// CreateShop creates a shop. Shops are tenancy roots; everything else the
// service touches is scoped to one.
func (s *InspectionService) CreateShop(ctx context.Context, name string) (*models.Shop, error) {
	shop := &models.Shop{Name: name}
	if err := shop.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid shop: %v", err)
	}
	if err := s.shops.Create(ctx, shop); err != nil {
		return nil, errors.WrapInternal(err, "failed to create shop")
	}
	s.logger.Info("shop created", zap.Int64("shop_id", shop.ID), zap.String("name", shop.Name))
	return shop, nil
}

// CreateCustomer creates a customer in the actor's shop.
func (s *InspectionService) CreateCustomer(ctx context.Context, actor models.Actor, in CustomerInput) (*models.Customer, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	customer := &models.Customer{
		ShopID:    actor.ShopID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Email:     in.Email,
	}
	if err := customer.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid customer: %v", err)
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, errors.WrapInternal(err, "failed to create customer")
	}
	return customer, nil
}

// CreateVehicle creates a vehicle for an existing customer in the actor's
// shop.
func (s *InspectionService) CreateVehicle(ctx context.Context, actor models.Actor, in VehicleInput) (*models.Vehicle, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	customer, err := s.customers.GetByID(ctx, s.db, in.CustomerID, actor.ShopID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load customer")
	}
	if customer == nil {
		return nil, errors.NotFound("customer %d not found", in.CustomerID)
	}
	vehicle := &models.Vehicle{
		ShopID:     actor.ShopID,
		CustomerID: customer.ID,
		Make:       in.Make,
		Model:      in.Model,
		Year:       in.Year,
		Plate:      in.Plate,
	}
	if err := vehicle.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid vehicle: %v", err)
	}
	if err := s.vehicles.Create(ctx, vehicle); err != nil {
		return nil, errors.WrapInternal(err, "failed to create vehicle")
	}
	return vehicle, nil
}

// CreateInspection opens a new inspection in draft for a customer's
// vehicle. The customer and vehicle must already exist in the actor's shop.
func (s *InspectionService) CreateInspection(ctx context.Context, actor models.Actor, in CreateInspectionInput) (*models.Inspection, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	customer, err := s.customers.GetByID(ctx, s.db, in.CustomerID, actor.ShopID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load customer")
	}
	if customer == nil {
		return nil, errors.NotFound("customer %d not found", in.CustomerID)
	}
	vehicle, err := s.vehicles.GetByID(ctx, s.db, in.VehicleID, actor.ShopID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load vehicle")
	}
	if vehicle == nil {
		return nil, errors.NotFound("vehicle %d not found", in.VehicleID)
	}
	if vehicle.CustomerID != customer.ID {
		return nil, errors.InvalidArgs("vehicle %d does not belong to customer %d", vehicle.ID, customer.ID)
	}

	insp := &models.Inspection{
		ShopID:         actor.ShopID,
		CustomerID:     customer.ID,
		VehicleID:      vehicle.ID,
		TechnicianID:   in.TechnicianID,
		StateChangedBy: actor.UserID,
	}
	if err := s.inspections.Create(ctx, insp); err != nil {
		return nil, errors.WrapInternal(err, "failed to create inspection")
	}

	s.audit(ctx, actor, insp.ID, "create_inspection",
		fmt.Sprintf("%s for %s", vehicle.Label(), customer.FullName()))
	s.logger.Info("inspection created",
		zap.Int64("inspection_id", insp.ID),
		zap.Int64("shop_id", insp.ShopID),
		zap.String("vehicle", vehicle.Label()),
	)
	return insp, nil
}

// AddItem adds a checklist item to an inspection that is still open to item
// changes.
func (s *InspectionService) AddItem(ctx context.Context, actor models.Actor, inspectionID int64, in ItemInput) (*models.InspectionItem, error) {
	insp, err := s.loadInspection(ctx, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	if !insp.CanModifyItems() {
		return nil, errors.InvalidTransition("items can no longer be added in state %s", insp.WorkflowState)
	}
	item := &models.InspectionItem{
		InspectionID: insp.ID,
		Name:         in.Name,
		Notes:        in.Notes,
	}
	if err := item.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid item: %v", err)
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, errors.WrapInternal(err, "failed to create item")
	}
	s.audit(ctx, actor, insp.ID, "add_item", item.Name)
	return item, nil
}

// ScoreItem records the technician's verdict for one item. Scoring is only
// allowed while the inspection is open to item changes.
func (s *InspectionService) ScoreItem(ctx context.Context, actor models.Actor, inspectionID, itemID int64, condition models.ItemCondition, notes string) (*models.InspectionItem, error) {
	if !condition.IsValid() {
		return nil, errors.InvalidArgs("invalid condition: %s", condition)
	}
	insp, err := s.loadInspection(ctx, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	if !insp.CanModifyItems() {
		return nil, errors.InvalidTransition("items can no longer be modified in state %s", insp.WorkflowState)
	}
	updated, err := s.items.SetCondition(ctx, itemID, insp.ID, condition, notes)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to score item")
	}
	if !updated {
		return nil, errors.NotFound("item %d not found on inspection %d", itemID, insp.ID)
	}
	item, err := s.items.GetByID(ctx, itemID, insp.ID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load item")
	}
	s.audit(ctx, actor, insp.ID, "score_item",
		fmt.Sprintf("%s: %s", item.Name, condition))
	return item, nil
}

// ResolveItem marks a critical item as resolved so it no longer blocks
// approval. Resolution is recorded at any point before the inspection is
// completed.
func (s *InspectionService) ResolveItem(ctx context.Context, actor models.Actor, inspectionID, itemID int64) (*models.InspectionItem, error) {
	insp, err := s.loadInspection(ctx, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	if insp.IsTerminal() {
		return nil, errors.InvalidTransition("items cannot be resolved in state %s", insp.WorkflowState)
	}
	updated, err := s.items.MarkResolved(ctx, itemID, insp.ID, time.Now().UTC())
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to resolve item")
	}
	if !updated {
		return nil, errors.NotFound("item %d not found on inspection %d", itemID, insp.ID)
	}
	item, err := s.items.GetByID(ctx, itemID, insp.ID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load item")
	}
	s.audit(ctx, actor, insp.ID, "resolve_item", item.Name)
	return item, nil
}

// AssignTechnician sets the technician responsible for an inspection. The
// notify_technician action targets this id when a review is rejected.
func (s *InspectionService) AssignTechnician(ctx context.Context, actor models.Actor, inspectionID int64, technicianID string) error {
	if technicianID == "" {
		return errors.InvalidArgs("technician id is required")
	}
	insp, err := s.loadInspection(ctx, actor, inspectionID)
	if err != nil {
		return err
	}
	if insp.IsTerminal() {
		return errors.InvalidTransition("inspection %d is already completed", insp.ID)
	}
	if err := s.inspections.SetTechnician(ctx, s.db, insp.ID, technicianID); err != nil {
		return errors.WrapInternal(err, "failed to assign technician")
	}
	s.audit(ctx, actor, insp.ID, "assign_technician", technicianID)
	return nil
}

// Get returns an inspection with its items, customer and vehicle.
func (s *InspectionService) Get(ctx context.Context, actor models.Actor, inspectionID int64) (*InspectionDetail, error) {
	insp, err := s.loadInspection(ctx, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByInspection(ctx, s.db, insp.ID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load items")
	}
	detail := &InspectionDetail{Inspection: insp, Items: items}

	// Customer and vehicle are display context; a missing row degrades the
	// detail rather than failing the read.
	if customer, err := s.customers.GetByID(ctx, s.db, insp.CustomerID, insp.ShopID); err == nil {
		detail.Customer = customer
	}
	if vehicle, err := s.vehicles.GetByID(ctx, s.db, insp.VehicleID, insp.ShopID); err == nil {
		detail.Vehicle = vehicle
	}
	return detail, nil
}

// List returns inspections in the actor's shop, most recent first.
func (s *InspectionService) List(ctx context.Context, actor models.Actor, filter ListFilter) ([]*models.Inspection, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	f := db.InspectionFilter{
		ShopID:       actor.ShopID,
		TechnicianID: filter.TechnicianID,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if filter.State != "" {
		state := models.WorkflowState(filter.State)
		if !state.IsValid() {
			return nil, errors.InvalidArgs("invalid state: %s", filter.State)
		}
		f.State = &state
	}
	list, err := s.inspections.List(ctx, f)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to list inspections")
	}
	return list, nil
}

// Transition runs one workflow transition through the executor.
func (s *InspectionService) Transition(ctx context.Context, req workflow.TransitionRequest) (*workflow.TransitionResult, error) {
	return s.executor.Execute(ctx, req)
}

// Force runs an admin override through the executor.
func (s *InspectionService) Force(ctx context.Context, req workflow.ForceRequest) (*workflow.TransitionResult, error) {
	return s.executor.Force(ctx, req)
}

// History returns the state history of an inspection, most recent first.
func (s *InspectionService) History(ctx context.Context, actor models.Actor, inspectionID int64, limit int) ([]*models.StateHistoryEntry, error) {
	return s.reader.History(ctx, inspectionID, actor, limit)
}

// Statistics returns workflow statistics for the actor's shop.
func (s *InspectionService) Statistics(ctx context.Context, actor models.Actor, windowDays int) (*workflow.Statistics, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	return s.reader.Statistics(ctx, actor.ShopID, windowDays)
}

// loadInspection fetches an inspection scoped to the actor's shop.
func (s *InspectionService) loadInspection(ctx context.Context, actor models.Actor, inspectionID int64) (*models.Inspection, error) {
	if err := actor.Validate(); err != nil {
		return nil, errors.InvalidArgs("invalid actor: %v", err)
	}
	if inspectionID <= 0 {
		return nil, errors.InvalidArgs("inspection id is required")
	}
	insp, err := s.inspections.GetByID(ctx, s.db, inspectionID, actor.ShopID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load inspection")
	}
	if insp == nil {
		return nil, errors.NotFound("inspection %d not found", inspectionID)
	}
	return insp, nil
}

func (s *InspectionService) audit(ctx context.Context, actor models.Actor, inspectionID int64, action, detail string) {
	err := s.sink.Record(ctx, audit.Entry{
		ShopID:       actor.ShopID,
		InspectionID: inspectionID,
		Actor:        actor.UserID,
		Role:         actor.Role,
		Action:       action,
		Detail:       detail,
	})
	if err != nil {
		s.logger.Error("audit record failed",
			zap.String("action", action),
			zap.Int64("inspection_id", inspectionID),
			zap.Error(err),
		)
	}
}
