package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/audit"
	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/models"
)

type testEnv struct {
	db            *db.DB
	shops         *db.ShopRepo
	customers     *db.CustomerRepo
	vehicles      *db.VehicleRepo
	inspections   *db.InspectionRepo
	items         *db.ItemRepo
	history       *db.HistoryRepo
	notifications *db.NotificationRepo
	sink          *audit.SQLiteSink
	executor      *Executor
	reader        *Reader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	logger := zap.NewNop()
	sink := audit.NewSQLiteSink(database.DB, logger)

	return &testEnv{
		db:            database,
		shops:         db.NewShopRepo(database.DB),
		customers:     db.NewCustomerRepo(database.DB),
		vehicles:      db.NewVehicleRepo(database.DB),
		inspections:   db.NewInspectionRepo(database.DB),
		items:         db.NewItemRepo(database.DB),
		history:       db.NewHistoryRepo(database.DB),
		notifications: db.NewNotificationRepo(database.DB),
		sink:          sink,
		executor:      NewExecutor(database, sink, logger),
		reader:        NewReader(database, config.DefaultConfig().Metrics, logger),
	}
}

func (e *testEnv) createShop(t *testing.T) *models.Shop {
	t.Helper()
	shop := &models.Shop{Name: "Test Shop"}
	require.NoError(t, e.shops.Create(context.Background(), shop))
	return shop
}

func (e *testEnv) createCustomer(t *testing.T, shopID int64, phone string) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		ShopID:    shopID,
		FirstName: "Pat",
		LastName:  "Doe",
		Phone:     phone,
	}
	require.NoError(t, e.customers.Create(context.Background(), customer))
	return customer
}

func (e *testEnv) createVehicle(t *testing.T, shopID, customerID int64) *models.Vehicle {
	t.Helper()
	vehicle := &models.Vehicle{
		ShopID:     shopID,
		CustomerID: customerID,
		Make:       "Honda",
		Model:      "Civic",
		Year:       2019,
	}
	require.NoError(t, e.vehicles.Create(context.Background(), vehicle))
	return vehicle
}

// createInspection seeds a draft inspection with a customer that has a
// phone number on file.
func (e *testEnv) createInspection(t *testing.T, shopID int64) *models.Inspection {
	t.Helper()
	return e.createInspectionWithPhone(t, shopID, "+15555550100")
}

func (e *testEnv) createInspectionWithPhone(t *testing.T, shopID int64, phone string) *models.Inspection {
	t.Helper()
	customer := e.createCustomer(t, shopID, phone)
	vehicle := e.createVehicle(t, shopID, customer.ID)
	insp := &models.Inspection{
		ShopID:     shopID,
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
	}
	require.NoError(t, e.inspections.Create(context.Background(), insp))
	return insp
}

// setState moves an inspection into a state directly, skipping the
// executor, so tests can start from any point in the workflow.
func (e *testEnv) setState(t *testing.T, inspectionID int64, state models.WorkflowState) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(),
		`UPDATE inspections SET workflow_state = ? WHERE id = ?`,
		string(state), inspectionID)
	require.NoError(t, err)
}

func (e *testEnv) addItem(t *testing.T, inspectionID int64, name string, condition models.ItemCondition) *models.InspectionItem {
	t.Helper()
	item := &models.InspectionItem{
		InspectionID: inspectionID,
		Name:         name,
		Condition:    condition,
	}
	require.NoError(t, e.items.Create(context.Background(), item))
	return item
}

func (e *testEnv) getInspection(t *testing.T, id, shopID int64) *models.Inspection {
	t.Helper()
	insp, err := e.inspections.GetByID(context.Background(), e.db, id, shopID)
	require.NoError(t, err)
	require.NotNil(t, insp)
	return insp
}

func (e *testEnv) historyFor(t *testing.T, inspectionID, shopID int64) []*models.StateHistoryEntry {
	t.Helper()
	entries, err := e.history.ListByInspection(context.Background(), inspectionID, shopID, 0)
	require.NoError(t, err)
	return entries
}

func techActor(shopID int64) models.Actor {
	return models.Actor{UserID: "tech-1", Role: models.RoleTechnician, ShopID: shopID}
}

func managerActor(shopID int64) models.Actor {
	return models.Actor{UserID: "mgr-1", Role: models.RoleManager, ShopID: shopID}
}

func adminActor(shopID int64) models.Actor {
	return models.Actor{UserID: "admin-1", Role: models.RoleAdmin, ShopID: shopID}
}

// seedHistoryAt inserts a history row with an explicit timestamp for
// statistics tests.
func (e *testEnv) seedHistoryAt(t *testing.T, inspectionID, shopID int64, from, to models.WorkflowState, at time.Time) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(), `
		INSERT INTO state_history (inspection_id, shop_id, from_state, to_state, changed_by, validation_passed, changed_at)
		VALUES (?, ?, ?, ?, 'seed', 1, ?)`,
		inspectionID, shopID, string(from), string(to), db.FormatTime(at))
	require.NoError(t, err)
}

// setCreatedAt backdates an inspection's creation for dwell and completion
// math in statistics tests.
func (e *testEnv) setCreatedAt(t *testing.T, inspectionID int64, at time.Time) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(),
		`UPDATE inspections SET created_at = ? WHERE id = ?`,
		db.FormatTime(at), inspectionID)
	require.NoError(t, err)
}
