package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	rerrors "github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testDB creates an in-memory database for testing.
// IMPORTANT: Always use in-memory databases in tests to avoid any risk
// of accidentally destroying production data.
func testDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	database := db.NewTestDB(t)

	cleanup := func() {
		database.Close()
	}

	return database, cleanup
}

// testService wires an InspectionService over an in-memory database, the
// same way newService does for real commands.
func testService(t *testing.T) (*service.InspectionService, func()) {
	t.Helper()

	database, cleanup := testDB(t)
	svc := service.NewInspectionService(database, config.DefaultConfig(), zap.NewNop())
	return svc, cleanup
}

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"1", 1, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseID(tt.arg, "inspection")
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, ExitInvalidArgs, ExitCode(err))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"ab", 3, "ab"},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got := truncate(tt.s, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFromFlags(t *testing.T) {
	// Flags are package state; restore them after the test.
	origUser, origRole, origShop := actorUser, actorRole, actorShop
	defer func() {
		actorUser, actorRole, actorShop = origUser, origRole, origShop
	}()

	// Keep the environment fallback out of the picture.
	t.Setenv("RATCHET_USER", "")
	t.Setenv("RATCHET_ROLE", "")
	t.Setenv("RATCHET_SHOP", "")

	t.Run("complete triple", func(t *testing.T) {
		actorUser, actorRole, actorShop = "tech-1", "technician", 3
		actor, err := actorFromFlags()
		require.NoError(t, err)
		assert.Equal(t, "tech-1", actor.UserID)
		assert.Equal(t, models.RoleTechnician, actor.Role)
		assert.Equal(t, int64(3), actor.ShopID)
	})

	t.Run("role alias", func(t *testing.T) {
		actorUser, actorRole, actorShop = "mgr-1", "shop_manager", 3
		actor, err := actorFromFlags()
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, actor.Role)
	})

	t.Run("environment fallback", func(t *testing.T) {
		actorUser, actorRole, actorShop = "", "", 0
		t.Setenv("RATCHET_USER", "admin-1")
		t.Setenv("RATCHET_ROLE", "admin")
		t.Setenv("RATCHET_SHOP", "5")
		actor, err := actorFromFlags()
		require.NoError(t, err)
		assert.Equal(t, "admin-1", actor.UserID)
		assert.Equal(t, models.RoleAdmin, actor.Role)
		assert.Equal(t, int64(5), actor.ShopID)
	})

	t.Run("missing user", func(t *testing.T) {
		actorUser, actorRole, actorShop = "", "technician", 3
		_, err := actorFromFlags()
		assert.Error(t, err)
		assert.Equal(t, ExitInvalidArgs, ExitCode(err))
	})

	t.Run("unknown role", func(t *testing.T) {
		actorUser, actorRole, actorShop = "tech-1", "janitor", 3
		_, err := actorFromFlags()
		assert.Error(t, err)
	})

	t.Run("missing shop", func(t *testing.T) {
		actorUser, actorRole, actorShop = "tech-1", "technician", 0
		_, err := actorFromFlags()
		assert.Error(t, err)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid args", rerrors.InvalidArgs("bad"), ExitInvalidArgs},
		{"not found", rerrors.NotFound("missing"), ExitNotFound},
		{"invalid transition", rerrors.InvalidTransition("no rule"), ExitInvalidTransition},
		{"unauthorized", rerrors.Unauthorized("nope"), ExitUnauthorized},
		{"condition failed", rerrors.ConditionFailed([]string{"x"}), ExitConditionFailed},
		{"validation failed", rerrors.ValidationFailed([]string{"x"}), ExitValidationFailed},
		{"state conflict", rerrors.StateConflict("stale"), ExitStateConflict},
		{"internal", rerrors.Internal("boom"), ExitInternalError},
		{"plain error", errors.New("plain"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestFormatErrorMessage(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		msg := FormatErrorMessage(errors.New("boom"))
		assert.Equal(t, "Error: boom", msg)
	})

	t.Run("reasons listed one per line", func(t *testing.T) {
		err := rerrors.ConditionFailed([]string{
			"inspection has no items",
			"2 item(s) not yet scored",
		})
		msg := FormatErrorMessage(err)
		assert.Contains(t, msg, "Error: transition conditions not met")
		assert.Contains(t, msg, "\n  - inspection has no items")
		assert.Contains(t, msg, "\n  - 2 item(s) not yet scored")
	})

	t.Run("suggestion appended", func(t *testing.T) {
		err := withSuggestion(rerrors.NotFound("inspection 9 not found"), SuggestRunInit)
		msg := FormatErrorMessage(err)
		assert.Contains(t, msg, "Error: inspection 9 not found")
		assert.Contains(t, msg, "\n\nSuggestion: "+SuggestRunInit)
	})

	t.Run("suggestion skips plain errors", func(t *testing.T) {
		err := withSuggestion(errors.New("plain"), SuggestRunInit)
		assert.Equal(t, "Error: plain", FormatErrorMessage(err))
	})
}

func TestVersionInfo(t *testing.T) {
	// Test that version info is set
	assert.NotEmpty(t, Version)
}

func TestInspectionCreateViaService(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	ctx := context.Background()

	shop, err := svc.CreateShop(ctx, "Main Street Auto")
	require.NoError(t, err)

	actor := models.Actor{UserID: "tech-1", Role: models.RoleTechnician, ShopID: shop.ID}

	customer, err := svc.CreateCustomer(ctx, actor, service.CustomerInput{
		FirstName: "Dana",
		LastName:  "Reyes",
		Phone:     "555-0142",
	})
	require.NoError(t, err)

	vehicle, err := svc.CreateVehicle(ctx, actor, service.VehicleInput{
		CustomerID: customer.ID,
		Make:       "Subaru",
		Model:      "Outback",
		Year:       2019,
		Plate:      "ABC-1234",
	})
	require.NoError(t, err)

	insp, err := svc.CreateInspection(ctx, actor, service.CreateInspectionInput{
		CustomerID:   customer.ID,
		VehicleID:    vehicle.ID,
		TechnicianID: "tech-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateDraft, insp.WorkflowState)
	assert.Equal(t, int64(1), insp.Version)
	assert.Equal(t, shop.ID, insp.ShopID)
	assert.Equal(t, "tech-1", insp.TechnicianID)
}

func TestJSONOutputFormat(t *testing.T) {
	svc, cleanup := testService(t)
	defer cleanup()

	ctx := context.Background()

	shop, err := svc.CreateShop(ctx, "Main Street Auto")
	require.NoError(t, err)

	actor := models.Actor{UserID: "mgr-1", Role: models.RoleManager, ShopID: shop.ID}
	customer, err := svc.CreateCustomer(ctx, actor, service.CustomerInput{
		FirstName: "Dana",
		LastName:  "Reyes",
		Phone:     "555-0142",
	})
	require.NoError(t, err)

	// Marshal to JSON and verify format
	data, err := json.Marshal(customer)
	require.NoError(t, err)

	var parsed map[string]interface{}
	err = json.Unmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, "Dana", parsed["first_name"])
	assert.Equal(t, "555-0142", parsed["phone"])
}
