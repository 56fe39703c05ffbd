package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/models"
)

func newTestRunner(env *testEnv) *ActionRunner {
	return NewActionRunner(env.inspections, env.notifications,
		NewDataReader(env.items, env.customers), zap.NewNop())
}

// runActions executes names in one committed transaction, the way the
// executor does.
func runActions(t *testing.T, env *testEnv, runner *ActionRunner, names []ActionName, actx *ActionContext) []string {
	t.Helper()
	var warnings []string
	err := env.db.WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		warnings, err = runner.Run(context.Background(), tx, names, actx)
		return err
	})
	require.NoError(t, err)
	return warnings
}

func TestActionRunner_UnknownActionSkipped(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	insp := env.createInspection(t, shop.ID)
	runner := newTestRunner(env)

	warnings := runActions(t, env, runner, []ActionName{"polish_hubcaps"}, &ActionContext{
		Inspection: insp,
		Now:        time.Now().UTC(),
	})
	assert.Empty(t, warnings)
}

func TestActionRunner_CalcDuration(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	runner := newTestRunner(env)
	ctx := context.Background()

	t.Run("measures seconds since the timer started", func(t *testing.T) {
		insp := env.createInspection(t, shop.ID)
		started := time.Now().UTC().Add(-10 * time.Minute)
		require.NoError(t, env.inspections.SetStartedAt(ctx, env.db, insp.ID, started))
		insp.StartedAt = &started

		warnings := runActions(t, env, runner, []ActionName{ActionCalcDuration}, &ActionContext{
			Inspection: insp,
			Now:        started.Add(90 * time.Second),
		})
		assert.Empty(t, warnings)

		after := env.getInspection(t, insp.ID, shop.ID)
		require.NotNil(t, after.InspectionSeconds)
		assert.Equal(t, int64(90), *after.InspectionSeconds)
	})

	t.Run("warns when the timer never started", func(t *testing.T) {
		insp := env.createInspection(t, shop.ID)
		warnings := runActions(t, env, runner, []ActionName{ActionCalcDuration}, &ActionContext{
			Inspection: insp,
			Now:        time.Now().UTC(),
		})
		assert.Contains(t, warnings, "inspection timer was never started")

		after := env.getInspection(t, insp.ID, shop.ID)
		assert.Nil(t, after.InspectionSeconds)
	})

	t.Run("clamps a backwards clock to zero", func(t *testing.T) {
		insp := env.createInspection(t, shop.ID)
		started := time.Now().UTC()
		require.NoError(t, env.inspections.SetStartedAt(ctx, env.db, insp.ID, started))
		insp.StartedAt = &started

		runActions(t, env, runner, []ActionName{ActionCalcDuration}, &ActionContext{
			Inspection: insp,
			Now:        started.Add(-time.Hour),
		})

		after := env.getInspection(t, insp.ID, shop.ID)
		require.NotNil(t, after.InspectionSeconds)
		assert.Equal(t, int64(0), *after.InspectionSeconds)
	})
}

func TestActionRunner_PrepareCustomerReport(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	insp := env.createInspection(t, shop.ID)
	env.addItem(t, insp.ID, "Brakes", models.ConditionNeedsImmediate)
	env.addItem(t, insp.ID, "Tires", models.ConditionNeedsAttention)
	env.addItem(t, insp.ID, "Wipers", models.ConditionGood)
	runner := newTestRunner(env)

	now := time.Now().UTC().Truncate(time.Second)
	runActions(t, env, runner, []ActionName{ActionPrepareCustomerReport}, &ActionContext{
		Inspection: insp,
		Now:        now,
	})

	after := env.getInspection(t, insp.ID, shop.ID)
	require.NotEmpty(t, after.ReportSummary)

	var summary reportSummary
	require.NoError(t, json.Unmarshal([]byte(after.ReportSummary), &summary))
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 1, summary.Counts["needs_immediate"])
	assert.Equal(t, 1, summary.Counts["needs_attention"])
	assert.Equal(t, 1, summary.Counts["good"])
	assert.True(t, summary.GeneratedAt.Equal(now))
}

func TestActionRunner_LinkTokenIsStable(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	insp := env.createInspection(t, shop.ID)
	runner := newTestRunner(env)
	ctx := context.Background()

	// send_sms generates the token; create_customer_link right after must
	// reuse it.
	runActions(t, env, runner, []ActionName{ActionSendSMS, ActionCreateCustomerLink}, &ActionContext{
		Inspection: insp,
		Now:        time.Now().UTC(),
	})

	after := env.getInspection(t, insp.ID, shop.ID)
	token := after.CustomerLinkToken
	require.NotEmpty(t, token)

	pending, err := env.notifications.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].Body, token)

	// A later run keeps the same token
	runActions(t, env, runner, []ActionName{ActionCreateCustomerLink}, &ActionContext{
		Inspection: after,
		Now:        time.Now().UTC(),
	})
	assert.Equal(t, token, env.getInspection(t, insp.ID, shop.ID).CustomerLinkToken)
}

func TestActionRunner_NotifyTechnician(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	runner := newTestRunner(env)
	ctx := context.Background()

	t.Run("falls back when no technician is assigned", func(t *testing.T) {
		insp := env.createInspection(t, shop.ID)
		runActions(t, env, runner, []ActionName{ActionNotifyTechnician}, &ActionContext{
			Inspection: insp,
			Reason:     "photos are blurry",
			Now:        time.Now().UTC(),
		})

		pending, err := env.notifications.ListPending(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "technician", pending[0].Recipient)
		assert.Contains(t, pending[0].Body, "photos are blurry")
	})

	t.Run("targets the assigned technician", func(t *testing.T) {
		insp := env.createInspection(t, shop.ID)
		require.NoError(t, env.inspections.SetTechnician(ctx, env.db, insp.ID, "tech-9"))
		insp.TechnicianID = "tech-9"

		runActions(t, env, runner, []ActionName{ActionNotifyTechnician}, &ActionContext{
			Inspection: insp,
			Reason:     "redo the undercarriage",
			Now:        time.Now().UTC(),
		})

		pending, err := env.notifications.ListPending(ctx, 0)
		require.NoError(t, err)
		var recipients []string
		for _, n := range pending {
			if n.InspectionID == insp.ID {
				recipients = append(recipients, n.Recipient)
			}
		}
		assert.Equal(t, []string{"tech-9"}, recipients)
	})
}

func TestActionRunner_FailedActionRollsBackQueued(t *testing.T) {
	env := newTestEnv(t)
	shop := env.createShop(t)
	insp := env.createInspectionWithPhone(t, shop.ID, "")
	runner := newTestRunner(env)
	ctx := context.Background()

	// notify_managers enqueues, then send_sms fails on the missing phone;
	// the rollback must take the queued alert with it.
	err := env.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := runner.Run(ctx, tx, []ActionName{ActionNotifyManagers, ActionSendSMS}, &ActionContext{
			Inspection: insp,
			Now:        time.Now().UTC(),
		})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send_sms")

	pending, err := env.notifications.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
