package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spannerworks/ratchet/internal/models"
)

func TestRuleFor(t *testing.T) {
	t.Run("known transitions resolve", func(t *testing.T) {
		rule, ok := RuleFor(models.StateDraft, models.StateInProgress)
		require.True(t, ok)
		assert.Equal(t, models.StateDraft, rule.From)
		assert.Equal(t, models.StateInProgress, rule.To)
		assert.Equal(t, []ActionName{ActionStartTimer}, rule.Actions)
	})

	t.Run("unknown transitions do not", func(t *testing.T) {
		_, ok := RuleFor(models.StateDraft, models.StateApproved)
		assert.False(t, ok)

		_, ok = RuleFor(models.StateApproved, models.StateDraft)
		assert.False(t, ok)
	})

	t.Run("rejected is not terminal", func(t *testing.T) {
		rule, ok := RuleFor(models.StateRejected, models.StateInProgress)
		require.True(t, ok)
		assert.Contains(t, rule.Actions, ActionClearRejectionReason)
	})

	t.Run("completed has only the admin override", func(t *testing.T) {
		rules := RulesFrom(models.StateCompleted)
		require.Len(t, rules, 1)
		assert.Equal(t, models.StateApproved, rules[0].To)
		assert.Equal(t, []models.Role{models.RoleAdmin}, rules[0].Roles)
	})
}

func TestTransitionRule_AllowsRole(t *testing.T) {
	submit, ok := RuleFor(models.StateInProgress, models.StatePendingReview)
	require.True(t, ok)
	assert.True(t, submit.AllowsRole(models.RoleTechnician))
	assert.True(t, submit.AllowsRole(models.RoleManager))
	assert.True(t, submit.AllowsRole(models.RoleAdmin))

	approve, ok := RuleFor(models.StatePendingReview, models.StateApproved)
	require.True(t, ok)
	assert.False(t, approve.AllowsRole(models.RoleTechnician))
	assert.True(t, approve.AllowsRole(models.RoleManager))
	assert.True(t, approve.AllowsRole(models.RoleAdmin))

	reject, ok := RuleFor(models.StatePendingReview, models.StateRejected)
	require.True(t, ok)
	assert.False(t, reject.AllowsRole(models.RoleTechnician))
	assert.False(t, reject.AllowsRole(""))
}

func TestTransitionKey(t *testing.T) {
	assert.Equal(t, "draft->in_progress", TransitionKey(models.StateDraft, models.StateInProgress))
	assert.Equal(t, "completed->approved", TransitionKey(models.StateCompleted, models.StateApproved))
}

func TestAllRules(t *testing.T) {
	rules := AllRules()
	require.Len(t, rules, 8)

	// Every rule references valid states, at least one role, and only
	// registered checks and actions.
	for _, rule := range rules {
		assert.True(t, rule.From.IsValid(), "from %s", rule.From)
		assert.True(t, rule.To.IsValid(), "to %s", rule.To)
		assert.NotEmpty(t, rule.Roles, "%s->%s has no roles", rule.From, rule.To)
		assert.NotEmpty(t, rule.Description)

		for _, c := range rule.Conditions {
			_, ok := conditionRegistry[c]
			assert.True(t, ok, "condition %s not registered", c)
		}
		for _, v := range rule.Validations {
			_, ok := validationRegistry[v]
			assert.True(t, ok, "validation %s not registered", v)
		}
		for _, a := range rule.Actions {
			_, ok := CategoryOf(a)
			assert.True(t, ok, "action %s not registered", a)
		}
	}

	// Mutating the returned slice must not touch the table.
	rules[0].From = "bogus"
	fresh := AllRules()
	assert.True(t, fresh[0].From.IsValid())
}

func TestActionCategories(t *testing.T) {
	queued := []ActionName{ActionNotifyManagers, ActionNotifyTechnician, ActionSendSMS}
	for _, name := range queued {
		cat, ok := CategoryOf(name)
		require.True(t, ok)
		assert.Equal(t, ActionCategoryQueued, cat, "%s", name)
	}

	transactional := []ActionName{
		ActionStartTimer, ActionCalcDuration, ActionSetCompletionTime,
		ActionPrepareCustomerReport, ActionClearRejectionReason,
		ActionCreateCustomerLink, ActionRecordCompletion,
	}
	for _, name := range transactional {
		cat, ok := CategoryOf(name)
		require.True(t, ok)
		assert.Equal(t, ActionCategoryTransactional, cat, "%s", name)
	}
}
