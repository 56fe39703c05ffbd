package cli

import (
	"os"

	"golang.org/x/term"

	"github.com/spannerworks/ratchet/internal/models"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// useColor reports whether output should be colorized. Color is on only
// when stdout is a terminal and no flag or config disables it.
func useColor() bool {
	if IsNoColor() {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colorize(s, color string) string {
	if !useColor() {
		return s
	}
	return color + s + ansiReset
}

// formatState renders a workflow state with its conventional color.
func formatState(s models.WorkflowState) string {
	switch s {
	case models.StateDraft:
		return colorize(string(s), ansiDim)
	case models.StateInProgress:
		return colorize(string(s), ansiCyan)
	case models.StatePendingReview:
		return colorize(string(s), ansiYellow)
	case models.StateApproved, models.StateCompleted:
		return colorize(string(s), ansiGreen)
	case models.StateRejected:
		return colorize(string(s), ansiRed)
	default:
		return string(s)
	}
}

// formatCondition renders an item condition with its conventional color.
func formatCondition(c models.ItemCondition) string {
	switch c {
	case models.ConditionNotInspected:
		return colorize(string(c), ansiDim)
	case models.ConditionGood:
		return colorize(string(c), ansiGreen)
	case models.ConditionNeedsAttention:
		return colorize(string(c), ansiYellow)
	case models.ConditionNeedsImmediate:
		return colorize(string(c), ansiRed)
	default:
		return string(c)
	}
}
