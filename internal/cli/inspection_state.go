package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/common"
	rerrors "github.com/spannerworks/ratchet/internal/errors"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/workflow"
)

// State command flags
var (
	rejectReason     string
	transitionFrom   string
	transitionTo     string
	transitionReason string
	forceTo          string
	forceReason      string
)

func init() {
	// inspection reject
	inspectionRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Reason for rejection (required)")
	inspectionRejectCmd.MarkFlagRequired("reason")

	// inspection transition
	inspectionTransitionCmd.Flags().StringVar(&transitionFrom, "from", "", "Expected current state (defaults to the actual state)")
	inspectionTransitionCmd.Flags().StringVar(&transitionTo, "to", "", "Target state (required)")
	inspectionTransitionCmd.Flags().StringVar(&transitionReason, "reason", "", "Reason for the transition")
	inspectionTransitionCmd.MarkFlagRequired("to")

	// inspection force
	inspectionForceCmd.Flags().StringVar(&forceTo, "to", "", "Target state (required)")
	inspectionForceCmd.Flags().StringVar(&forceReason, "reason", "", "Reason for the override (required)")
	inspectionForceCmd.MarkFlagRequired("to")
	inspectionForceCmd.MarkFlagRequired("reason")

	// Add subcommands
	inspectionCmd.AddCommand(inspectionStartCmd)
	inspectionCmd.AddCommand(inspectionSubmitCmd)
	inspectionCmd.AddCommand(inspectionApproveCmd)
	inspectionCmd.AddCommand(inspectionRejectCmd)
	inspectionCmd.AddCommand(inspectionReopenCmd)
	inspectionCmd.AddCommand(inspectionSendCmd)
	inspectionCmd.AddCommand(inspectionCompleteCmd)
	inspectionCmd.AddCommand(inspectionTransitionCmd)
	inspectionCmd.AddCommand(inspectionForceCmd)
}

// runWorkflowEdge applies one named transition and prints the outcome. All
// the verb commands funnel through here; only the edge and reason differ.
func runWorkflowEdge(arg string, from, to models.WorkflowState, reason string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(arg, "inspection")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	result, err := newService(database).Transition(context.Background(), workflow.TransitionRequest{
		InspectionID: id,
		From:         from,
		To:           to,
		Actor:        actor,
		Reason:       reason,
	})
	if err != nil {
		return suggestShowOnStaleState(err, id)
	}

	printTransitionResult(result)
	return nil
}

// suggestShowOnStaleState points the user at 'inspection show' when the
// failure means their view of the state is wrong or stale.
func suggestShowOnStaleState(err error, id int64) error {
	if rerrors.Is(err, rerrors.KindStateConflict) || rerrors.Is(err, rerrors.KindInvalidTransition) {
		return withSuggestion(err, SuggestShowState, id)
	}
	return err
}

// printTransitionResult prints the post-transition inspection and any
// warnings collected from checks and actions.
func printTransitionResult(result *workflow.TransitionResult) {
	if IsJSON() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	insp := result.Inspection
	OutputLine("Inspection %d: %s -> %s (version %d)", insp.ID, insp.PreviousState, formatState(insp.WorkflowState), insp.Version)
	for _, w := range result.Warnings {
		OutputLine("Warning: %s", colorize(w, ansiYellow))
	}
	if insp.InspectionSeconds != nil && insp.WorkflowState == models.StatePendingReview {
		OutputLine("Inspection time: %s", common.FormatSeconds(*insp.InspectionSeconds))
	}
	if insp.CustomerLinkToken != "" && insp.WorkflowState == models.StateSentToCustomer {
		OutputLine("Report code: %s", insp.CustomerLinkToken)
	}
}

// inspection start
var inspectionStartCmd = &cobra.Command{
	Use:   "start <ID>",
	Short: "Begin the inspection (draft -> in_progress)",
	Long: `Move a draft inspection to in_progress and start its timer. The
inspection must have at least one checklist item.

Example:
  ratchet inspection start 12 -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionStart,
}

func runInspectionStart(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StateDraft, models.StateInProgress, "")
}

// inspection submit
var inspectionSubmitCmd = &cobra.Command{
	Use:   "submit <ID>",
	Short: "Submit for review (in_progress -> pending_review)",
	Long: `Submit a finished inspection for manager review. Every checklist item
must be scored; unresolved critical items produce a warning here and
block approval later.

Example:
  ratchet inspection submit 12 -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionSubmit,
}

func runInspectionSubmit(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StateInProgress, models.StatePendingReview, "")
}

// inspection approve
var inspectionApproveCmd = &cobra.Command{
	Use:   "approve <ID>",
	Short: "Approve a review (pending_review -> approved)",
	Long: `Approve an inspection awaiting review. Managers and admins only.
Approval is blocked while any needs_immediate item is unresolved.

Example:
  ratchet inspection approve 12 -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionApprove,
}

func runInspectionApprove(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StatePendingReview, models.StateApproved, "")
}

// inspection reject
var inspectionRejectCmd = &cobra.Command{
	Use:   "reject <ID>",
	Short: "Reject a review (pending_review -> rejected)",
	Long: `Send an inspection back to the technician with a reason. Managers and
admins only. The assigned technician is notified.

Example:
  ratchet inspection reject 12 --reason "Brake photos missing" -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionReject,
}

func runInspectionReject(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StatePendingReview, models.StateRejected, rejectReason)
}

// inspection reopen
var inspectionReopenCmd = &cobra.Command{
	Use:   "reopen <ID>",
	Short: "Resume rejected work (rejected -> in_progress)",
	Long: `Reopen a rejected inspection so the technician can address the
feedback and resubmit.

Example:
  ratchet inspection reopen 12 -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionReopen,
}

func runInspectionReopen(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StateRejected, models.StateInProgress, "")
}

// inspection send
var inspectionSendCmd = &cobra.Command{
	Use:   "send <ID>",
	Short: "Send the report (approved -> sent_to_customer)",
	Long: `Deliver the approved report to the customer. Generates the report
summary and customer link, and queues an SMS when the customer has a
phone number on file (a warning is printed when they do not).

Example:
  ratchet inspection send 12 -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionSend,
}

func runInspectionSend(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StateApproved, models.StateSentToCustomer, "")
}

// inspection complete
var inspectionCompleteCmd = &cobra.Command{
	Use:   "complete <ID>",
	Short: "Close out the inspection (sent_to_customer -> completed)",
	Long: `Mark a delivered inspection completed. Completed is terminal; only an
admin can move it back to approved afterwards.

Example:
  ratchet inspection complete 12 -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionComplete,
}

func runInspectionComplete(cmd *cobra.Command, args []string) error {
	return runWorkflowEdge(args[0], models.StateSentToCustomer, models.StateCompleted, "")
}

// inspection transition
var inspectionTransitionCmd = &cobra.Command{
	Use:   "transition <ID>",
	Short: "Apply an arbitrary rule-table transition",
	Long: `Apply any transition the rule table declares, including the admin-only
completed -> approved correction. When --from is omitted the current
state is used; pass it to fail fast if the inspection has moved.

Examples:
  ratchet inspection transition 12 --to approved -u admin-1 -r admin -s 1
  ratchet inspection transition 12 --from draft --to in_progress -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionTransition,
}

func runInspectionTransition(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}
	to, err := models.ParseWorkflowState(transitionTo)
	if err != nil {
		return ErrInvalidArgs("--to: %v", err)
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	svc := newService(database)

	var from models.WorkflowState
	if transitionFrom != "" {
		from, err = models.ParseWorkflowState(transitionFrom)
		if err != nil {
			return ErrInvalidArgs("--from: %v", err)
		}
	} else {
		detail, err := svc.Get(context.Background(), actor, id)
		if err != nil {
			return err
		}
		from = detail.Inspection.WorkflowState
	}

	result, err := svc.Transition(context.Background(), workflow.TransitionRequest{
		InspectionID: id,
		From:         from,
		To:           to,
		Actor:        actor,
		Reason:       transitionReason,
	})
	if err != nil {
		return suggestShowOnStaleState(err, id)
	}

	printTransitionResult(result)
	return nil
}

// inspection force
var inspectionForceCmd = &cobra.Command{
	Use:   "force <ID>",
	Short: "Force a state (admin override)",
	Long: `Move an inspection to any state, bypassing the rule table, its checks
and its actions. Admin only, reason required. The history entry is
flagged so the override stays visible in audits.

Because forced transitions skip actions, downstream side effects
(timers, report generation, notifications) do not run.

Example:
  ratchet inspection force 12 --to completed --reason "Data entry fix per support ticket 4821" -u admin-1 -r admin -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionForce,
}

func runInspectionForce(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}
	to, err := models.ParseWorkflowState(forceTo)
	if err != nil {
		return ErrInvalidArgs("--to: %v", err)
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	result, err := newService(database).Force(context.Background(), workflow.ForceRequest{
		InspectionID: id,
		To:           to,
		Actor:        actor,
		Reason:       forceReason,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	insp := result.Inspection
	OutputLine("Forced inspection %d: %s -> %s (version %d)", insp.ID, insp.PreviousState, formatState(insp.WorkflowState), insp.Version)
	OutputLine("Reason: %s", forceReason)
	OutputLine("%s", colorize("Checks and actions were skipped; the history entry is marked as forced.", ansiYellow))
	return nil
}
