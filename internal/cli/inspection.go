package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/common"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/service"
)

// Inspection command flags
var (
	inspCustomerID   int64
	inspVehicleID    int64
	inspTechnician   string
	inspItemName     string
	inspItemNotes    string
	inspCondition    string
	inspScoreNotes   string
	inspListState    string
	inspListTech     string
	inspListLimit    int
	inspShowHistory  bool
)

func init() {
	// inspection create
	inspectionCreateCmd.Flags().Int64Var(&inspCustomerID, "customer", 0, "Customer id (required)")
	inspectionCreateCmd.Flags().Int64Var(&inspVehicleID, "vehicle", 0, "Vehicle id (required)")
	inspectionCreateCmd.Flags().StringVar(&inspTechnician, "technician", "", "Assigned technician id")
	inspectionCreateCmd.MarkFlagRequired("customer")
	inspectionCreateCmd.MarkFlagRequired("vehicle")

	// inspection list
	inspectionListCmd.Flags().StringVar(&inspListState, "state", "", "Filter by workflow state")
	inspectionListCmd.Flags().StringVar(&inspListTech, "technician", "", "Filter by technician id")
	inspectionListCmd.Flags().IntVarP(&inspListLimit, "limit", "l", 50, "Max inspections to show")

	// inspection show
	inspectionShowCmd.Flags().BoolVar(&inspShowHistory, "history", false, "Include recent state history")

	// inspection add-item
	inspectionAddItemCmd.Flags().StringVarP(&inspItemName, "name", "n", "", "Item name (required)")
	inspectionAddItemCmd.Flags().StringVar(&inspItemNotes, "notes", "", "Item notes")
	inspectionAddItemCmd.MarkFlagRequired("name")

	// inspection score
	inspectionScoreCmd.Flags().StringVarP(&inspCondition, "condition", "c", "", "Condition: good, needs_attention, needs_immediate (required)")
	inspectionScoreCmd.Flags().StringVar(&inspScoreNotes, "notes", "", "Scoring notes")
	inspectionScoreCmd.MarkFlagRequired("condition")

	// inspection assign
	inspectionAssignCmd.Flags().StringVar(&inspTechnician, "technician", "", "Technician id (required)")
	inspectionAssignCmd.MarkFlagRequired("technician")

	// Add subcommands
	inspectionCmd.AddCommand(inspectionCreateCmd)
	inspectionCmd.AddCommand(inspectionListCmd)
	inspectionCmd.AddCommand(inspectionShowCmd)
	inspectionCmd.AddCommand(inspectionItemsCmd)
	inspectionCmd.AddCommand(inspectionAddItemCmd)
	inspectionCmd.AddCommand(inspectionScoreCmd)
	inspectionCmd.AddCommand(inspectionResolveCmd)
	inspectionCmd.AddCommand(inspectionAssignCmd)

	rootCmd.AddCommand(inspectionCmd)
}

var inspectionCmd = &cobra.Command{
	Use:     "inspection",
	Aliases: []string{"insp"},
	Short:   "Inspection management commands",
	Long: `Manage vehicle inspections: create them, fill in checklist items, and
move them through the workflow (draft, in_progress, pending_review,
approved/rejected, sent_to_customer, completed).`,
}

// parseID parses a numeric id argument.
func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidArgs("invalid %s id: %q", what, arg)
	}
	return id, nil
}

// inspection create
var inspectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new inspection in draft",
	Long: `Open a new inspection for a customer's vehicle. The inspection starts
in draft; add checklist items, then move it to in_progress with
'ratchet inspection start'.

Example:
  ratchet inspection create --customer 3 --vehicle 7 --technician tech-1 -u tech-1 -r technician -s 1`,
	Args: cobra.NoArgs,
	RunE: runInspectionCreate,
}

func runInspectionCreate(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	insp, err := newService(database).CreateInspection(context.Background(), actor, service.CreateInspectionInput{
		CustomerID:   inspCustomerID,
		VehicleID:    inspVehicleID,
		TechnicianID: inspTechnician,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(insp, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Created inspection %d", insp.ID)
	OutputLine("State: %s", formatState(insp.WorkflowState))
	if insp.TechnicianID != "" {
		OutputLine("Technician: %s", insp.TechnicianID)
	}
	return nil
}

// inspection list
var inspectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inspections in the acting shop",
	Long: `List inspections in the acting shop, most recent first.

Examples:
  ratchet inspection list -u mgr-1 -r manager -s 1
  ratchet inspection list --state pending_review -u mgr-1 -r manager -s 1
  ratchet inspection list --technician tech-1 -u mgr-1 -r manager -s 1`,
	Args: cobra.NoArgs,
	RunE: runInspectionList,
}

func runInspectionList(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	list, err := newService(database).List(context.Background(), actor, service.ListFilter{
		State:        inspListState,
		TechnicianID: inspListTech,
		Limit:        inspListLimit,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		if len(list) == 0 {
			fmt.Println("[]")
			return nil
		}
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(list) == 0 {
		OutputLine("No inspections found.")
		return nil
	}

	fmt.Printf("%-6s %-18s %-4s %-12s %-10s %s\n", "ID", "STATE", "VER", "TECHNICIAN", "AGE", "CHANGED BY")
	fmt.Println(strings.Repeat("-", 70))
	for _, insp := range list {
		tech := insp.TechnicianID
		if tech == "" {
			tech = "-"
		}
		fmt.Printf("%-6d %-18s %-4d %-12s %-10s %s\n",
			insp.ID,
			formatState(insp.WorkflowState),
			insp.Version,
			tech,
			common.FormatAge(insp.StateChangedAt),
			insp.StateChangedBy,
		)
	}
	return nil
}

// inspection show
var inspectionShowCmd = &cobra.Command{
	Use:   "show <ID>",
	Short: "Show inspection details",
	Long: `Display an inspection with its checklist items, customer and vehicle.

Examples:
  ratchet inspection show 12 -u tech-1 -r technician -s 1
  ratchet inspection show 12 --history -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionShow,
}

type inspectionShowResult struct {
	*service.InspectionDetail
	History []*models.StateHistoryEntry `json:"history,omitempty"`
}

func runInspectionShow(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	svc := newService(database)
	detail, err := svc.Get(context.Background(), actor, id)
	if err != nil {
		return err
	}

	result := inspectionShowResult{InspectionDetail: detail}
	if inspShowHistory {
		history, err := svc.History(context.Background(), actor, id, 10)
		if err != nil {
			return err
		}
		result.History = history
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printInspectionDetail(result)
	return nil
}

func printInspectionDetail(result inspectionShowResult) {
	insp := result.Inspection

	fmt.Println(strings.Repeat("=", 65))
	fmt.Printf("Inspection %d\n", insp.ID)
	fmt.Println(strings.Repeat("=", 65))
	fmt.Println()
	fmt.Printf("State:       %s (version %d)\n", formatState(insp.WorkflowState), insp.Version)
	if insp.PreviousState != "" {
		fmt.Printf("Previous:    %s\n", insp.PreviousState)
	}
	fmt.Printf("Changed:     %s by %s\n", insp.StateChangedAt.Local().Format("2006-01-02 15:04:05"), insp.StateChangedBy)
	if insp.TechnicianID != "" {
		fmt.Printf("Technician:  %s\n", insp.TechnicianID)
	}
	if result.Customer != nil {
		phone := result.Customer.Phone
		if phone == "" {
			phone = "no phone"
		}
		fmt.Printf("Customer:    %s (%s)\n", result.Customer.FullName(), phone)
	}
	if result.Vehicle != nil {
		fmt.Printf("Vehicle:     %s\n", result.Vehicle.Label())
	}
	if insp.RejectionReason != "" {
		fmt.Printf("Rejected:    %s\n", colorize(insp.RejectionReason, ansiRed))
	}
	if insp.StartedAt != nil {
		fmt.Printf("Started:     %s\n", insp.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if insp.InspectionSeconds != nil {
		fmt.Printf("Duration:    %s\n", common.FormatSeconds(*insp.InspectionSeconds))
	}
	if insp.CompletedAt != nil {
		fmt.Printf("Approved:    %s\n", insp.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if insp.FinalizedAt != nil {
		fmt.Printf("Finalized:   %s\n", insp.FinalizedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if insp.CustomerLinkToken != "" {
		fmt.Printf("Report code: %s\n", insp.CustomerLinkToken)
	}

	if len(result.Items) > 0 {
		fmt.Println()
		fmt.Println(strings.Repeat("-", 65))
		fmt.Println("Items:")
		fmt.Println(strings.Repeat("-", 65))
		for _, item := range result.Items {
			resolved := ""
			if item.ResolvedAt != nil {
				resolved = " (resolved)"
			}
			fmt.Printf("  %-4d %-28s %s%s\n", item.ID, truncate(item.Name, 28), formatCondition(item.Condition), resolved)
			if item.Notes != "" {
				fmt.Printf("       %s\n", colorize(truncate(item.Notes, 58), ansiDim))
			}
		}
	}

	if len(result.History) > 0 {
		fmt.Println()
		fmt.Println(strings.Repeat("-", 65))
		fmt.Println("Recent History:")
		fmt.Println(strings.Repeat("-", 65))
		for _, h := range result.History {
			printHistoryLine(h)
		}
	}
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// inspection items
var inspectionItemsCmd = &cobra.Command{
	Use:   "items <ID>",
	Short: "List an inspection's checklist items",
	Long: `List the checklist items on an inspection with their conditions and
resolution status.

Example:
  ratchet inspection items 12 -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionItems,
}

func runInspectionItems(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	detail, err := newService(database).Get(context.Background(), actor, id)
	if err != nil {
		return err
	}

	if IsJSON() {
		if len(detail.Items) == 0 {
			fmt.Println("[]")
			return nil
		}
		data, _ := json.MarshalIndent(detail.Items, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(detail.Items) == 0 {
		OutputLine("No items on inspection %d.", id)
		return nil
	}

	fmt.Printf("%-6s %-28s %-16s %-9s %s\n", "ID", "NAME", "CONDITION", "RESOLVED", "NOTES")
	fmt.Println(strings.Repeat("-", 78))
	for _, item := range detail.Items {
		resolved := "-"
		if item.ResolvedAt != nil {
			resolved = "yes"
		}
		fmt.Printf("%-6d %-28s %-16s %-9s %s\n",
			item.ID,
			truncate(item.Name, 28),
			formatCondition(item.Condition),
			resolved,
			truncate(item.Notes, 24),
		)
	}
	return nil
}

// inspection add-item
var inspectionAddItemCmd = &cobra.Command{
	Use:   "add-item <ID>",
	Short: "Add a checklist item",
	Long: `Add a checklist item to an inspection. Items can only be added while
the inspection is in draft or in_progress.

Example:
  ratchet inspection add-item 12 --name "Front brake pads" -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionAddItem,
}

func runInspectionAddItem(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	item, err := newService(database).AddItem(context.Background(), actor, id, service.ItemInput{
		Name:  inspItemName,
		Notes: inspItemNotes,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Added item %d: %s", item.ID, item.Name)
	return nil
}

// inspection score
var inspectionScoreCmd = &cobra.Command{
	Use:   "score <ID> <ITEM>",
	Short: "Score a checklist item",
	Long: `Record the technician's verdict for one checklist item. Every item
must be scored before the inspection can be submitted for review.

Conditions:
  good             - No issues found
  needs_attention  - Should be addressed soon
  needs_immediate  - Safety-critical, blocks approval until resolved

Example:
  ratchet inspection score 12 3 --condition needs_immediate --notes "Pads below 2mm" -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(2),
	RunE: runInspectionScore,
}

func runInspectionScore(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}
	itemID, err := parseID(args[1], "item")
	if err != nil {
		return err
	}
	condition, err := models.ParseItemCondition(inspCondition)
	if err != nil {
		return ErrInvalidArgs("--condition: %v", err)
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	item, err := newService(database).ScoreItem(context.Background(), actor, id, itemID, condition, inspScoreNotes)
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Scored item %d: %s -> %s", item.ID, item.Name, formatCondition(item.Condition))
	if item.Condition.IsCritical() {
		OutputLine("Note: critical items must be resolved before the inspection can be approved")
	}
	return nil
}

// inspection resolve
var inspectionResolveCmd = &cobra.Command{
	Use:   "resolve <ID> <ITEM>",
	Short: "Mark a critical item resolved",
	Long: `Mark a needs_immediate item as resolved so it no longer blocks manager
approval. The item keeps its condition; only the blocking flag clears.

Example:
  ratchet inspection resolve 12 3 -u tech-1 -r technician -s 1`,
	Args: cobra.ExactArgs(2),
	RunE: runInspectionResolve,
}

func runInspectionResolve(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}
	itemID, err := parseID(args[1], "item")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	item, err := newService(database).ResolveItem(context.Background(), actor, id, itemID)
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Resolved item %d: %s", item.ID, item.Name)
	return nil
}

// inspection assign
var inspectionAssignCmd = &cobra.Command{
	Use:   "assign <ID>",
	Short: "Assign a technician",
	Long: `Assign the technician responsible for an inspection. Rejection
notifications go to this technician.

Example:
  ratchet inspection assign 12 --technician tech-2 -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectionAssign,
}

func runInspectionAssign(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	id, err := parseID(args[0], "inspection")
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	if err := newService(database).AssignTechnician(context.Background(), actor, id, inspTechnician); err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"inspection_id": id,
			"technician":    inspTechnician,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Assigned inspection %d to %s", id, inspTechnician)
	return nil
}
