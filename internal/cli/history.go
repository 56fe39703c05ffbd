package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/models"
)

// History command flags
var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Max entries to show")

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <ID>",
	Short: "Show an inspection's state history",
	Long: `Show the append-only transition history of an inspection, most recent
first. Forced transitions are flagged; they carry validation_passed=false
and the reason the admin recorded.

Examples:
  ratchet history 12 -u mgr-1 -r manager -s 1
  ratchet history 12 --limit 5 --json -u mgr-1 -r manager -s 1`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	history, err := newService(database).History(context.Background(), actor, id, historyLimit)
	if err != nil {
		return err
	}

	if IsJSON() {
		if len(history) == 0 {
			fmt.Println("[]")
			return nil
		}
		data, _ := json.MarshalIndent(history, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(history) == 0 {
		OutputLine("No history for inspection %d.", id)
		return nil
	}

	OutputLine("History for inspection %d:", id)
	fmt.Println(strings.Repeat("-", 78))
	for _, h := range history {
		printHistoryLine(h)
	}
	return nil
}

// printHistoryLine renders one history entry in the two-line table form
// shared by 'history' and 'inspection show --history'.
func printHistoryLine(h *models.StateHistoryEntry) {
	flag := ""
	if h.IsForced() {
		flag = " " + colorize("[FORCED]", ansiRed)
	}
	fmt.Printf("  %s  %s -> %s  by %s (%s)%s\n",
		h.ChangedAt.Local().Format("2006-01-02 15:04:05"),
		h.FromState,
		formatState(h.ToState),
		h.ChangedBy,
		h.Role,
		flag,
	)
	if h.Reason != "" {
		fmt.Printf("  %s\n", colorize("reason: "+h.Reason, ansiDim))
	}
}
