package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/common"
	"github.com/spannerworks/ratchet/internal/workflow"
)

// Stats command flags
var (
	statsWindowDays int
)

func init() {
	statsCmd.Flags().IntVarP(&statsWindowDays, "window", "w", 30, "Window in days (0 = all time)")

	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display workflow statistics",
	Long: `Display workflow statistics for the acting shop, derived entirely from
the state history table.

Sections shown:
  - Transitions: how many times each edge was taken
  - Completions: count and average creation-to-completed hours
  - Time in State: average dwell per state
  - Bottlenecks: states dwelling well above the shop average

Examples:
  ratchet stats -u mgr-1 -r manager -s 1
  ratchet stats --window 7 -u mgr-1 -r manager -s 1
  ratchet stats --window 0 --json -u mgr-1 -r manager -s 1`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	if statsWindowDays < 0 {
		return ErrInvalidArgs("--window must be zero or positive")
	}

	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	stats, err := newService(database).Statistics(context.Background(), actor, statsWindowDays)
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printStats(stats)
	return nil
}

func printStats(stats *workflow.Statistics) {
	title := fmt.Sprintf("Workflow Statistics: shop %d", stats.ShopID)
	if stats.WindowDays > 0 {
		title += fmt.Sprintf(" (last %d days)", stats.WindowDays)
	}
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 65))

	// Transitions
	fmt.Println()
	fmt.Println("Transitions")
	fmt.Println(strings.Repeat("-", 30))
	if len(stats.TransitionCounts) > 0 {
		edges := make([]string, 0, len(stats.TransitionCounts))
		for edge := range stats.TransitionCounts {
			edges = append(edges, edge)
		}
		sort.Strings(edges)
		total := 0
		for _, edge := range edges {
			count := stats.TransitionCounts[edge]
			total += count
			fmt.Printf("  %-32s %5d\n", edge+":", count)
		}
		fmt.Printf("  %-32s %5d\n", "Total:", total)
	} else {
		fmt.Println("  No transitions in window")
	}

	// Completions
	fmt.Println()
	fmt.Println("Completions")
	fmt.Println(strings.Repeat("-", 30))
	if stats.Completions > 0 {
		fmt.Printf("  Completed:          %5d\n", stats.Completions)
		fmt.Printf("  Avg time to close:  %s\n", common.FormatHours(stats.AvgCompletionHours))
	} else {
		fmt.Println("  No completed inspections")
	}

	// Time in State
	fmt.Println()
	fmt.Println("Time in State")
	fmt.Println(strings.Repeat("-", 30))
	if len(stats.StateDwells) > 0 {
		for _, dwell := range stats.StateDwells {
			fmt.Printf("  %-18s %8s  (%d samples)\n",
				dwell.State+":",
				common.FormatHours(dwell.AvgHours),
				dwell.Samples)
		}
	} else {
		fmt.Println("  No dwell data")
	}

	// Bottlenecks
	if len(stats.Bottlenecks) > 0 {
		fmt.Println()
		fmt.Println("Bottlenecks")
		fmt.Println(strings.Repeat("-", 30))
		for _, b := range stats.Bottlenecks {
			line := fmt.Sprintf("  %-18s %8s  (shop avg %s)",
				string(b.State)+":",
				common.FormatHours(b.AvgHours),
				common.FormatHours(b.ShopAvgHours))
			fmt.Println(colorize(line, ansiYellow))
		}
	}
}
