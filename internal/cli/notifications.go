package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/common"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/notify"
	"github.com/spannerworks/ratchet/internal/tasks"
)

// Notifications command flags
var (
	drainLimit   int
	pendingLimit int
)

func init() {
	notificationsDrainCmd.Flags().IntVarP(&drainLimit, "limit", "l", 100, "Max notifications to process")
	notificationsPendingCmd.Flags().IntVarP(&pendingLimit, "limit", "l", 50, "Max notifications to show")

	notificationsCmd.AddCommand(notificationsDrainCmd)
	notificationsCmd.AddCommand(notificationsPendingCmd)

	rootCmd.AddCommand(notificationsCmd)
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notify"},
	Short:   "Notification outbox commands",
	Long: `Inspect and drain the notification outbox. Transitions queue SMS and
alert rows inside their own transaction; delivery happens here (or in
the background drainer that 'ratchet serve' runs).`,
}

// notifications drain
var notificationsDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending notifications",
	Long: `Drain the outbox once: attempt delivery for pending notifications,
retrying each with backoff. Rows that exhaust their attempt budget are
marked failed and reported.

Examples:
  ratchet notifications drain
  ratchet notifications drain --limit 10 --json`,
	Args: cobra.NoArgs,
	RunE: runNotificationsDrain,
}

func runNotificationsDrain(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	cfg := GetConfig()
	drainer := tasks.NewNotificationDrainer(database.DB, notify.NewLogSender(Logger()), cfg.Notifications.MaxAttempts, Logger())
	result, err := drainer.DrainAll(context.Background(), drainLimit)
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if result.Processed == 0 {
		OutputLine("No pending notifications.")
		return nil
	}

	OutputLine("Processed %d notification(s): %d sent, %d failed, %d gave up",
		result.Processed, result.Sent, result.Failed, result.GaveUp)
	for _, r := range result.Results {
		status := colorize("sent", ansiGreen)
		if r.GaveUp {
			status = colorize("gave up", ansiRed)
		} else if !r.Delivered {
			status = colorize("failed", ansiYellow)
		}
		line := fmt.Sprintf("  %-4d %-6s -> %-16s %s", r.NotificationID, r.Kind, r.Recipient, status)
		if r.ErrorMessage != "" {
			line += " (" + r.ErrorMessage + ")"
		}
		fmt.Println(line)
	}
	return nil
}

// notifications pending
var notificationsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List undelivered notifications",
	Long: `List outbox rows still waiting for delivery, oldest first.

Example:
  ratchet notifications pending --limit 20`,
	Args: cobra.NoArgs,
	RunE: runNotificationsPending,
}

func runNotificationsPending(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	repo := db.NewNotificationRepo(database.DB)
	pending, err := repo.ListPending(context.Background(), pendingLimit)
	if err != nil {
		return err
	}
	total, err := repo.CountPending(context.Background())
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"total":   total,
			"pending": pending,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if total == 0 {
		OutputLine("No pending notifications.")
		return nil
	}

	OutputLine("%d pending notification(s):", total)
	fmt.Printf("%-5s %-6s %-16s %-6s %-10s %s\n", "ID", "KIND", "RECIPIENT", "INSP", "AGE", "ATTEMPTS")
	fmt.Println(strings.Repeat("-", 60))
	for _, n := range pending {
		attempts := fmt.Sprintf("%d", n.Attempts)
		if n.LastError != "" {
			attempts += " " + colorize("("+truncate(n.LastError, 24)+")", ansiDim)
		}
		fmt.Printf("%-5d %-6s %-16s %-6d %-10s %s\n",
			n.ID,
			n.Kind,
			truncate(n.Recipient, 16),
			n.InspectionID,
			common.FormatAge(n.CreatedAt),
			attempts,
		)
	}
	return nil
}
