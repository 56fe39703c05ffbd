package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/notify"
	"github.com/spannerworks/ratchet/internal/server"
	"github.com/spannerworks/ratchet/internal/tasks"
)

// Serve command flags
var (
	servePort    int
	serveHost    string
	serveNoDrain bool
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address to bind to (default from config)")
	serveCmd.Flags().BoolVar(&serveNoDrain, "no-drain", false, "Don't run the notification drainer")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the inspection workflow.

Endpoints:
  GET  /api/health
  GET  /api/inspections
  GET  /api/inspections/{id}
  GET  /api/inspections/{id}/history
  POST /api/inspections/{id}/transitions
  GET  /api/stats

The caller identity is read from the X-User-ID, X-Role and X-Shop-ID
headers; authentication is expected to happen upstream.

Unless --no-drain is given, a background loop also delivers queued
notifications at the configured interval.

Examples:
  ratchet serve                   # Listen on the configured host:port
  ratchet serve --port 8080       # Listen on a custom port
  ratchet serve --host 0.0.0.0    # Bind to all interfaces`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return withSuggestion(err, SuggestRunInit)
	}
	defer database.Close()

	cfg := GetConfig()
	logger := Logger()

	host := serveHost
	if host == "" {
		host = cfg.Server.Host
	}
	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	srv, err := server.New(server.Config{
		Host:   host,
		Port:   port,
		DB:     database,
		App:    cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// The drainer delivers the notification outbox out-of-band. It shares
	// the server's database handle and stops with the server.
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	if !serveNoDrain {
		drainer := tasks.NewNotificationDrainer(database.DB, notify.NewLogSender(logger),
			cfg.Notifications.MaxAttempts, logger)
		interval := time.Duration(cfg.Notifications.DrainIntervalSeconds) * time.Second
		go func() {
			err := drainer.RunDaemon(drainCtx, interval, func(result *tasks.DrainResult) {
				if result.Processed > 0 {
					logger.Info("notification drain pass",
						zap.Int("processed", result.Processed),
						zap.Int("sent", result.Sent),
						zap.Int("failed", result.Failed),
					)
				}
			})
			if err != nil && err != context.Canceled {
				logger.Error("notification drainer stopped", zap.Error(err))
			}
		}()
	}

	OutputLine("Ratchet server starting at http://%s", srv.Address())
	if !serveNoDrain {
		OutputLine("Notification drainer running every %ds", cfg.Notifications.DrainIntervalSeconds)
	}
	OutputLine("Press Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stop:
		OutputLine("\nShutting down...")
		cancelDrain()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	OutputLine("Server stopped")
	return nil
}
