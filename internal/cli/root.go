package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/backup"
	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/logging"
	"github.com/spannerworks/ratchet/internal/models"
	"github.com/spannerworks/ratchet/internal/service"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	dbPath  string
	jsonOut bool
	quiet   bool
	verbose bool
	noColor bool

	actorUser string
	actorRole string
	actorShop int64
)

// Global configuration (loaded once at startup)
var globalConfig *config.Config

// Shared logger, built lazily from config and the verbosity flags.
var globalLogger *zap.Logger

// skipBackupCommands lists commands that should not trigger automatic backup.
// These are either commands that don't need a database, or that initialize it.
var skipBackupCommands = map[string]bool{
	"help":    true,
	"version": true,
	"init":    true,
}

var rootCmd = &cobra.Command{
	Use:   "ratchet",
	Short: "Vehicle inspection workflow engine",
	Long: `Ratchet tracks vehicle inspections from draft through technician work,
manager review, customer delivery and completion.

Every state change is checked against a transition rule table (roles,
pre-conditions, validations), recorded in an immutable history, and kept
safe against concurrent writers by optimistic versioning.

Most commands act on behalf of a user; pass the caller identity with
--user, --role and --shop (or RATCHET_USER, RATCHET_ROLE, RATCHET_SHOP).

Use "ratchet init" to create a new database.
Use "ratchet --help" to see all available commands.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return runAutoBackup(cmd)
	},
}

func init() {
	// Load global configuration at startup
	var err error
	globalConfig, err = config.Load()
	if err != nil {
		// If config file is invalid, print warning but continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		globalConfig = config.DefaultConfig()
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default ~/.ratchet/ratchet.db)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.PersistentFlags().StringVarP(&actorUser, "user", "u", "", "Acting user id (or RATCHET_USER)")
	rootCmd.PersistentFlags().StringVarP(&actorRole, "role", "r", "", "Acting role: technician, manager, admin (or RATCHET_ROLE)")
	rootCmd.PersistentFlags().Int64VarP(&actorShop, "shop", "s", 0, "Acting shop id (or RATCHET_SHOP)")

	// Set version template for --version flag
	rootCmd.SetVersionTemplate(fmt.Sprintf("ratchet %s (%s, %s)\n", Version, shortCommit(), shortDate()))

	// Add commands
	rootCmd.AddCommand(versionCmd)
}

// shortCommit returns the first 7 characters of the git commit hash
func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// shortDate returns just the date portion of BuildDate (YYYY-MM-DD)
func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// runAutoBackup performs automatic backup if needed before command execution.
// It skips backup for commands that don't need it (help, version, init).
func runAutoBackup(cmd *cobra.Command) error {
	if skipBackupCommands[cmd.Name()] {
		return nil
	}
	if globalConfig == nil || !globalConfig.Backup.Enabled {
		return nil
	}

	path := GetDBPath()
	if path == "" {
		path = db.DefaultDBPath
	}
	path = expandPath(path)

	// Nothing to back up until init has run
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	mgr := backup.NewManager(path, globalConfig.Backup)
	backupPath, err := mgr.BackupIfNeeded()
	if err != nil {
		// Log warning but don't fail the command
		VerboseOutput("Warning: automatic backup failed: %v\n", err)
		return nil
	}
	if backupPath != "" {
		VerboseOutput("Created backup: %s\n", backupPath)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// GetDBPath returns the database path from flags, config, or default.
// Priority: flag > env > config file > default
func GetDBPath() string {
	// Command-line flag has highest priority
	if dbPath != "" {
		return dbPath
	}
	// Config already handles env > file > default
	if globalConfig != nil {
		return globalConfig.GetDB()
	}
	return "" // Will use default in db.Open
}

// openDatabase opens the configured database.
func openDatabase() (*db.DB, error) {
	database, err := db.Open(GetDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// newService builds the inspection service over an open database.
func newService(database *db.DB) *service.InspectionService {
	return service.NewInspectionService(database, GetConfig(), Logger())
}

// actorFromFlags resolves the acting (user, role, shop) triple from flags
// with environment fallback.
func actorFromFlags() (models.Actor, error) {
	userID := actorUser
	if userID == "" {
		userID = os.Getenv("RATCHET_USER")
	}
	if userID == "" {
		return models.Actor{}, ErrInvalidArgs("--user is required (or set RATCHET_USER)")
	}

	roleStr := actorRole
	if roleStr == "" {
		roleStr = os.Getenv("RATCHET_ROLE")
	}
	role, err := models.ParseRole(roleStr)
	if err != nil {
		return models.Actor{}, ErrInvalidArgs("--role: %v", err)
	}

	shopID := actorShop
	if shopID == 0 {
		if env := os.Getenv("RATCHET_SHOP"); env != "" {
			fmt.Sscanf(env, "%d", &shopID)
		}
	}
	if shopID <= 0 {
		return models.Actor{}, ErrInvalidArgs("--shop is required and must be positive (or set RATCHET_SHOP)")
	}

	return models.Actor{UserID: userID, Role: role, ShopID: shopID}, nil
}

// Logger returns the shared zap logger. Verbose lowers the level to debug,
// quiet raises it to error.
func Logger() *zap.Logger {
	if globalLogger != nil {
		return globalLogger
	}

	cfg := logging.Config{
		Level:      GetConfig().Logging.Level,
		Format:     GetConfig().Logging.Format,
		OutputPath: GetConfig().Logging.Output,
	}
	if verbose {
		cfg.Level = "debug"
	} else if quiet {
		cfg.Level = "error"
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		logger = zap.NewNop()
	}
	globalLogger = logger
	return globalLogger
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig != nil {
		return globalConfig
	}
	return config.DefaultConfig()
}

// IsJSON returns whether JSON output is requested
func IsJSON() bool {
	return jsonOut
}

// IsNoColor returns whether colored output should be disabled.
// Priority: flag > env > config file > default
func IsNoColor() bool {
	// Command-line flag has highest priority
	if noColor {
		return true
	}
	// Config already handles env > file > default
	if globalConfig != nil {
		return globalConfig.NoColor
	}
	return false
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// Output prints to stdout unless quiet mode is enabled
func Output(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

// OutputLine prints a line to stdout unless quiet mode is enabled
func OutputLine(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// VerboseOutput prints to stdout only in verbose mode
func VerboseOutput(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Printf(format, args...)
	}
}

// ErrorOutput prints to stderr
func ErrorOutput(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
