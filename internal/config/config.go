// Package config provides configuration file and environment variable support for ratchet.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Config file (~/.ratchet/config.toml)
//  4. Built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents the ratchet configuration.
type Config struct {
	// DB is the path to the database file.
	// Default: ~/.ratchet/ratchet.db
	DB string `toml:"db"`

	// NoColor disables colored output.
	// Default: false
	NoColor bool `toml:"no_color"`

	// Server holds the HTTP server settings.
	Server ServerConfig `toml:"server"`

	// Logging holds the structured logging settings.
	Logging LoggingConfig `toml:"logging"`

	// Notifications holds the outbox drainer settings.
	Notifications NotificationsConfig `toml:"notifications"`

	// Metrics holds the statistics reader settings.
	Metrics MetricsConfig `toml:"metrics"`

	// Backup holds the automatic database backup settings.
	Backup BackupConfig `toml:"backup"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// Host is the address to bind to. Default: "localhost"
	Host string `toml:"host"`

	// Port is the TCP port to listen on. Default: 18880
	Port int `toml:"port"`
}

// LoggingConfig holds the zap logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: "info"
	Level string `toml:"level"`

	// Format is "console" or "json". Default: "console"
	Format string `toml:"format"`

	// Output is "stdout", "stderr", or a file path. Default: "stderr"
	Output string `toml:"output"`
}

// NotificationsConfig holds the outbox drainer settings.
type NotificationsConfig struct {
	// DrainIntervalSeconds is how often the daemon drains pending
	// notifications. Default: 30
	DrainIntervalSeconds int `toml:"drain_interval_seconds"`

	// MaxAttempts is the delivery attempt cap before a notification is
	// marked failed. Default: 5
	MaxAttempts int `toml:"max_attempts"`
}

// BackupConfig holds the automatic database backup settings.
type BackupConfig struct {
	// Enabled turns automatic backups on or off. Default: true
	Enabled bool `toml:"enabled"`

	// IntervalHours is the minimum age of the newest backup before a new
	// one is taken. Default: 24
	IntervalHours int `toml:"interval_hours"`

	// MaxCount is how many rotating copies to keep. Default: 5
	MaxCount int `toml:"max_count"`

	// Path is the backup directory. Empty means next to the database.
	Path string `toml:"path"`
}

// MetricsConfig holds the statistics reader settings.
type MetricsConfig struct {
	// BottleneckMultiplier flags a state as a bottleneck when its average
	// dwell time exceeds this multiple of the shop's global average.
	// Default: 2.0
	BottleneckMultiplier float64 `toml:"bottleneck_multiplier"`

	// DefaultWindowDays is the statistics window when the caller does not
	// supply one. Default: 30
	DefaultWindowDays int `toml:"default_window_days"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DB:      "", // Empty means use db.DefaultDBPath
		NoColor: false,
		Server: ServerConfig{
			Host: "localhost",
			Port: 18880,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Notifications: NotificationsConfig{
			DrainIntervalSeconds: 30,
			MaxAttempts:          5,
		},
		Metrics: MetricsConfig{
			BottleneckMultiplier: 2.0,
			DefaultWindowDays:    30,
		},
		Backup: BackupConfig{
			Enabled:       true,
			IntervalHours: 24,
			MaxCount:      5,
			Path:          "",
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ratchet", "config.toml")
}

// Load loads configuration from the config file and environment variables.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, err
			}
		}
		// If file doesn't exist, just continue with defaults
	}

	// Apply environment variable overrides
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	if db := os.Getenv("RATCHET_DB"); db != "" {
		c.DB = db
	}
	// RATCHET_DB_PATH takes precedence over RATCHET_DB (more explicit name)
	if dbPath := os.Getenv("RATCHET_DB_PATH"); dbPath != "" {
		c.DB = dbPath
	}

	// RATCHET_NO_COLOR - any value means true
	if _, ok := os.LookupEnv("RATCHET_NO_COLOR"); ok {
		c.NoColor = true
	}

	if host := os.Getenv("RATCHET_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("RATCHET_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}

	if level := os.Getenv("RATCHET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("RATCHET_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if output := os.Getenv("RATCHET_LOG_OUTPUT"); output != "" {
		c.Logging.Output = output
	}

	if interval := os.Getenv("RATCHET_DRAIN_INTERVAL"); interval != "" {
		if d, err := strconv.Atoi(interval); err == nil && d > 0 {
			c.Notifications.DrainIntervalSeconds = d
		}
	}
	if attempts := os.Getenv("RATCHET_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			c.Notifications.MaxAttempts = n
		}
	}

	if mult := os.Getenv("RATCHET_BOTTLENECK_MULTIPLIER"); mult != "" {
		if m, err := strconv.ParseFloat(mult, 64); err == nil && m > 0 {
			c.Metrics.BottleneckMultiplier = m
		}
	}
	if window := os.Getenv("RATCHET_WINDOW_DAYS"); window != "" {
		if w, err := strconv.Atoi(window); err == nil && w > 0 {
			c.Metrics.DefaultWindowDays = w
		}
	}

	if enabled := os.Getenv("RATCHET_BACKUP_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			c.Backup.Enabled = b
		}
	}
	if interval := os.Getenv("RATCHET_BACKUP_INTERVAL"); interval != "" {
		if h, err := strconv.Atoi(interval); err == nil && h > 0 {
			c.Backup.IntervalHours = h
		}
	}
	if count := os.Getenv("RATCHET_BACKUP_MAX_COUNT"); count != "" {
		if n, err := strconv.Atoi(count); err == nil && n > 0 {
			c.Backup.MaxCount = n
		}
	}
	if path := os.Getenv("RATCHET_BACKUP_PATH"); path != "" {
		c.Backup.Path = path
	}
}

// GetDB returns the database path, using the default if not set.
func (c *Config) GetDB() string {
	if c.DB != "" {
		return c.DB
	}
	return "" // Return empty to signal use of db.DefaultDBPath
}

// SampleConfig returns a sample configuration file content.
func SampleConfig() string {
	return `# Ratchet Configuration File
# Location: ~/.ratchet/config.toml
#
# Configuration priority (highest to lowest):
#   1. Command-line flags
#   2. Environment variables (RATCHET_*)
#   3. This config file
#   4. Built-in defaults

# Path to the database file
# Default: ~/.ratchet/ratchet.db
# Environment: RATCHET_DB or RATCHET_DB_PATH (RATCHET_DB_PATH takes precedence)
# db = "/path/to/ratchet.db"

# Disable colored output
# Default: false
# Environment: RATCHET_NO_COLOR (any value = true)
# no_color = false

[server]
# Address and port for 'ratchet serve'
# Environment: RATCHET_SERVER_HOST, RATCHET_SERVER_PORT
# host = "localhost"
# port = 18880

[logging]
# Level: debug, info, warn, error
# Environment: RATCHET_LOG_LEVEL
# level = "info"
# Format: console or json
# Environment: RATCHET_LOG_FORMAT
# format = "console"
# Output: stdout, stderr, or a file path
# Environment: RATCHET_LOG_OUTPUT
# output = "stderr"

[notifications]
# How often the serve daemon drains pending notifications, in seconds
# Environment: RATCHET_DRAIN_INTERVAL
# drain_interval_seconds = 30
# Delivery attempts before a notification is marked failed
# Environment: RATCHET_MAX_ATTEMPTS
# max_attempts = 5

[metrics]
# A state is a bottleneck when its average dwell exceeds this multiple of
# the shop's global average dwell
# Environment: RATCHET_BOTTLENECK_MULTIPLIER
# bottleneck_multiplier = 2.0
# Statistics window when none is supplied
# Environment: RATCHET_WINDOW_DAYS
# default_window_days = 30

[backup]
# Automatic rotating backups of the database before commands run
# Environment: RATCHET_BACKUP_ENABLED
# enabled = true
# Minimum age of the newest backup before a new one is taken, in hours
# Environment: RATCHET_BACKUP_INTERVAL
# interval_hours = 24
# How many rotating copies to keep
# Environment: RATCHET_BACKUP_MAX_COUNT
# max_count = 5
# Backup directory (empty = next to the database)
# Environment: RATCHET_BACKUP_PATH
# path = ""
`
}

// WriteConfigFile writes the sample config file to the specified path.
// Creates parent directories if needed.
func WriteConfigFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(SampleConfig()), 0644)
}
