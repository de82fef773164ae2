package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"relayconf/internal/paths"
	"relayconf/internal/storage/sqlite"
)

// Environment variables read by LoadConfig.
const (
	EnvDBPath        = "RELAYCONF_DB"
	EnvDriver        = "RELAYCONF_DRIVER"
	EnvLogLevel      = "RELAYCONF_LOG_LEVEL"
	EnvLogFile       = "RELAYCONF_LOG_FILE"
	EnvAuditInterval = "RELAYCONF_AUDIT_INTERVAL"
	EnvEngine        = "RELAYCONF_ENGINE"
	EnvSeedOnEmpty   = "RELAYCONF_SEED"
)

// Config represents application configuration
type Config struct {
	DBPath string
	Driver string // sqlite.DriverCGO or sqlite.DriverPure

	// LogLevel overrides the log_level setting when non-empty.
	LogLevel string
	// LogFile is the log destination; "-" means stderr.
	LogFile string

	AuditInterval time.Duration

	// EngineCommand is the proxy engine argv. Empty disables connect.
	EngineCommand []string

	// SeedOnEmpty loads the demo groups into an empty store.
	SeedOnEmpty bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() (*Config, error) {
	dbPath, err := paths.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	logPath, err := paths.LogPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log path: %w", err)
	}
	return &Config{
		DBPath:        dbPath,
		Driver:        sqlite.DriverCGO,
		LogFile:       logPath,
		AuditInterval: 5 * time.Minute,
	}, nil
}

// LoadConfig layers an optional .env file and RELAYCONF_* variables over the
// defaults. Variables already set in the environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	if envFile == "" {
		if envFile, err = paths.EnvFile(); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg.DBPath = getenv(EnvDBPath, cfg.DBPath)
	cfg.Driver = getenv(EnvDriver, cfg.Driver)
	cfg.LogLevel = getenv(EnvLogLevel, cfg.LogLevel)
	cfg.LogFile = getenv(EnvLogFile, cfg.LogFile)
	if v := os.Getenv(EnvAuditInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvAuditInterval, err)
		}
		cfg.AuditInterval = d
	}
	if v := os.Getenv(EnvEngine); v != "" {
		cfg.EngineCommand = strings.Fields(v)
	}
	if v := os.Getenv(EnvSeedOnEmpty); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSeedOnEmpty, err)
		}
		cfg.SeedOnEmpty = b
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	switch c.Driver {
	case sqlite.DriverCGO, sqlite.DriverPure:
	default:
		return fmt.Errorf("unsupported driver %q (use %s or %s)", c.Driver, sqlite.DriverCGO, sqlite.DriverPure)
	}
	if c.AuditInterval <= 0 {
		return errors.New("audit interval must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
