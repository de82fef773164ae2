package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"relayconf/internal/core"
	"relayconf/internal/logging"
	"relayconf/internal/repository"
	"relayconf/internal/storage"
	"relayconf/internal/storage/sqlite"
)

// App represents the application context. The store is opened once here and
// injected into everything that needs it.
type App struct {
	Config  *Config
	Storage storage.Storage
	Log     *logging.Logger

	Dispatcher *repository.Dispatcher
	Groups     *repository.GroupRepository
	Configs    *repository.ConfigurationRepository

	// Engine is nil when no engine command is configured.
	Engine *core.Manager
}

// New creates a new application instance
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger, err := openLogger(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.SeedOnEmpty {
		if n, err := store.CountGroups(ctx); err == nil && n == 0 {
			if err := store.Seed(ctx); err != nil {
				logger.Warnf("seeding empty store failed: %v", err)
			} else {
				logger.Infof("seeded empty store with demo groups")
			}
		}
	}

	d := repository.NewDispatcher(logger)
	a := &App{
		Config:     cfg,
		Storage:    store,
		Log:        logger,
		Dispatcher: d,
		Groups:     repository.NewGroupRepository(store, d, logger),
		Configs:    repository.NewConfigurationRepository(store, d, logger),
	}

	if len(cfg.EngineCommand) > 0 {
		eng, err := core.NewProcessEngine(cfg.EngineCommand, "")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize engine: %w", err)
		}
		a.Engine = core.NewManager(eng, logger)
	}

	return a, nil
}

func openLogger(ctx context.Context, cfg *Config, store storage.Storage) (*logging.Logger, error) {
	levelName := cfg.LogLevel
	if levelName == "" {
		levelName, _ = store.GetSetting(ctx, "log_level")
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		level = logging.LevelInfo
	}

	if cfg.LogFile == "" || cfg.LogFile == "-" {
		return logging.New(os.Stderr, level), nil
	}
	logger, err := logging.NewFile(cfg.LogFile, level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}

// DefaultPorts returns the relay and SOCKS ports suggested for new
// configurations, from the settings table.
func (a *App) DefaultPorts(ctx context.Context) (relay, socks int) {
	relay, socks = 7000, 8090
	if v, err := a.Storage.GetSetting(ctx, "default_relay_port"); err == nil {
		if p, err := strconv.Atoi(v); err == nil {
			relay = p
		}
	}
	if v, err := a.Storage.GetSetting(ctx, "default_socks_port"); err == nil {
		if p, err := strconv.Atoi(v); err == nil {
			socks = p
		}
	}
	return relay, socks
}

// Close drains queued writes, then releases the store and the log.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	var err error
	if a.Storage != nil {
		err = a.Storage.Close()
	}
	if a.Log != nil {
		a.Log.Close()
	}
	return err
}
