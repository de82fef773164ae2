package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"relayconf/internal/logging"
	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// followTimeout bounds an engine restart triggered by an active change.
const followTimeout = 10 * time.Second

// ActiveSource derives the active configuration.
// ConfigurationRepository satisfies it.
type ActiveSource interface {
	GetActive(ctx context.Context) (*models.Configuration, error)
	ObserveActive(fn func(*models.Configuration)) repository.Subscription
}

// Manager serializes the engine lifecycle and remembers which configuration
// the engine runs.
type Manager struct {
	engine  Engine
	current *models.Configuration
	log     *logging.Logger
	mu      sync.RWMutex
}

// NewManager creates a new engine manager
func NewManager(engine Engine, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{engine: engine, log: logger}
}

// Start starts the engine with the endpoint of config
func (m *Manager) Start(ctx context.Context, config *models.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine.IsRunning() {
		return pkgerrors.ErrEngineAlreadyRunning
	}
	return m.start(ctx, config)
}

func (m *Manager) start(ctx context.Context, config *models.Configuration) error {
	if config == nil {
		return pkgerrors.ErrNoActiveConfiguration
	}
	if err := m.engine.Start(ctx, config.Endpoint()); err != nil {
		return fmt.Errorf("failed to start engine for %q: %w", config.Name, err)
	}
	m.current = config.Clone()
	m.log.Infof("engine started with %s (%s)", config.Name, config.Endpoint())
	return nil
}

// Stop stops the running engine
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.engine.IsRunning() {
		m.current = nil
		return pkgerrors.ErrEngineNotRunning
	}
	return m.stop(ctx)
}

func (m *Manager) stop(ctx context.Context) error {
	if err := m.engine.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop engine: %w", err)
	}
	m.current = nil
	m.log.Infof("engine stopped")
	return nil
}

// Restart stops a running engine and starts it again on config. A nil
// config is rejected before the running engine is touched.
func (m *Manager) Restart(ctx context.Context, config *models.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.restart(ctx, config)
}

func (m *Manager) restart(ctx context.Context, config *models.Configuration) error {
	if config == nil {
		return pkgerrors.ErrNoActiveConfiguration
	}
	if m.engine.IsRunning() {
		if err := m.stop(ctx); err != nil {
			return err
		}
	}
	return m.start(ctx, config)
}

// Connect starts the engine with the derived active configuration. A
// running engine is restarted on it.
func (m *Manager) Connect(ctx context.Context, source ActiveSource) error {
	active, err := source.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to read active configuration: %w", err)
	}
	return m.Restart(ctx, active)
}

// IsRunning returns whether the engine is currently running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.engine.IsRunning()
}

// GetStatus returns the current status of the engine
func (m *Manager) GetStatus() *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := &Status{Running: m.engine.IsRunning()}
	if m.current != nil {
		status.Configuration = m.current.Clone()
		status.Endpoint = m.current.Endpoint()
	}
	if r, ok := m.engine.(statusReporter); ok && status.Running {
		status.PID = r.PID()
		status.StartedAt = r.StartedAt()
		if !status.StartedAt.IsZero() {
			status.Uptime = time.Since(status.StartedAt)
		}
	}
	return status
}

// Follow keeps a running engine on the active configuration: when the
// derived active configuration changes the engine is restarted with it, and
// when none is left it is stopped. A stopped engine stays stopped.
func (m *Manager) Follow(source ActiveSource) repository.Subscription {
	return source.ObserveActive(m.follow)
}

func (m *Manager) follow(active *models.Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.engine.IsRunning() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), followTimeout)
	defer cancel()

	if active == nil {
		if err := m.stop(ctx); err != nil {
			m.log.Errorf("follow: %v", err)
		}
		return
	}
	if m.current != nil && m.current.ID == active.ID && m.current.Endpoint() == active.Endpoint() {
		return
	}

	m.log.Infof("active configuration is now %s, restarting engine", active.Name)
	if err := m.restart(ctx, active); err != nil {
		m.log.Errorf("follow: %v", err)
	}
}
