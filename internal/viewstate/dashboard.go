package viewstate

import (
	"context"
	"sync"

	"relayconf/internal/core"
	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// Dashboard shows the active group and configuration and drives the engine.
type Dashboard struct {
	configs *repository.ConfigurationRepository
	engine  *core.Manager
	subs    subscriptions

	mu       sync.Mutex
	group    *models.Group
	config   *models.Configuration
	onChange func()
}

// NewDashboard subscribes to the active group and configuration. engine may
// be nil when no engine is configured.
func NewDashboard(groups *repository.GroupRepository, configs *repository.ConfigurationRepository, engine *core.Manager, onChange func()) *Dashboard {
	d := &Dashboard{configs: configs, engine: engine, onChange: onChange}
	d.subs.add(groups.ObserveActive(func(g *models.Group) {
		d.set(func() { d.group = g })
	}))
	d.subs.add(configs.ObserveActive(func(c *models.Configuration) {
		d.set(func() { d.config = c })
	}))
	return d
}

func (d *Dashboard) set(apply func()) {
	d.mu.Lock()
	apply()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ActiveGroup returns the active group, or nil.
func (d *Dashboard) ActiveGroup() *models.Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.group.Clone()
}

// ActiveConfiguration returns the derived active configuration, or nil.
func (d *Dashboard) ActiveConfiguration() *models.Configuration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config.Clone()
}

// HasEngine reports whether connect and disconnect are available.
func (d *Dashboard) HasEngine() bool { return d.engine != nil }

// Status returns the engine status, or nil without an engine.
func (d *Dashboard) Status() *core.Status {
	if d.engine == nil {
		return nil
	}
	return d.engine.GetStatus()
}

// Connect starts the engine with the active configuration, re-derived from
// the store rather than taken from the last snapshot.
func (d *Dashboard) Connect(ctx context.Context) error {
	if d.engine == nil {
		return pkgerrors.ErrNoEngine
	}
	return d.engine.Connect(ctx, d.configs)
}

// Disconnect stops the engine.
func (d *Dashboard) Disconnect(ctx context.Context) error {
	if d.engine == nil {
		return pkgerrors.ErrNoEngine
	}
	return d.engine.Stop(ctx)
}

// Close cancels the screen's subscriptions. The engine keeps running.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.onChange = nil
	d.mu.Unlock()
	d.subs.cancel()
}
