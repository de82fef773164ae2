package viewstate

import (
	"strconv"
	"strings"
	"sync"

	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// Form is the raw text of the add/edit configuration form.
type Form struct {
	Name      string
	Host      string
	RelayPort string
	SocksPort string
}

// ConfigurationEditor backs the add/edit configuration screen.
type ConfigurationEditor struct {
	groups  *repository.GroupRepository
	configs *repository.ConfigurationRepository
	subs    subscriptions

	mu       sync.Mutex
	groupID  int64
	configID int64
	group    *models.Group
	config   *models.Configuration
	onChange func()
}

// NewConfigurationEditor focuses configID inside groupID. A zero configID
// edits a new configuration.
func NewConfigurationEditor(groups *repository.GroupRepository, configs *repository.ConfigurationRepository, groupID, configID int64, onChange func()) *ConfigurationEditor {
	e := &ConfigurationEditor{
		groups:   groups,
		configs:  configs,
		groupID:  groupID,
		configID: configID,
		onChange: onChange,
	}
	e.subs.add(groups.ObserveGroup(groupID, func(g *models.Group) {
		e.set(func() { e.group = g })
	}))
	if configID != 0 {
		e.subs.add(configs.ObserveConfiguration(configID, func(c *models.Configuration) {
			e.set(func() { e.config = c })
		}))
	}
	return e
}

func (e *ConfigurationEditor) set(apply func()) {
	e.mu.Lock()
	apply()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Group returns the owning group as last observed.
func (e *ConfigurationEditor) Group() *models.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.group.Clone()
}

// Configuration returns the edited configuration as last observed, nil for a
// new one or once it has been deleted.
func (e *ConfigurationEditor) Configuration() *models.Configuration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Clone()
}

// IsNew reports whether saving will insert.
func (e *ConfigurationEditor) IsNew() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configID == 0
}

// Form returns the stored values as form text, or defaults for a new entry.
func (e *ConfigurationEditor) Form(defaultRelay, defaultSocks int) Form {
	c := e.Configuration()
	if c == nil {
		return Form{RelayPort: itoa(defaultRelay), SocksPort: itoa(defaultSocks)}
	}
	return Form{Name: c.Name, Host: c.Host, RelayPort: itoa(c.RelayPort), SocksPort: itoa(c.SocksPort)}
}

// Parse converts form text into a configuration for the focused group. Field
// errors come back as ValidationError.
func (e *ConfigurationEditor) Parse(f Form) (*models.Configuration, error) {
	relay, err := models.ParsePort(f.RelayPort)
	if err != nil {
		return nil, withField(err, "relay port")
	}
	socks, err := models.ParsePort(f.SocksPort)
	if err != nil {
		return nil, withField(err, "socks port")
	}

	e.mu.Lock()
	c := &models.Configuration{
		ID:        e.configID,
		Name:      strings.TrimSpace(f.Name),
		Host:      strings.TrimSpace(f.Host),
		RelayPort: relay,
		SocksPort: socks,
		GroupID:   e.groupID,
	}
	if e.config != nil {
		c.Priority = e.config.Priority
	}
	e.mu.Unlock()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save inserts or updates the configuration described by f.
func (e *ConfigurationEditor) Save(f Form) (*repository.Ticket, error) {
	c, err := e.Parse(f)
	if err != nil {
		return nil, err
	}
	return e.configs.InsertOrUpdate(c)
}

// Delete removes the edited configuration and renumbers its siblings. It is
// a no-op for a new one.
func (e *ConfigurationEditor) Delete() (*repository.Ticket, error) {
	e.mu.Lock()
	id := e.configID
	e.mu.Unlock()
	if id == 0 {
		return nil, nil
	}
	return e.configs.Remove(&models.Configuration{ID: id})
}

// Close cancels the screen's subscriptions.
func (e *ConfigurationEditor) Close() {
	e.mu.Lock()
	e.onChange = nil
	e.mu.Unlock()
	e.subs.cancel()
}

func withField(err error, field string) error {
	if v, ok := err.(*pkgerrors.ValidationError); ok {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: field, Reason: v.Reason}
	}
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }
