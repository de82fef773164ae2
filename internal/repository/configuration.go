package repository

import (
	"context"
	"errors"
	"fmt"

	"relayconf/internal/logging"
	"relayconf/internal/storage"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// ConfigurationRepository serializes configuration mutations onto the
// dispatcher shared with GroupRepository, so reads of the derived active
// configuration always see the latest group activation.
type ConfigurationRepository struct {
	store storage.Storage
	d     *Dispatcher
	log   *logging.Logger
}

func NewConfigurationRepository(store storage.Storage, d *Dispatcher, logger *logging.Logger) *ConfigurationRepository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ConfigurationRepository{store: store, d: d, log: logger}
}

// Insert appends config to the end of its group. The priority is counted and
// written in one job so concurrent inserts never share a rank.
func (r *ConfigurationRepository) Insert(config *models.Configuration) (*Ticket, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config.Clone()
	c.ID = 0

	return r.d.Submit("insert configuration "+c.Name, func(ctx context.Context) (int64, error) {
		return r.insert(ctx, c)
	})
}

func (r *ConfigurationRepository) insert(ctx context.Context, c *models.Configuration) (int64, error) {
	if _, err := r.store.GetGroup(ctx, c.GroupID); err != nil {
		return 0, &pkgerrors.PersistenceError{Op: "insert configuration", Err: err}
	}
	n, err := r.store.CountConfigurationsByGroup(ctx, c.GroupID)
	if err != nil {
		return 0, &pkgerrors.PersistenceError{Op: "count configurations", Err: err}
	}
	c.Priority = n + 1
	if err := r.store.CreateConfiguration(ctx, c); err != nil {
		return 0, &pkgerrors.PersistenceError{Op: "insert configuration", Err: err}
	}
	r.log.Debugf("inserted configuration %d %q at priority %d in group %d", c.ID, c.Name, c.Priority, c.GroupID)
	return c.ID, nil
}

// InsertOrUpdate inserts config when it has no key yet and updates it
// otherwise. Updates keep the stored priority.
func (r *ConfigurationRepository) InsertOrUpdate(config *models.Configuration) (*Ticket, error) {
	if config.ID == 0 {
		return r.Insert(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config.Clone()
	return r.d.Submit(fmt.Sprintf("edit configuration %d", c.ID), func(ctx context.Context) (int64, error) {
		stored, err := r.store.GetConfiguration(ctx, c.ID)
		if errors.Is(err, pkgerrors.ErrConfigurationNotFound) {
			return c.ID, nil
		}
		if err != nil {
			return c.ID, &pkgerrors.PersistenceError{Op: "edit configuration", Err: err}
		}
		c.Priority = stored.Priority
		if err := r.store.UpdateConfigurations(ctx, []*models.Configuration{c}); err != nil {
			return c.ID, &pkgerrors.PersistenceError{Op: "edit configuration", Err: err}
		}
		return c.ID, nil
	})
}

// Update writes the batch in one store call. Missing keys are skipped.
func (r *ConfigurationRepository) Update(configs ...*models.Configuration) (*Ticket, error) {
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if c.Priority < 0 {
			return nil, &pkgerrors.ValidationError{Entity: "configuration", Field: "priority", Reason: "must not be negative"}
		}
	}
	batch := models.CloneConfigurations(configs)
	return r.d.Submit(fmt.Sprintf("update %d configurations", len(batch)), func(ctx context.Context) (int64, error) {
		if err := r.store.UpdateConfigurations(ctx, batch); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: "update configurations", Err: err}
		}
		return 0, nil
	})
}

// Delete removes the configurations in one store call.
func (r *ConfigurationRepository) Delete(configs ...*models.Configuration) (*Ticket, error) {
	ids := make([]int64, 0, len(configs))
	for _, c := range configs {
		if c.ID != 0 {
			ids = append(ids, c.ID)
		}
	}
	return r.d.Submit(fmt.Sprintf("delete %d configurations", len(ids)), func(ctx context.Context) (int64, error) {
		if err := r.store.DeleteConfigurations(ctx, ids); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: "delete configurations", Err: err}
		}
		return 0, nil
	})
}

// Reorder stores order as the group's ranking and deletes deletes, in one
// job and one store call. The job re-reads the group first: when the stored
// rows are not exactly order plus deletes, the group changed since the
// caller read it and the job aborts with a ConsistencyViolation, writing
// nothing.
func (r *ConfigurationRepository) Reorder(groupID int64, order, deletes []*models.Configuration) (*Ticket, error) {
	const op = "reorder configurations"

	want := make(map[int64]bool, len(order)+len(deletes))
	for i, c := range order {
		if c.Priority != i+1 {
			return nil, &pkgerrors.ConsistencyViolation{
				Op:     op,
				Detail: fmt.Sprintf("configuration %d at position %d has priority %d", c.ID, i+1, c.Priority),
			}
		}
	}
	for _, c := range append(models.CloneConfigurations(order), deletes...) {
		if c.ID == 0 || want[c.ID] {
			return nil, &pkgerrors.ConsistencyViolation{Op: op, Detail: fmt.Sprintf("configuration %d is unsaved or listed twice", c.ID)}
		}
		want[c.ID] = true
	}

	batch := models.CloneConfigurations(order)
	ids := make([]int64, len(deletes))
	for i, c := range deletes {
		ids[i] = c.ID
	}

	return r.d.Submit(fmt.Sprintf("reorder group %d", groupID), func(ctx context.Context) (int64, error) {
		stored, err := r.store.GetConfigurationsByGroup(ctx, groupID)
		if err != nil {
			return 0, &pkgerrors.PersistenceError{Op: op, Err: err}
		}
		if err := sameMembers(groupID, stored, want); err != nil {
			return 0, err
		}
		if err := r.store.ReorderConfigurations(ctx, groupID, batch, ids); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: op, Err: err}
		}
		r.log.Debugf("reordered group %d: %d kept, %d deleted", groupID, len(batch), len(ids))
		return 0, nil
	})
}

// Remove deletes config and renumbers the rest of its group 1..N, reading
// the group inside the job so concurrent inserts are included.
func (r *ConfigurationRepository) Remove(config *models.Configuration) (*Ticket, error) {
	if config.ID == 0 {
		return nil, &pkgerrors.ValidationError{Entity: "configuration", Field: "id", Reason: "is required"}
	}
	id := config.ID
	return r.d.Submit(fmt.Sprintf("remove configuration %d", id), func(ctx context.Context) (int64, error) {
		c, err := r.store.GetConfiguration(ctx, id)
		if errors.Is(err, pkgerrors.ErrConfigurationNotFound) {
			return id, nil
		}
		if err != nil {
			return id, &pkgerrors.PersistenceError{Op: "remove configuration", Err: err}
		}
		siblings, err := r.store.GetConfigurationsByGroup(ctx, c.GroupID)
		if err != nil {
			return id, &pkgerrors.PersistenceError{Op: "remove configuration", Err: err}
		}
		order := make([]*models.Configuration, 0, len(siblings))
		for _, s := range siblings {
			if s.ID == id {
				continue
			}
			s.Priority = len(order) + 1
			order = append(order, s)
		}
		if err := r.store.ReorderConfigurations(ctx, c.GroupID, order, []int64{id}); err != nil {
			return id, &pkgerrors.PersistenceError{Op: "remove configuration", Err: err}
		}
		return id, nil
	})
}

func sameMembers(groupID int64, stored []*models.Configuration, want map[int64]bool) error {
	var added, missing []int64
	have := make(map[int64]bool, len(stored))
	for _, c := range stored {
		have[c.ID] = true
		if !want[c.ID] {
			added = append(added, c.ID)
		}
	}
	for id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(added) == 0 && len(missing) == 0 {
		return nil
	}
	return &pkgerrors.ConsistencyViolation{
		Op:     "reorder configurations",
		Detail: fmt.Sprintf("group %d changed since it was read (new %v, gone %v)", groupID, added, missing),
	}
}

// ObserveForGroup pushes the group's configurations, ascending by priority.
func (r *ConfigurationRepository) ObserveForGroup(groupID int64, fn func([]*models.Configuration)) Subscription {
	return observe(r.d, fmt.Sprintf("configurations of group %d", groupID), func(ctx context.Context) ([]*models.Configuration, error) {
		return r.store.GetConfigurationsByGroup(ctx, groupID)
	}, fn)
}

// ObserveActive pushes the priority-1 configuration of the active group, or
// nil when there is none.
func (r *ConfigurationRepository) ObserveActive(fn func(*models.Configuration)) Subscription {
	return observe(r.d, "active configuration", r.store.GetActiveConfiguration, fn)
}

// ObserveConfiguration pushes one configuration, or nil once it is gone.
func (r *ConfigurationRepository) ObserveConfiguration(id int64, fn func(*models.Configuration)) Subscription {
	return observe(r.d, fmt.Sprintf("configuration %d", id), func(ctx context.Context) (*models.Configuration, error) {
		return r.get(ctx, id)
	}, fn)
}

// GetActive derives the active configuration from the store on every call.
func (r *ConfigurationRepository) GetActive(ctx context.Context) (*models.Configuration, error) {
	return r.store.GetActiveConfiguration(ctx)
}

// ForGroup reads the group's configurations directly.
func (r *ConfigurationRepository) ForGroup(ctx context.Context, groupID int64) ([]*models.Configuration, error) {
	return r.store.GetConfigurationsByGroup(ctx, groupID)
}

// Get reads one configuration directly.
func (r *ConfigurationRepository) Get(ctx context.Context, id int64) (*models.Configuration, error) {
	return r.store.GetConfiguration(ctx, id)
}

// List reads every configuration, ordered by name.
func (r *ConfigurationRepository) List(ctx context.Context) ([]*models.Configuration, error) {
	return r.store.GetAllConfigurations(ctx)
}

func (r *ConfigurationRepository) get(ctx context.Context, id int64) (*models.Configuration, error) {
	c, err := r.store.GetConfiguration(ctx, id)
	if errors.Is(err, pkgerrors.ErrConfigurationNotFound) {
		return nil, nil
	}
	return c, err
}
