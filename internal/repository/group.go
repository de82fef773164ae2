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

// GroupRepository serializes group mutations onto the shared dispatcher and
// exposes live group queries.
type GroupRepository struct {
	store storage.Storage
	d     *Dispatcher
	log   *logging.Logger
}

// NewGroupRepository creates a repository over store. All writes run on d.
func NewGroupRepository(store storage.Storage, d *Dispatcher, logger *logging.Logger) *GroupRepository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &GroupRepository{store: store, d: d, log: logger}
}

// Insert persists a new group. The group is created inactive and, if it was
// constructed active, activated in the same job.
func (r *GroupRepository) Insert(group *models.Group) (*Ticket, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}
	g := group.Clone()
	g.ID = 0

	return r.d.Submit("insert group "+g.Name, func(ctx context.Context) (int64, error) {
		wantActive := g.Active
		g.Active = false
		if err := r.store.CreateGroup(ctx, g); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: "insert group", Err: err}
		}
		r.log.Debugf("inserted group %d %q", g.ID, g.Name)
		if wantActive {
			if err := r.activate(ctx, g.ID); err != nil {
				return g.ID, err
			}
		}
		return g.ID, nil
	})
}

// SetActive flags group as the active one, clearing whichever group held the
// flag before, or clears the flag on group when active is false.
func (r *GroupRepository) SetActive(group *models.Group, active bool) (*Ticket, error) {
	if group == nil || group.ID == 0 {
		return nil, &pkgerrors.ValidationError{Entity: "group", Field: "id", Reason: "is required"}
	}
	id := group.ID

	if !active {
		return r.d.Submit(fmt.Sprintf("deactivate group %d", id), func(ctx context.Context) (int64, error) {
			if err := r.store.SetGroupActive(ctx, id, false); err != nil {
				return id, &pkgerrors.PersistenceError{Op: "deactivate group", Err: err}
			}
			return id, nil
		})
	}
	return r.d.Submit(fmt.Sprintf("activate group %d", id), func(ctx context.Context) (int64, error) {
		return id, r.activate(ctx, id)
	})
}

// activate runs inside a dispatcher job, so no other mutation interleaves
// between the read and the two writes.
// TODO: collapse the clear and set into one store transaction once Storage
// exposes a swap call.
func (r *GroupRepository) activate(ctx context.Context, id int64) error {
	current, err := r.store.GetActiveGroups(ctx)
	if err != nil {
		return &pkgerrors.PersistenceError{Op: "activate group", Err: err}
	}
	if len(current) > 1 {
		return &pkgerrors.ConsistencyViolation{
			Op:     "activate group",
			Detail: fmt.Sprintf("%d groups are flagged active", len(current)),
		}
	}
	if _, err := r.store.GetGroup(ctx, id); err != nil {
		return &pkgerrors.PersistenceError{Op: "activate group", Err: err}
	}

	if len(current) == 1 {
		if current[0].ID == id {
			return nil
		}
		if err := r.store.SetGroupActive(ctx, current[0].ID, false); err != nil {
			return &pkgerrors.PersistenceError{Op: "clear active group", Err: err}
		}
	}
	if err := r.store.SetGroupActive(ctx, id, true); err != nil {
		return &pkgerrors.PersistenceError{Op: "activate group", Err: err}
	}
	r.log.Infof("group %d is now active", id)
	return nil
}

// Update renames the given groups. The active flag is left alone; use
// SetActive for that.
func (r *GroupRepository) Update(groups ...*models.Group) (*Ticket, error) {
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	batch := models.CloneGroups(groups)
	return r.d.Submit(fmt.Sprintf("update %d groups", len(batch)), func(ctx context.Context) (int64, error) {
		if err := r.store.UpdateGroups(ctx, batch); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: "update groups", Err: err}
		}
		return 0, nil
	})
}

// Delete removes the groups and their configurations. Deleting the active
// group leaves no group active.
func (r *GroupRepository) Delete(groups ...*models.Group) (*Ticket, error) {
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		if g.ID != 0 {
			ids = append(ids, g.ID)
		}
	}
	return r.d.Submit(fmt.Sprintf("delete %d groups", len(ids)), func(ctx context.Context) (int64, error) {
		if err := r.store.DeleteGroups(ctx, ids); err != nil {
			return 0, &pkgerrors.PersistenceError{Op: "delete groups", Err: err}
		}
		return 0, nil
	})
}

// ObserveAll pushes every group, ordered by name, after each write.
func (r *GroupRepository) ObserveAll(fn func([]*models.Group)) Subscription {
	return observe(r.d, "all groups", r.store.GetAllGroups, fn)
}

// ObserveActive pushes the active group, or nil when none is active.
func (r *GroupRepository) ObserveActive(fn func(*models.Group)) Subscription {
	return observe(r.d, "active group", r.active, fn)
}

// ObserveGroup pushes the group with the given id, or nil once it is gone.
func (r *GroupRepository) ObserveGroup(id int64, fn func(*models.Group)) Subscription {
	return observe(r.d, fmt.Sprintf("group %d", id), func(ctx context.Context) (*models.Group, error) {
		g, err := r.store.GetGroup(ctx, id)
		if errors.Is(err, pkgerrors.ErrGroupNotFound) {
			return nil, nil
		}
		return g, err
	}, fn)
}

func (r *GroupRepository) active(ctx context.Context) (*models.Group, error) {
	groups, err := r.store.GetActiveGroups(ctx)
	if err != nil || len(groups) == 0 {
		return nil, err
	}
	return groups[0], nil
}

// Get reads one group directly.
func (r *GroupRepository) Get(ctx context.Context, id int64) (*models.Group, error) {
	return r.store.GetGroup(ctx, id)
}

// List reads every group directly, ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]*models.Group, error) {
	return r.store.GetAllGroups(ctx)
}

// Active reads the active group directly. It returns nil when none is active.
func (r *GroupRepository) Active(ctx context.Context) (*models.Group, error) {
	return r.active(ctx)
}
