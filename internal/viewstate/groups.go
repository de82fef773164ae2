// Package viewstate holds per-screen state between the observable store and
// the presentation layer. Coordinators never touch the store themselves, and
// each is discarded with its screen through Close.
package viewstate

import (
	"sync"

	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
)

// subscriptions cancels a screen's live queries together.
type subscriptions struct {
	mu   sync.Mutex
	subs []repository.Subscription
}

func (s *subscriptions) add(sub repository.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

func (s *subscriptions) cancel() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}

// GroupList backs the group overview screen.
type GroupList struct {
	groups *repository.GroupRepository
	subs   subscriptions

	mu       sync.Mutex
	snapshot []*models.Group
	onChange func([]*models.Group)
}

// NewGroupList subscribes to every group. onChange, if set, receives each
// new snapshot on a background goroutine.
func NewGroupList(groups *repository.GroupRepository, onChange func([]*models.Group)) *GroupList {
	l := &GroupList{groups: groups, onChange: onChange}
	l.subs.add(groups.ObserveAll(l.update))
	return l
}

func (l *GroupList) update(groups []*models.Group) {
	l.mu.Lock()
	l.snapshot = groups
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn(models.CloneGroups(groups))
	}
}

// Groups returns the latest snapshot, ordered by name.
func (l *GroupList) Groups() []*models.Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.CloneGroups(l.snapshot)
}

// Active returns the active group from the latest snapshot, or nil.
func (l *GroupList) Active() *models.Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.snapshot {
		if g.Active {
			return g.Clone()
		}
	}
	return nil
}

// Insert creates a group named name.
func (l *GroupList) Insert(name string) (*repository.Ticket, error) {
	return l.groups.Insert(&models.Group{Name: name})
}

// Rename changes the name of group.
func (l *GroupList) Rename(group *models.Group, name string) (*repository.Ticket, error) {
	g := group.Clone()
	g.Name = name
	return l.groups.Update(g)
}

// Delete removes the groups and their configurations.
func (l *GroupList) Delete(groups ...*models.Group) (*repository.Ticket, error) {
	return l.groups.Delete(groups...)
}

// SetActive activates or deactivates group.
func (l *GroupList) SetActive(group *models.Group, active bool) (*repository.Ticket, error) {
	return l.groups.SetActive(group, active)
}

// Toggle flips the active flag of group.
func (l *GroupList) Toggle(group *models.Group) (*repository.Ticket, error) {
	return l.groups.SetActive(group, !group.Active)
}

// Close cancels the screen's subscriptions.
func (l *GroupList) Close() {
	l.mu.Lock()
	l.onChange = nil
	l.mu.Unlock()
	l.subs.cancel()
}
