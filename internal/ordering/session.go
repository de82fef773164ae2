// Package ordering keeps an in-memory working list of one group's
// configurations consistent with drag and swipe gestures, and reconciles it
// into the store on commit.
package ordering

import (
	"fmt"
	"sync"

	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// Listener receives notifications about working-list changes so a view can
// animate them. Calls are made without the session lock held.
type Listener interface {
	ItemMoved(from, to int)
	ItemRemoved(index int)
	ItemInserted(index int)
}

// Committer persists a commit plan in one serialized job that checks the
// group still holds exactly the planned rows. ConfigurationRepository
// satisfies it.
type Committer interface {
	Reorder(groupID int64, order, deletes []*models.Configuration) (*repository.Ticket, error)
}

type swipe struct {
	item  *models.Configuration
	index int
}

// Session is one interactive reorder session over a group's working list.
// Nothing touches the store until Commit.
type Session struct {
	mu       sync.Mutex
	groupID  int64
	items    []*models.Configuration
	pending  []*models.Configuration
	undo     []swipe
	dirty    bool
	closed   bool
	listener Listener
}

// NewSession starts a session over a copy of configs, which must be in
// display order.
func NewSession(groupID int64, configs []*models.Configuration) *Session {
	return &Session{
		groupID: groupID,
		items:   models.CloneConfigurations(configs),
	}
}

// SetListener replaces the change listener. A nil listener disables
// notifications.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// GroupID returns the group the session edits.
func (s *Session) GroupID() int64 { return s.groupID }

// Items returns a copy of the working list in display order.
func (s *Session) Items() []*models.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneConfigurations(s.items)
}

// Pending returns a copy of the pending-delete set in swipe order.
func (s *Session) Pending() []*models.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneConfigurations(s.pending)
}

// Len returns the working list length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dirty reports whether the session holds uncommitted edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// CanUndo reports whether a swipe can be undone.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// Move removes the item at from and inserts it at to.
func (s *Session) Move(from, to int) error {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.checkIndex(from); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.checkIndex(to); err != nil {
		s.mu.Unlock()
		return err
	}
	if from == to {
		s.mu.Unlock()
		return nil
	}
	item := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = insertAt(s.items, to, item)
	s.dirty = true
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l.ItemMoved(from, to)
	}
	return nil
}

// SwipeDelete moves the item at index into the pending-delete set.
func (s *Session) SwipeDelete(index int) error {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	item := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.pending = append(s.pending, item)
	s.undo = append(s.undo, swipe{item: item, index: index})
	s.dirty = true
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l.ItemRemoved(index)
	}
	return nil
}

// Undo reverts the most recent swipe. The item goes back to the index it was
// swiped from, clamped to the current list length.
func (s *Session) Undo() error {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return pkgerrors.ErrNothingToUndo
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	for i, p := range s.pending {
		if p == last.item {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	index := min(last.index, len(s.items))
	s.items = insertAt(s.items, index, last.item)
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l.ItemInserted(index)
	}
	return nil
}

// Reset replaces the working list with a fresh store snapshot. It is ignored
// while the session holds uncommitted edits, and reports whether it applied.
func (s *Session) Reset(configs []*models.Configuration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dirty {
		return false
	}
	s.items = models.CloneConfigurations(configs)
	return true
}

// Close ends the session without committing.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.listener = nil
	s.mu.Unlock()
}

// Plan is the set of writes a commit performs.
type Plan struct {
	Update []*models.Configuration // renumbered survivors, display order
	Delete []*models.Configuration
}

// Empty reports whether the plan writes nothing.
func (p *Plan) Empty() bool {
	return len(p.Update) == 0 && len(p.Delete) == 0
}

// Plan renumbers the survivors 1..N in working-list order and checks the
// result. A ConsistencyViolation means nothing may be written.
func (s *Session) Plan() (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan()
}

func (s *Session) plan() (*Plan, error) {
	const op = "commit order"

	deleted := make(map[int64]bool, len(s.pending))
	for _, p := range s.pending {
		deleted[p.ID] = true
	}

	p := &Plan{Delete: models.CloneConfigurations(s.pending)}
	seen := make(map[int64]bool, len(s.items))
	priorities := make(map[int]bool, len(s.items))
	next := 1
	for _, item := range s.items {
		if deleted[item.ID] {
			continue
		}
		if item.ID == 0 {
			return nil, &pkgerrors.ConsistencyViolation{Op: op, Detail: fmt.Sprintf("%q was never persisted", item.Name)}
		}
		if seen[item.ID] {
			return nil, &pkgerrors.ConsistencyViolation{Op: op, Detail: fmt.Sprintf("configuration %d appears twice", item.ID)}
		}
		if item.GroupID != s.groupID {
			return nil, &pkgerrors.ConsistencyViolation{
				Op:     op,
				Detail: fmt.Sprintf("configuration %d belongs to group %d, not %d", item.ID, item.GroupID, s.groupID),
			}
		}
		seen[item.ID] = true

		c := item.Clone()
		c.Priority = next
		next++
		if c.Priority <= 0 || priorities[c.Priority] {
			return nil, &pkgerrors.ConsistencyViolation{Op: op, Detail: fmt.Sprintf("priority %d is not unique and positive", c.Priority)}
		}
		priorities[c.Priority] = true
		p.Update = append(p.Update, c)
	}
	return p, nil
}

// Commit hands the renumbered survivors and the pending set to c in one
// call, then clears the pending set. An empty plan submits nothing and
// returns a nil ticket.
//
// The store is checked when the job runs: if the group gained or lost rows
// since the working list was read, the ticket fails with a
// ConsistencyViolation and nothing is written.
func (s *Session) Commit(c Committer) (*repository.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.ErrSessionClosed
	}

	p, err := s.plan()
	if err != nil {
		return nil, err
	}

	var t *repository.Ticket
	if !p.Empty() {
		if t, err = c.Reorder(s.groupID, p.Update, p.Delete); err != nil {
			return nil, err
		}
	}

	s.items = models.CloneConfigurations(p.Update)
	s.pending = nil
	s.undo = nil
	s.dirty = false
	return t, nil
}

func (s *Session) usable() error {
	if s.closed {
		return pkgerrors.ErrSessionClosed
	}
	return nil
}

func (s *Session) checkIndex(i int) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("index %d of %d: %w", i, len(s.items), pkgerrors.ErrIndexOutOfRange)
	}
	return nil
}

func insertAt(items []*models.Configuration, i int, item *models.Configuration) []*models.Configuration {
	items = append(items, nil)
	copy(items[i+1:], items[i:])
	items[i] = item
	return items
}
