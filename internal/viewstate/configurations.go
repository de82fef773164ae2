package viewstate

import (
	"context"
	"sync"

	"relayconf/internal/logging"
	"relayconf/internal/ordering"
	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
)

// ConfigurationList backs the screen that lists one group's configurations.
// It owns the reorder session and with it the pending-delete set.
type ConfigurationList struct {
	groups  *repository.GroupRepository
	configs *repository.ConfigurationRepository
	log     *logging.Logger

	mu       sync.Mutex
	subs     *subscriptions
	groupID  int64
	group    *models.Group
	session  *ordering.Session
	listener ordering.Listener
	onChange func()
	closed   bool
}

// NewConfigurationList focuses groupID. A zero groupID starts on a group that
// does not exist yet; SaveGroup creates it. onChange is called after every
// snapshot that changed what the screen shows.
func NewConfigurationList(groups *repository.GroupRepository, configs *repository.ConfigurationRepository, groupID int64, logger *logging.Logger, onChange func()) *ConfigurationList {
	if logger == nil {
		logger = logging.Discard()
	}
	l := &ConfigurationList{
		groups:   groups,
		configs:  configs,
		log:      logger,
		onChange: onChange,
	}
	l.focus(groupID)
	return l
}

// focus must be called with l.mu held or before l is shared.
func (l *ConfigurationList) focus(groupID int64) {
	if l.subs != nil {
		l.subs.cancel()
	}
	if l.session != nil {
		l.session.Close()
	}

	l.groupID = groupID
	l.group = nil
	l.session = ordering.NewSession(groupID, nil)
	l.session.SetListener(l.listener)
	l.subs = &subscriptions{}
	if groupID == 0 {
		return
	}

	session, subs := l.session, l.subs
	subs.add(l.groups.ObserveGroup(groupID, func(g *models.Group) {
		l.mu.Lock()
		if l.subs != subs {
			l.mu.Unlock()
			return
		}
		l.group = g
		fn := l.onChange
		l.mu.Unlock()
		if fn != nil {
			fn()
		}
	}))
	subs.add(l.configs.ObserveForGroup(groupID, func(configs []*models.Configuration) {
		if !session.Reset(configs) {
			return
		}
		l.mu.Lock()
		fn := l.onChange
		current := l.subs == subs
		l.mu.Unlock()
		if current && fn != nil {
			fn()
		}
	}))
}

// Focus commits pending edits and switches the screen to another group.
func (l *ConfigurationList) Focus(groupID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || groupID == l.groupID {
		return
	}
	l.commit()
	l.focus(groupID)
}

// GroupID returns the focused group key, 0 for an unsaved group.
func (l *ConfigurationList) GroupID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.groupID
}

// Group returns the focused group as last observed, or nil.
func (l *ConfigurationList) Group() *models.Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.group.Clone()
}

func (l *ConfigurationList) current() *ordering.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// SetListener forwards working-list notifications to the view.
func (l *ConfigurationList) SetListener(listener ordering.Listener) {
	l.mu.Lock()
	l.listener = listener
	l.session.SetListener(listener)
	l.mu.Unlock()
}

// Items returns the working list in display order.
func (l *ConfigurationList) Items() []*models.Configuration { return l.current().Items() }

// Pending returns the configurations swiped away but not yet deleted.
func (l *ConfigurationList) Pending() []*models.Configuration { return l.current().Pending() }

// WillDeleteCount is the size of the pending-delete set.
func (l *ConfigurationList) WillDeleteCount() int { return len(l.current().Pending()) }

// Dirty reports whether there are uncommitted reorders or deletions.
func (l *ConfigurationList) Dirty() bool { return l.current().Dirty() }

// CanUndo reports whether a swipe can be undone.
func (l *ConfigurationList) CanUndo() bool { return l.current().CanUndo() }

// Move reorders the working list.
func (l *ConfigurationList) Move(from, to int) error { return l.current().Move(from, to) }

// SwipeDelete moves one item into the pending-delete set.
func (l *ConfigurationList) SwipeDelete(index int) error { return l.current().SwipeDelete(index) }

// Undo restores the last swiped item.
func (l *ConfigurationList) Undo() error { return l.current().Undo() }

// Commit persists the working order and pending deletions. When the group
// changed underneath and the write is refused, the list reloads from the
// store.
func (l *ConfigurationList) Commit() (*repository.Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.session.Commit(l.configs)
	if t != nil {
		go l.resyncOnFailure(t, l.session)
	}
	return t, err
}

func (l *ConfigurationList) commit() {
	if l.session == nil || !l.session.Dirty() {
		return
	}
	t, err := l.session.Commit(l.configs)
	if err != nil {
		l.log.Errorf("commit order of group %d: %v", l.groupID, err)
		return
	}
	if t != nil {
		go l.resyncOnFailure(t, l.session)
	}
}

// resyncOnFailure re-reads the group after a refused commit. A failed write
// publishes no snapshot, so the working list would keep the rejected order.
func (l *ConfigurationList) resyncOnFailure(t *repository.Ticket, session *ordering.Session) {
	err := t.Wait(context.Background())
	if err == nil {
		return
	}
	l.mu.Lock()
	l.log.Warnf("commit order of group %d refused: %v", l.groupID, err)
	if l.closed || l.session != session || session.Dirty() {
		l.mu.Unlock()
		return
	}
	l.focus(l.groupID)
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SaveGroup renames the focused group, or creates it when the screen was
// opened for a new group. A created group becomes the focus once its insert
// has run.
func (l *ConfigurationList) SaveGroup(name string) (*repository.Ticket, error) {
	l.mu.Lock()
	id := l.groupID
	l.mu.Unlock()

	if id != 0 {
		return l.groups.Update(&models.Group{ID: id, Name: name})
	}
	t, err := l.groups.Insert(&models.Group{Name: name})
	if err != nil {
		return nil, err
	}
	go func() {
		if t.Wait(context.Background()) == nil {
			l.Focus(t.ID())
		}
	}()
	return t, nil
}

// DeleteGroup deletes the focused group and drops any pending edits.
func (l *ConfigurationList) DeleteGroup() (*repository.Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.groupID == 0 {
		return nil, nil
	}
	t, err := l.groups.Delete(&models.Group{ID: l.groupID})
	if err != nil {
		return nil, err
	}
	l.focus(0)
	return t, nil
}

// Close commits pending edits, as the screen is ending, and cancels the
// screen's subscriptions. Queued writes still run.
func (l *ConfigurationList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.commit()
	l.subs.cancel()
	l.session.Close()
	l.onChange = nil
}
