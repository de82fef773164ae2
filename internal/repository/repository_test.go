package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"relayconf/internal/storage/models"
	"relayconf/internal/storage/sqlite"
	pkgerrors "relayconf/pkg/errors"
)

type fixture struct {
	t       *testing.T
	path    string
	store   *sqlite.DB
	d       *Dispatcher
	groups  *GroupRepository
	configs *ConfigurationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.db")
	store, err := sqlite.Open(path, sqlite.DriverPure)
	if err != nil {
		t.Fatalf("sqlite.Open() failed: %v", err)
	}
	d := NewDispatcher(nil)
	t.Cleanup(func() {
		d.Close()
		store.Close()
	})
	return &fixture{
		t:       t,
		path:    path,
		store:   store,
		d:       d,
		groups:  NewGroupRepository(store, d, nil),
		configs: NewConfigurationRepository(store, d, nil),
	}
}

// wait takes a command's results directly: f.wait(f.groups.Insert(g)).
func (f *fixture) wait(tk *Ticket, err error) *Ticket {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("command rejected: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tk.Wait(ctx); err != nil {
		f.t.Fatalf("job failed: %v", err)
	}
	return tk
}

// exec runs a statement on a second connection, behind the store's back.
func (f *fixture) exec(query string, args ...interface{}) {
	f.t.Helper()
	db, err := sql.Open(sqlite.DriverPure, f.path)
	if err != nil {
		f.t.Fatalf("sql.Open() failed: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(query, args...); err != nil {
		f.t.Fatalf("exec %q failed: %v", query, err)
	}
}

func (f *fixture) group(t *testing.T, name string) *models.Group {
	t.Helper()
	tk := f.wait(f.groups.Insert(&models.Group{Name: name}))
	return &models.Group{ID: tk.ID(), Name: name}
}

func (f *fixture) config(t *testing.T, groupID int64, name string) *models.Configuration {
	t.Helper()
	c := &models.Configuration{Name: name, Host: "192.168.0.2", RelayPort: 7000, SocksPort: 8090, GroupID: groupID}
	tk := f.wait(f.configs.Insert(c))
	got, err := f.configs.Get(context.Background(), tk.ID())
	if err != nil {
		t.Fatalf("Get(%d) failed: %v", tk.ID(), err)
	}
	return got
}

// recorder collects pushed snapshots and lets a test wait until the latest
// one matches.
type recorder[T any] struct {
	mu   sync.Mutex
	seen []T
	ch   chan struct{}
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{ch: make(chan struct{}, 64)}
}

func (r *recorder[T]) push(v T) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *recorder[T]) waitFor(t *testing.T, match func(T) bool) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.mu.Lock()
		if n := len(r.seen); n > 0 && match(r.seen[n-1]) {
			v := r.seen[n-1]
			r.mu.Unlock()
			return v
		}
		r.mu.Unlock()
		select {
		case <-r.ch:
		case <-deadline:
			var zero T
			t.Fatal("timed out waiting for snapshot")
			return zero
		}
	}
}

func activeCount(groups []*models.Group) int {
	n := 0
	for _, g := range groups {
		if g.Active {
			n++
		}
	}
	return n
}

func TestInsertValidationIsSynchronous(t *testing.T) {
	f := newFixture(t)

	if _, err := f.groups.Insert(&models.Group{Name: "  "}); !pkgerrors.IsValidation(err) {
		t.Errorf("Insert(empty group) = %v, want ValidationError", err)
	}
	bad := &models.Configuration{Name: "R1", Host: "not-an-ip", RelayPort: 7000, SocksPort: 8090, GroupID: 1}
	if _, err := f.configs.Insert(bad); !pkgerrors.IsValidation(err) {
		t.Errorf("Insert(bad host) = %v, want ValidationError", err)
	}
	if _, err := f.groups.SetActive(&models.Group{Name: "unsaved"}, true); !pkgerrors.IsValidation(err) {
		t.Errorf("SetActive(unsaved) = %v, want ValidationError", err)
	}
}

func TestSetActiveSwitchesGroups(t *testing.T) {
	f := newFixture(t)
	g1 := f.group(t, "Home")
	g2 := f.group(t, "Work")

	rec := newRecorder[[]*models.Group]()
	sub := f.groups.ObserveAll(rec.push)
	defer sub.Cancel()

	f.wait(f.groups.SetActive(g1, true))
	f.wait(f.groups.SetActive(g2, true))

	snap := rec.waitFor(t, func(gs []*models.Group) bool {
		return len(gs) == 2 && gs[1].Active
	})
	if snap[0].Name != "Home" || snap[0].Active {
		t.Errorf("Home = %+v, want inactive", snap[0])
	}
	if snap[1].Name != "Work" || !snap[1].Active {
		t.Errorf("Work = %+v, want active", snap[1])
	}
}

func TestSingleActiveGroupUnderConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	groups := []*models.Group{f.group(t, "A"), f.group(t, "B"), f.group(t, "C")}

	var wg sync.WaitGroup
	tickets := make(chan *Ticket, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := f.groups.SetActive(groups[i%3], i%4 != 0)
			if err == nil {
				tickets <- tk
			}
		}(i)
	}
	wg.Wait()
	close(tickets)

	ctx := context.Background()
	for tk := range tickets {
		if err := tk.Wait(ctx); err != nil {
			t.Fatalf("SetActive job failed: %v", err)
		}
		all, err := f.groups.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if n := activeCount(all); n > 1 {
			t.Fatalf("%d groups active, want at most 1", n)
		}
	}
}

func TestActivateAbortsOnConsistencyViolation(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")

	// Drop the index so a broken store can be staged.
	f.exec(`DROP INDEX idx_groups_single_active`)
	a := f.group(t, "A")
	b := f.group(t, "B")
	ctx := context.Background()
	f.store.SetGroupActive(ctx, a.ID, true)
	f.store.SetGroupActive(ctx, b.ID, true)

	tk, err := f.groups.SetActive(g, true)
	if err != nil {
		t.Fatalf("SetActive() rejected: %v", err)
	}
	if err := tk.Wait(ctx); !pkgerrors.IsConsistencyViolation(err) {
		t.Fatalf("SetActive() job = %v, want ConsistencyViolation", err)
	}
	got, _ := f.groups.Get(ctx, g.ID)
	if got.Active {
		t.Error("aborted activation must not write")
	}
}

func TestDeleteActiveGroupLeavesNoneActive(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	f.group(t, "Work")
	f.config(t, g.ID, "R1")
	f.wait(f.groups.SetActive(g, true))

	f.wait(f.groups.Delete(g))

	ctx := context.Background()
	active, err := f.groups.Active(ctx)
	if err != nil || active != nil {
		t.Errorf("Active() = %v, %v; want nil", active, err)
	}
	cfg, err := f.configs.GetActive(ctx)
	if err != nil || cfg != nil {
		t.Errorf("GetActive() = %v, %v; want nil", cfg, err)
	}
}

func TestInsertAssignsNextPriority(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	for _, n := range []string{"R1", "R2", "R3"} {
		f.config(t, g.ID, n)
	}

	var wg sync.WaitGroup
	for _, n := range []string{"R4", "R5"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c := &models.Configuration{Name: name, Host: "10.0.0.4", RelayPort: 7000, SocksPort: 8090, GroupID: g.ID}
			if _, err := f.configs.Insert(c); err != nil {
				t.Errorf("Insert(%s) rejected: %v", name, err)
			}
		}(n)
	}
	wg.Wait()
	if err := f.d.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	configs, err := f.configs.ForGroup(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ForGroup() failed: %v", err)
	}
	if len(configs) != 5 {
		t.Fatalf("got %d configurations, want 5", len(configs))
	}
	for i, c := range configs {
		if c.Priority != i+1 {
			t.Errorf("configs[%d] %s priority = %d, want %d", i, c.Name, c.Priority, i+1)
		}
	}
}

func TestInsertIntoMissingGroupFails(t *testing.T) {
	f := newFixture(t)
	c := &models.Configuration{Name: "R1", Host: "10.0.0.1", RelayPort: 7000, SocksPort: 8090, GroupID: 404}
	tk, err := f.configs.Insert(c)
	if err != nil {
		t.Fatalf("Insert() rejected: %v", err)
	}
	if err := tk.Wait(context.Background()); err == nil {
		t.Fatal("expected persistence error for a missing group")
	}
}

func TestInsertOrUpdateKeepsPriority(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	f.config(t, g.ID, "R1")
	r2 := f.config(t, g.ID, "R2")

	edit := r2.Clone()
	edit.Name = "Relay two"
	edit.Priority = 9
	f.wait(f.configs.InsertOrUpdate(edit))

	got, err := f.configs.Get(context.Background(), r2.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Relay two" || got.Priority != 2 {
		t.Errorf("got %q priority %d, want \"Relay two\" priority 2", got.Name, got.Priority)
	}
}

func priorities(t *testing.T, f *fixture, groupID int64) string {
	t.Helper()
	configs, err := f.configs.ForGroup(context.Background(), groupID)
	if err != nil {
		t.Fatalf("ForGroup() failed: %v", err)
	}
	var parts []string
	for _, c := range configs {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Name, c.Priority))
	}
	return strings.Join(parts, " ")
}

func TestReorderWritesRankingAndDeletes(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	r1 := f.config(t, g.ID, "R1")
	r2 := f.config(t, g.ID, "R2")
	r3 := f.config(t, g.ID, "R3")

	r3.Priority, r2.Priority = 1, 2
	f.wait(f.configs.Reorder(g.ID, []*models.Configuration{r3, r2}, []*models.Configuration{r1}))

	if got := priorities(t, f, g.ID); got != "R3=1 R2=2" {
		t.Errorf("stored = %q, want \"R3=1 R2=2\"", got)
	}
}

func TestReorderRejectsGapsSynchronously(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	r1 := f.config(t, g.ID, "R1")
	r2 := f.config(t, g.ID, "R2")

	r2.Priority = 3
	_, err := f.configs.Reorder(g.ID, []*models.Configuration{r1, r2}, nil)
	if !pkgerrors.IsConsistencyViolation(err) {
		t.Fatalf("Reorder() = %v, want ConsistencyViolation", err)
	}
}

func TestReorderAbortsOnStaleMembership(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	r1 := f.config(t, g.ID, "R1")
	r2 := f.config(t, g.ID, "R2")
	r3 := f.config(t, g.ID, "R3")

	// Read happened before R4 arrived.
	r2.Priority, r3.Priority = 1, 2
	order := []*models.Configuration{r2, r3}
	f.config(t, g.ID, "R4")

	tk, err := f.configs.Reorder(g.ID, order, []*models.Configuration{r1})
	if err != nil {
		t.Fatalf("Reorder() rejected: %v", err)
	}
	if err := tk.Wait(context.Background()); !pkgerrors.IsConsistencyViolation(err) {
		t.Fatalf("Wait() = %v, want ConsistencyViolation", err)
	}
	if got := priorities(t, f, g.ID); got != "R1=1 R2=2 R3=3 R4=4" {
		t.Errorf("stored = %q, want untouched", got)
	}
}

func TestRemoveRenumbersCurrentSiblings(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")
	f.config(t, g.ID, "R1")
	r2 := f.config(t, g.ID, "R2")
	f.config(t, g.ID, "R3")

	// Queued behind an insert the caller never read.
	c := &models.Configuration{Name: "R4", Host: "192.168.0.2", RelayPort: 7000, SocksPort: 8090, GroupID: g.ID}
	if _, err := f.configs.Insert(c); err != nil {
		t.Fatalf("Insert() rejected: %v", err)
	}
	f.wait(f.configs.Remove(r2))

	if got := priorities(t, f, g.ID); got != "R1=1 R3=2 R4=3" {
		t.Errorf("stored = %q, want \"R1=1 R3=2 R4=3\"", got)
	}

	// A second removal of the same row is a no-op.
	f.wait(f.configs.Remove(r2))
	if _, err := f.configs.Remove(&models.Configuration{}); err == nil {
		t.Error("Remove() of an unsaved configuration should be rejected")
	}
}

func TestActiveConfigurationFollowsGroup(t *testing.T) {
	f := newFixture(t)
	home := f.group(t, "Home")
	work := f.group(t, "Work")
	h1 := f.config(t, home.ID, "H1")
	f.config(t, home.ID, "H2")
	w1 := f.config(t, work.ID, "W1")

	rec := newRecorder[*models.Configuration]()
	sub := f.configs.ObserveActive(rec.push)
	defer sub.Cancel()

	f.wait(f.groups.SetActive(home, true))
	rec.waitFor(t, func(c *models.Configuration) bool { return c != nil && c.ID == h1.ID })

	f.wait(f.groups.SetActive(work, true))
	rec.waitFor(t, func(c *models.Configuration) bool { return c != nil && c.ID == w1.ID })

	f.wait(f.groups.SetActive(work, false))
	rec.waitFor(t, func(c *models.Configuration) bool { return c == nil })
}

func TestCancelStopsDelivery(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")

	rec := newRecorder[[]*models.Configuration]()
	sub := f.configs.ObserveForGroup(g.ID, rec.push)
	rec.waitFor(t, func(cs []*models.Configuration) bool { return len(cs) == 0 })

	sub.Cancel()
	before := rec.count()
	f.config(t, g.ID, "R1")
	f.config(t, g.ID, "R2")
	if err := f.d.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	if after := rec.count(); after != before {
		t.Errorf("received %d snapshots after Cancel", after-before)
	}
}

func TestObserveGroupReportsDeletion(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, "Home")

	rec := newRecorder[*models.Group]()
	sub := f.groups.ObserveGroup(g.ID, rec.push)
	defer sub.Cancel()
	rec.waitFor(t, func(v *models.Group) bool { return v != nil && v.Name == "Home" })

	f.wait(f.groups.Update(&models.Group{ID: g.ID, Name: "House"}))
	rec.waitFor(t, func(v *models.Group) bool { return v != nil && v.Name == "House" })

	f.wait(f.groups.Delete(g))
	rec.waitFor(t, func(v *models.Group) bool { return v == nil })
}

func TestClosedDispatcherRejectsWrites(t *testing.T) {
	f := newFixture(t)
	f.d.Close()
	if _, err := f.groups.Insert(&models.Group{Name: "late"}); err != pkgerrors.ErrDispatcherClosed {
		t.Errorf("Insert() after Close = %v, want ErrDispatcherClosed", err)
	}
}
