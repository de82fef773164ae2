package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

type fakeEngine struct {
	mu      sync.Mutex
	running bool
	starts  []models.Endpoint
	stops   int
	failing error
}

func (f *fakeEngine) Start(_ context.Context, ep models.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return f.failing
	}
	f.running = true
	f.starts = append(f.starts, ep)
	return nil
}

func (f *fakeEngine) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
	return nil
}

func (f *fakeEngine) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type cancelFunc func()

func (c cancelFunc) Cancel() { c() }

// fakeSource hands the observer back to the test so it can push snapshots
// synchronously.
type fakeSource struct {
	active   *models.Configuration
	observer func(*models.Configuration)
}

func (s *fakeSource) GetActive(context.Context) (*models.Configuration, error) {
	return s.active, nil
}

func (s *fakeSource) ObserveActive(fn func(*models.Configuration)) repository.Subscription {
	s.observer = fn
	return cancelFunc(func() { s.observer = nil })
}

func relay(id int64, host string) *models.Configuration {
	return &models.Configuration{ID: id, Name: host, Host: host, RelayPort: 7000, SocksPort: 8090, Priority: 1, GroupID: 1}
}

func TestManagerLifecycle(t *testing.T) {
	eng := &fakeEngine{}
	m := NewManager(eng, nil)
	ctx := context.Background()

	if err := m.Stop(ctx); !errors.Is(err, pkgerrors.ErrEngineNotRunning) {
		t.Errorf("Stop() while stopped = %v, want ErrEngineNotRunning", err)
	}
	if err := m.Start(ctx, nil); !errors.Is(err, pkgerrors.ErrNoActiveConfiguration) {
		t.Errorf("Start(nil) = %v, want ErrNoActiveConfiguration", err)
	}

	r1 := relay(1, "192.168.0.2")
	if err := m.Start(ctx, r1); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := m.Start(ctx, r1); !errors.Is(err, pkgerrors.ErrEngineAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrEngineAlreadyRunning", err)
	}
	if got := m.GetStatus().Configuration; got == nil || got.ID != 1 {
		t.Errorf("GetStatus().Configuration = %v, want relay 1", got)
	}
	if st := m.GetStatus(); !st.Running || st.Endpoint.Host != "192.168.0.2" {
		t.Errorf("GetStatus() = %+v", st)
	}

	if err := m.Restart(ctx, relay(2, "192.168.0.3")); err != nil {
		t.Fatalf("Restart() failed: %v", err)
	}
	if eng.stops != 1 || len(eng.starts) != 2 || eng.starts[1].Host != "192.168.0.3" {
		t.Errorf("engine saw starts=%v stops=%d", eng.starts, eng.stops)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if m.GetStatus().Configuration != nil || m.IsRunning() {
		t.Error("manager still reports a running configuration")
	}
}

func TestConnectUsesActiveConfiguration(t *testing.T) {
	eng := &fakeEngine{}
	m := NewManager(eng, nil)
	src := &fakeSource{}

	if err := m.Connect(context.Background(), src); !errors.Is(err, pkgerrors.ErrNoActiveConfiguration) {
		t.Errorf("Connect() without active = %v, want ErrNoActiveConfiguration", err)
	}
	src.active = relay(5, "10.0.0.5")
	if err := m.Connect(context.Background(), src); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if eng.starts[0].Host != "10.0.0.5" {
		t.Errorf("started %v, want 10.0.0.5", eng.starts[0])
	}

	// Connecting again reconnects onto the current active configuration.
	src.active = relay(6, "10.0.0.6")
	if err := m.Connect(context.Background(), src); err != nil {
		t.Fatalf("second Connect() failed: %v", err)
	}
	if eng.stops != 1 || len(eng.starts) != 2 || eng.starts[1].Host != "10.0.0.6" {
		t.Errorf("engine saw starts=%v stops=%d, want a restart on 10.0.0.6", eng.starts, eng.stops)
	}

	// Losing the active configuration leaves the running engine alone.
	src.active = nil
	if err := m.Connect(context.Background(), src); !errors.Is(err, pkgerrors.ErrNoActiveConfiguration) {
		t.Errorf("Connect() without active = %v, want ErrNoActiveConfiguration", err)
	}
	if !m.IsRunning() || eng.stops != 1 {
		t.Error("rejected Connect() stopped the engine")
	}
}

func TestFollowRestartsOnChange(t *testing.T) {
	eng := &fakeEngine{}
	m := NewManager(eng, nil)
	src := &fakeSource{}
	sub := m.Follow(src)
	defer sub.Cancel()

	// A stopped engine stays stopped.
	src.observer(relay(1, "10.0.0.1"))
	if eng.IsRunning() {
		t.Fatal("Follow started a stopped engine")
	}

	ctx := context.Background()
	m.Start(ctx, relay(1, "10.0.0.1"))
	src.observer(relay(1, "10.0.0.1"))
	if len(eng.starts) != 1 {
		t.Errorf("unchanged active restarted the engine: %v", eng.starts)
	}

	src.observer(relay(2, "10.0.0.2"))
	if len(eng.starts) != 2 || eng.starts[1].Host != "10.0.0.2" {
		t.Errorf("starts = %v, want restart on 10.0.0.2", eng.starts)
	}

	src.observer(nil)
	if eng.IsRunning() {
		t.Error("engine still running without an active configuration")
	}
}

func TestStartFailureKeepsNoCurrent(t *testing.T) {
	eng := &fakeEngine{failing: errors.New("boom")}
	m := NewManager(eng, nil)
	if err := m.Start(context.Background(), relay(1, "10.0.0.1")); err == nil {
		t.Fatal("expected start failure")
	}
	if m.GetStatus().Configuration != nil {
		t.Error("failed start recorded a current configuration")
	}
}
