package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"relayconf/internal/repository"
	"relayconf/internal/storage/models"
	"relayconf/internal/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.DB {
	store, _ := openStoreAt(t)
	return store
}

func openStoreAt(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := sqlite.Open(path, sqlite.DriverPure)
	if err != nil {
		t.Fatalf("sqlite.Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestCheckSeededStoreIsClean(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	report, err := Check(ctx, store)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("violations on seeded store: %v", report.Violations)
	}
	if report.Groups != 5 || report.Configurations != 5 {
		t.Errorf("report counted %d groups, %d configurations", report.Groups, report.Configurations)
	}
}

func TestCheckFindsGaps(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	g := &models.Group{Name: "Home"}
	store.CreateGroup(ctx, g)
	for i, p := range []int{1, 3} {
		c := &models.Configuration{
			Name: "R", Host: "10.0.0.1", RelayPort: 7000 + i, SocksPort: 8090,
			Priority: p, GroupID: g.ID,
		}
		if err := store.CreateConfiguration(ctx, c); err != nil {
			t.Fatalf("CreateConfiguration() failed: %v", err)
		}
	}

	report, err := Check(ctx, store)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if len(report.Violations) != 1 || report.Violations[0].Op != "priorities" {
		t.Errorf("violations = %v, want one priorities violation", report.Violations)
	}
}

func TestCheckFindsSecondActiveGroup(t *testing.T) {
	store, path := openStoreAt(t)
	ctx := context.Background()
	raw, err := sql.Open(sqlite.DriverPure, path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`DROP INDEX idx_groups_single_active`); err != nil {
		t.Fatalf("drop index failed: %v", err)
	}
	for _, n := range []string{"A", "B"} {
		g := &models.Group{Name: n}
		store.CreateGroup(ctx, g)
		store.SetGroupActive(ctx, g.ID, true)
	}

	report, err := Check(ctx, store)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if report.OK() || report.Violations[0].Op != "active group" {
		t.Errorf("violations = %v, want active group violation", report.Violations)
	}
}

func TestSchedulerRunsThroughDispatcher(t *testing.T) {
	store := openStore(t)
	d := repository.NewDispatcher(nil)
	defer d.Close()

	s, err := NewScheduler(store, d, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	got := make(chan *Report, 1)
	s.OnReport(func(r *Report) {
		select {
		case got <- r:
		default:
		}
	})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	select {
	case r := <-got:
		if !r.OK() {
			t.Errorf("violations on empty store: %v", r.Violations)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no report from initial run")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if s.IsRunning() || s.Last() == nil {
		t.Error("scheduler state after Stop is wrong")
	}
}
