package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), DriverPure)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustGroup(t *testing.T, db *DB, name string) *models.Group {
	t.Helper()
	g := &models.Group{Name: name}
	if err := db.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateGroup(%s) failed: %v", name, err)
	}
	return g
}

func mustConfiguration(t *testing.T, db *DB, groupID int64, name string, priority int) *models.Configuration {
	t.Helper()
	c := &models.Configuration{
		Name: name, Host: "10.0.0.1", RelayPort: 7000, SocksPort: 8090,
		Priority: priority, GroupID: groupID,
	}
	if err := db.CreateConfiguration(context.Background(), c); err != nil {
		t.Fatalf("CreateConfiguration(%s) failed: %v", name, err)
	}
	return c
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), "postgres"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := Open(path, DriverPure)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	mustGroup(t, db, "Home")
	if err := db.SetSetting(ctx, "log_level", "debug"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path, DriverPure)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer db.Close()

	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("user_version = %d, want %d", version, len(migrations))
	}
	if v, _ := db.GetSetting(ctx, "log_level"); v != "debug" {
		t.Errorf("log_level = %q after reopen, want debug", v)
	}
	if n, err := db.CountGroups(ctx); err != nil || n != 1 {
		t.Errorf("CountGroups() = %d, %v; want 1", n, err)
	}
}

func TestGroupsOrderedByName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, n := range []string{"Work", "Campus", "Home"} {
		mustGroup(t, db, n)
	}

	groups, err := db.GetAllGroups(ctx)
	if err != nil {
		t.Fatalf("GetAllGroups() failed: %v", err)
	}
	want := []string{"Campus", "Home", "Work"}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, g := range groups {
		if g.Name != want[i] {
			t.Errorf("groups[%d] = %s, want %s", i, g.Name, want[i])
		}
		if g.ID == 0 {
			t.Errorf("groups[%d] has no ID", i)
		}
	}
}

func TestGetGroupNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetGroup(context.Background(), 42)
	if !errors.Is(err, pkgerrors.ErrGroupNotFound) {
		t.Fatalf("GetGroup() = %v, want ErrGroupNotFound", err)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.CreateGroup(ctx, &models.Group{Name: ""}); err == nil {
		t.Error("expected empty group name to be rejected")
	}

	g := mustGroup(t, db, "Home")
	bad := &models.Configuration{Name: "x", Host: "10.0.0.1", RelayPort: 80, SocksPort: 8090, GroupID: g.ID}
	if err := db.CreateConfiguration(ctx, bad); err == nil {
		t.Error("expected out-of-range port to be rejected")
	}

	orphan := &models.Configuration{Name: "x", Host: "10.0.0.1", RelayPort: 7000, SocksPort: 8090, GroupID: 999}
	if err := db.CreateConfiguration(ctx, orphan); err == nil {
		t.Error("expected configuration without a group to be rejected")
	}
}

func TestUpdateMissingKeyIsNoop(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpdateGroups(ctx, []*models.Group{{ID: 77, Name: "ghost"}}); err != nil {
		t.Errorf("UpdateGroups(missing) = %v, want nil", err)
	}
	ghost := &models.Configuration{ID: 77, Name: "ghost", Host: "10.0.0.1", RelayPort: 7000, SocksPort: 8090}
	if err := db.UpdateConfigurations(ctx, []*models.Configuration{ghost}); err != nil {
		t.Errorf("UpdateConfigurations(missing) = %v, want nil", err)
	}
}

func TestUpdateGroupKeepsActiveFlag(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	if err := db.SetGroupActive(ctx, g.ID, true); err != nil {
		t.Fatalf("SetGroupActive() failed: %v", err)
	}

	if err := db.UpdateGroups(ctx, []*models.Group{{ID: g.ID, Name: "House", Active: false}}); err != nil {
		t.Fatalf("UpdateGroups() failed: %v", err)
	}
	got, err := db.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup() failed: %v", err)
	}
	if got.Name != "House" || !got.Active {
		t.Errorf("got %+v, want renamed and still active", got)
	}
}

func TestSingleActiveIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := mustGroup(t, db, "A")
	b := mustGroup(t, db, "B")

	if err := db.SetGroupActive(ctx, a.ID, true); err != nil {
		t.Fatalf("SetGroupActive(a) failed: %v", err)
	}
	if err := db.SetGroupActive(ctx, b.ID, true); err == nil {
		t.Fatal("expected second active group to be rejected")
	}
	active, err := db.GetActiveGroups(ctx)
	if err != nil {
		t.Fatalf("GetActiveGroups() failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("active = %v, want only A", active)
	}
}

func TestConfigurationsByGroupOrderedByPriority(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	other := mustGroup(t, db, "Work")
	mustConfiguration(t, db, g.ID, "R3", 3)
	mustConfiguration(t, db, g.ID, "R1", 1)
	mustConfiguration(t, db, g.ID, "R2", 2)
	mustConfiguration(t, db, other.ID, "W1", 1)

	configs, err := db.GetConfigurationsByGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetConfigurationsByGroup() failed: %v", err)
	}
	for i, want := range []string{"R1", "R2", "R3"} {
		if configs[i].Name != want {
			t.Errorf("configs[%d] = %s, want %s", i, configs[i].Name, want)
		}
	}

	n, err := db.CountConfigurationsByGroup(ctx, g.ID)
	if err != nil || n != 3 {
		t.Errorf("CountConfigurationsByGroup() = %d, %v; want 3", n, err)
	}
}

func TestActiveConfigurationIsDerived(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	mustConfiguration(t, db, g.ID, "R2", 2)
	r1 := mustConfiguration(t, db, g.ID, "R1", 1)

	got, err := db.GetActiveConfiguration(ctx)
	if err != nil || got != nil {
		t.Fatalf("GetActiveConfiguration() = %v, %v; want nil without an active group", got, err)
	}

	db.SetGroupActive(ctx, g.ID, true)
	got, err = db.GetActiveConfiguration(ctx)
	if err != nil {
		t.Fatalf("GetActiveConfiguration() failed: %v", err)
	}
	if got == nil || got.ID != r1.ID {
		t.Errorf("active = %v, want R1", got)
	}
}

func TestDeleteGroupsCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	keep := mustGroup(t, db, "Work")
	mustConfiguration(t, db, g.ID, "R1", 1)
	w := mustConfiguration(t, db, keep.ID, "W1", 1)

	if err := db.DeleteGroups(ctx, []int64{g.ID}); err != nil {
		t.Fatalf("DeleteGroups() failed: %v", err)
	}
	all, err := db.GetAllConfigurations(ctx)
	if err != nil {
		t.Fatalf("GetAllConfigurations() failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != w.ID {
		t.Errorf("remaining = %v, want only W1", all)
	}
}

func TestUpdateAndDeleteConfigurations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	a := mustConfiguration(t, db, g.ID, "A", 1)
	b := mustConfiguration(t, db, g.ID, "B", 2)
	c := mustConfiguration(t, db, g.ID, "C", 3)

	a.Priority, b.Priority = 2, 1
	if err := db.UpdateConfigurations(ctx, []*models.Configuration{a, b}); err != nil {
		t.Fatalf("UpdateConfigurations() failed: %v", err)
	}
	if err := db.DeleteConfigurations(ctx, []int64{c.ID}); err != nil {
		t.Fatalf("DeleteConfigurations() failed: %v", err)
	}

	configs, _ := db.GetConfigurationsByGroup(ctx, g.ID)
	if len(configs) != 2 || configs[0].Name != "B" || configs[1].Name != "A" {
		t.Errorf("order = %v, want [B A]", configs)
	}
}

func TestReorderWritesOnlyPriority(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := mustGroup(t, db, "Home")
	other := mustGroup(t, db, "Work")
	a := mustConfiguration(t, db, g.ID, "A", 1)
	b := mustConfiguration(t, db, g.ID, "B", 2)
	c := mustConfiguration(t, db, g.ID, "C", 3)
	w := mustConfiguration(t, db, other.ID, "W", 1)

	// Stale names must not be written back, nor rows of another group.
	b.Name, b.Priority = "stale", 1
	a.Priority = 2
	w.Priority = 9
	if err := db.ReorderConfigurations(ctx, g.ID, []*models.Configuration{b, a, w}, []int64{c.ID}); err != nil {
		t.Fatalf("ReorderConfigurations() failed: %v", err)
	}

	configs, _ := db.GetConfigurationsByGroup(ctx, g.ID)
	if len(configs) != 2 || configs[0].Name != "B" || configs[1].Name != "A" {
		t.Errorf("order = %v, want [B A]", configs)
	}
	got, err := db.GetConfiguration(ctx, w.ID)
	if err != nil || got.Priority != 1 {
		t.Errorf("foreign row = %v, %v; want untouched priority 1", got, err)
	}
}

func TestSeed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustGroup(t, db, "Leftover")

	if err := db.Seed(ctx); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	n, _ := db.CountGroups(ctx)
	if n != 5 {
		t.Errorf("CountGroups() = %d, want 5", n)
	}
	all, _ := db.GetAllConfigurations(ctx)
	if len(all) != 5 {
		t.Errorf("got %d configurations, want 5", len(all))
	}

	if err := db.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() failed: %v", err)
	}
	n, _ = db.CountGroups(ctx)
	if n != 0 {
		t.Errorf("CountGroups() after DeleteAll = %d, want 0", n)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetSetting(ctx, "default_relay_port")
	if err != nil || v != "7000" {
		t.Errorf("GetSetting(default_relay_port) = %q, %v", v, err)
	}
	if err := db.SetSetting(ctx, "log_level", "debug"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	all, err := db.GetAllSettings(ctx)
	if err != nil {
		t.Fatalf("GetAllSettings() failed: %v", err)
	}
	if all["log_level"] != "debug" {
		t.Errorf("log_level = %q, want debug", all["log_level"])
	}
	if _, err := db.GetSetting(ctx, "missing"); err == nil {
		t.Error("expected error for missing setting")
	}
}
