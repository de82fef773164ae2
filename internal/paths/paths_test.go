package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirsUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SUDO_USER", "")
	t.Setenv("SUDO_UID", "")

	db, err := DatabasePath()
	if err != nil {
		t.Fatalf("DatabasePath() failed: %v", err)
	}
	if want := filepath.Join(home, ".local", "share", "relayconf", "relayconf.db"); db != want {
		t.Errorf("DatabasePath() = %s, want %s", db, want)
	}
	if _, err := os.Stat(filepath.Dir(db)); err != nil {
		t.Errorf("data dir not created: %v", err)
	}

	logPath, err := LogPath()
	if err != nil {
		t.Fatalf("LogPath() failed: %v", err)
	}
	if want := filepath.Join(home, ".cache", "relayconf", "relayconf.log"); logPath != want {
		t.Errorf("LogPath() = %s, want %s", logPath, want)
	}
}

func TestRealUser(t *testing.T) {
	t.Setenv("SUDO_UID", "")
	if _, _, ok := RealUser(); ok {
		t.Error("RealUser() ok without sudo")
	}

	t.Setenv("SUDO_UID", "1000")
	t.Setenv("SUDO_GID", "100")
	uid, gid, ok := RealUser()
	if !ok || uid != 1000 || gid != 100 {
		t.Errorf("RealUser() = %d, %d, %v; want 1000, 100, true", uid, gid, ok)
	}
}
