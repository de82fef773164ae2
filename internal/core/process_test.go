//go:build unix

package core

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relayconf/internal/storage/models"
)

func shell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestProcessEnginePassesEndpoint(t *testing.T) {
	sh := shell(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "endpoint")

	script := `echo "$RELAYCONF_HOST $RELAYCONF_RELAY_PORT $RELAYCONF_SOCKS_PORT" > ` + out + `; exec sleep 30`
	eng, err := NewProcessEngine([]string{sh, "-c", script}, dir)
	if err != nil {
		t.Fatalf("NewProcessEngine() failed: %v", err)
	}
	eng.StartupGrace = 200 * time.Millisecond

	ctx := context.Background()
	ep := models.Endpoint{Host: "192.168.0.2", RelayPort: 7000, SocksPort: 8090}
	if err := eng.Start(ctx, ep); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer eng.Stop(ctx)

	if !eng.IsRunning() || eng.PID() == 0 {
		t.Fatal("engine not running after Start")
	}

	var got []byte
	for i := 0; i < 50; i++ {
		if got, err = os.ReadFile(out); err == nil && len(got) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if strings.TrimSpace(string(got)) != "192.168.0.2 7000 8090" {
		t.Errorf("engine saw %q", got)
	}

	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if eng.IsRunning() {
		t.Error("engine still running after Stop")
	}
}

func TestProcessEngineEarlyExit(t *testing.T) {
	sh := shell(t)
	eng, err := NewProcessEngine([]string{sh, "-c", "echo bad config; exit 1"}, t.TempDir())
	if err != nil {
		t.Fatalf("NewProcessEngine() failed: %v", err)
	}
	eng.StartupGrace = 2 * time.Second

	err = eng.Start(context.Background(), models.Endpoint{Host: "10.0.0.1", RelayPort: 7000, SocksPort: 8090})
	if err == nil || !strings.Contains(err.Error(), "bad config") {
		t.Errorf("Start() = %v, want startup failure with engine output", err)
	}
}

func TestNewProcessEngineRejectsEmptyCommand(t *testing.T) {
	if _, err := NewProcessEngine(nil, t.TempDir()); err == nil {
		t.Error("expected error for empty command")
	}
}
