package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"relayconf/internal/paths"
	"relayconf/internal/storage/models"
	pkgerrors "relayconf/pkg/errors"
)

// Environment variables carrying the endpoint to the engine process.
const (
	EnvHost      = "RELAYCONF_HOST"
	EnvRelayPort = "RELAYCONF_RELAY_PORT"
	EnvSocksPort = "RELAYCONF_SOCKS_PORT"
)

// ProcessEngine runs an external proxy engine command. The endpoint is passed
// through environment variables so any engine binary can be wrapped by a
// small script.
type ProcessEngine struct {
	command []string
	logPath string
	pidPath string

	// StartupGrace is how long Start waits to catch an engine that exits
	// right away.
	StartupGrace time.Duration

	cmd       *exec.Cmd
	startTime time.Time
	running   int32 // atomic: 0=not running, 1=running
	mu        sync.Mutex
}

// NewProcessEngine creates an engine that runs command. Log and PID files go
// to runDir, or the cache dir when runDir is empty.
func NewProcessEngine(command []string, runDir string) (*ProcessEngine, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, fmt.Errorf("engine command is empty")
	}
	if runDir == "" {
		dir, err := paths.CacheDir()
		if err != nil {
			return nil, err
		}
		runDir = dir
	}
	return &ProcessEngine{
		command:      command,
		logPath:      filepath.Join(runDir, "engine.log"),
		pidPath:      filepath.Join(runDir, "engine.pid"),
		StartupGrace: time.Second,
	}, nil
}

// Start launches the engine process for ep
func (e *ProcessEngine) Start(ctx context.Context, ep models.Endpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if atomic.LoadInt32(&e.running) == 1 {
		return pkgerrors.ErrEngineAlreadyRunning
	}

	bin, err := exec.LookPath(e.command[0])
	if err != nil {
		return fmt.Errorf("engine binary not found: %w", err)
	}

	// exec.Command, not CommandContext: the engine outlives the CLI call.
	cmd := exec.Command(bin, e.command[1:]...)
	cmd.Env = append(os.Environ(),
		EnvHost+"="+ep.Host,
		EnvRelayPort+"="+strconv.Itoa(ep.RelayPort),
		EnvSocksPort+"="+strconv.Itoa(ep.SocksPort),
	)
	detach(cmd)

	logFile, err := os.Create(e.logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	paths.ChownToRealUser(e.logPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start engine: %w", err)
	}

	e.cmd = cmd
	atomic.StoreInt32(&e.running, 1)
	e.startTime = time.Now()

	os.WriteFile(e.pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0644)
	paths.ChownToRealUser(e.pidPath)

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		atomic.StoreInt32(&e.running, 0)
		logFile.Close()
		os.Remove(e.pidPath)
		close(exited)
	}()

	select {
	case <-exited:
		logContent, _ := os.ReadFile(e.logPath)
		if len(logContent) > 0 {
			return fmt.Errorf("engine exited during startup:\n%s", string(logContent))
		}
		return fmt.Errorf("engine exited during startup, check logs at: %s", e.logPath)
	case <-time.After(e.StartupGrace):
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Stop interrupts the engine, killing it if it does not exit in time. An
// engine started by another process is found through the PID file.
func (e *ProcessEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	proc := e.process()
	if proc == nil {
		atomic.StoreInt32(&e.running, 0)
		os.Remove(e.pidPath)
		return nil
	}

	if err := proc.Signal(os.Interrupt); err != nil {
		if killErr := proc.Kill(); killErr != nil {
			// already gone
			atomic.StoreInt32(&e.running, 0)
			os.Remove(e.pidPath)
			return nil
		}
	}

	done := make(chan struct{})
	go func() {
		if e.cmd != nil && e.cmd.Process == proc {
			for atomic.LoadInt32(&e.running) == 1 {
				time.Sleep(20 * time.Millisecond)
			}
		} else {
			for alive(proc) {
				time.Sleep(50 * time.Millisecond)
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		proc.Kill()
	case <-ctx.Done():
		proc.Kill()
	}

	e.cmd = nil
	atomic.StoreInt32(&e.running, 0)
	os.Remove(e.pidPath)
	return nil
}

func (e *ProcessEngine) process() *os.Process {
	if e.cmd != nil && e.cmd.Process != nil && atomic.LoadInt32(&e.running) == 1 {
		return e.cmd.Process
	}
	pid, ok := e.readPID()
	if !ok {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil || !alive(proc) {
		return nil
	}
	return proc
}

func (e *ProcessEngine) readPID() (int, bool) {
	pidBytes, err := os.ReadFile(e.pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// IsRunning returns whether the engine is running, here or in another process
func (e *ProcessEngine) IsRunning() bool {
	if atomic.LoadInt32(&e.running) == 1 {
		return true
	}
	pid, ok := e.readPID()
	if !ok {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return alive(proc)
}

// PID returns the engine process id, or 0.
func (e *ProcessEngine) PID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil && e.cmd.Process != nil {
		return e.cmd.Process.Pid
	}
	pid, _ := e.readPID()
	return pid
}

// StartedAt returns when this process started the engine.
func (e *ProcessEngine) StartedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startTime
}

// LogPath returns the engine's output file.
func (e *ProcessEngine) LogPath() string { return e.logPath }
