//go:build unix

package core

import (
	"os"
	"os/exec"
	"syscall"

	"relayconf/internal/paths"
)

// detach puts the engine in its own process group so it survives the CLI,
// and drops it to the real user under sudo.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if uid, gid, ok := paths.RealUser(); ok {
		cmd.SysProcAttr.Credential = &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}
	}
}

// alive sends signal 0; FindProcess always succeeds on Unix.
func alive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}
