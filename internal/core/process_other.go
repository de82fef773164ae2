//go:build !unix

package core

import (
	"os"
	"os/exec"
)

func detach(cmd *exec.Cmd) {}

func alive(proc *os.Process) bool {
	return proc != nil
}
