//go:build unix

package terminal

import (
	"os/exec"
	"syscall"
)

// killGroup kills the shell's process group; the shell leads its own
// session on the PTY.
func killGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}
