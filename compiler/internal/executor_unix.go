//go:build unix

package internal

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		// Negative pid addresses the whole group.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
