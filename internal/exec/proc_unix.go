//go:build !windows

package exec

import (
	"os/exec"
	"syscall"
)

// startGroup puts the command in its own process group so cancellation
// reaches everything the step started, not just the shell.
func startGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGINT)
}

func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// groupAlive reports whether any process is left in the group.
func groupAlive(pid int) bool {
	return syscall.Kill(-pid, 0) == nil
}
