//go:build windows

package exec

import (
	"os"
	"os/exec"
)

// Windows has no process groups to signal; only the shell is stopped.

func startGroup(*exec.Cmd) {}

func interruptGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func groupAlive(int) bool {
	return false
}
