// Package exec runs pipeline step commands on the local machine.
package exec

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elgendy/vsts-agent/internal/errors"
)

// stderrTailSize is how much trailing stderr is kept for diagnosis.
const stderrTailSize = 4096

// killDelay is how long a cancelled command gets between SIGINT and SIGKILL.
var killDelay = 5 * time.Second

// reapInterval is how often a cancelled command's process group is polled.
const reapInterval = 50 * time.Millisecond

// Command describes one local shell invocation.
type Command struct {
	// Script is interpreted by $SHELL -c (or /bin/sh), so pipes and
	// redirects work.
	Script string
	Dir    string
	// Env is added to the current process environment, overriding it.
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	// StderrTail is the last few KB of stderr.
	StderrTail string
}

// ExecuteLocal runs cmd and waits for it. A non-zero exit status is reported
// in Result, not as an error. When ctx is cancelled the command's whole
// process group is sent SIGINT, anything still running after killDelay is
// killed, and the context error is returned.
func ExecuteLocal(ctx context.Context, cmd Command) (*Result, error) {
	command := exec.CommandContext(ctx, shell(), "-c", cmd.Script)
	command.Dir = cmd.Dir
	command.Env = mergeEnv(os.Environ(), cmd.Env)
	command.Stdin = cmd.Stdin
	startGroup(command)

	var deadline time.Time
	command.Cancel = func() error {
		deadline = time.Now().Add(killDelay)
		return interruptGroup(command.Process.Pid)
	}
	command.WaitDelay = killDelay

	tail := &tailBuffer{max: stderrTailSize}
	command.Stdout = orDiscard(cmd.Stdout)
	command.Stderr = io.MultiWriter(orDiscard(cmd.Stderr), tail)

	runErr := command.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if command.Process != nil {
			reapGroup(command.Process.Pid, deadline)
		}
		return nil, errors.WrapWithCode(ctxErr, errors.ErrExec,
			"Command was cancelled",
			"")
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return &Result{ExitCode: exitErr.ExitCode(), StderrTail: tail.String()}, nil
		}
		return nil, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the command exists and is executable.")
	}

	return &Result{ExitCode: 0, StderrTail: tail.String()}, nil
}

// reapGroup waits until deadline for the cancelled group to exit, then
// kills whatever is left. Background jobs ignore SIGINT in a non-interactive
// shell, so the kill is usually what stops them.
func reapGroup(pid int, deadline time.Time) {
	for groupAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(reapInterval)
	}
	_ = killGroup(pid)
}

func shell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// mergeEnv overlays extra on base. Keys from extra replace existing entries;
// new keys are appended in sorted order so the environment is deterministic.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
