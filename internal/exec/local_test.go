package exec

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cmd Command) (*Result, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	res, err := ExecuteLocal(context.Background(), cmd)
	require.NoError(t, err)
	return res, stdout.String(), stderr.String()
}

func TestExecuteLocal_SimpleCommand(t *testing.T) {
	res, stdout, stderr := run(t, Command{Script: "echo hello"})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", stdout)
	assert.Empty(t, stderr)
}

func TestExecuteLocal_CommandWithPipe(t *testing.T) {
	res, stdout, _ := run(t, Command{Script: "echo 'hello world' | tr ' ' '_'"})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello_world\n", stdout)
}

func TestExecuteLocal_NonZeroExitCode(t *testing.T) {
	res, _, _ := run(t, Command{Script: "exit 42"})

	// No error - command ran, just had non-zero exit
	assert.Equal(t, 42, res.ExitCode)
}

func TestExecuteLocal_WorkingDirectory(t *testing.T) {
	tempDir := t.TempDir()

	res, stdout, _ := run(t, Command{Script: "pwd", Dir: tempDir})

	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, strings.TrimSpace(stdout), filepath.Base(tempDir))
}

func TestExecuteLocal_StderrTail(t *testing.T) {
	res, stdout, stderr := run(t, Command{Script: "echo error >&2; exit 3"})

	assert.Equal(t, 3, res.ExitCode)
	assert.Empty(t, stdout)
	assert.Equal(t, "error\n", stderr)
	assert.Equal(t, "error\n", res.StderrTail)
}

func TestExecuteLocal_Environment(t *testing.T) {
	t.Setenv("VSTS_PI_EXEC_TEST", "from-parent")

	res, stdout, _ := run(t, Command{
		Script: `echo "$VSTS_PI_EXEC_TEST $INPUT_NAME"`,
		Env:    map[string]string{"INPUT_NAME": "world"},
	})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "from-parent world\n", stdout)
}

func TestExecuteLocal_EnvOverridesParent(t *testing.T) {
	t.Setenv("VSTS_PI_EXEC_TEST", "from-parent")

	_, stdout, _ := run(t, Command{
		Script: `echo "$VSTS_PI_EXEC_TEST"`,
		Env:    map[string]string{"VSTS_PI_EXEC_TEST": "from-step"},
	})

	assert.Equal(t, "from-step\n", stdout)
}

func TestExecuteLocal_Stdin(t *testing.T) {
	res, stdout, _ := run(t, Command{Script: "cat", Stdin: strings.NewReader("hello from stdin")})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello from stdin", stdout)
}

func TestExecuteLocal_NilWriters(t *testing.T) {
	res, err := ExecuteLocal(context.Background(), Command{Script: "echo discarded; echo oops >&2"})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "oops\n", res.StderrTail)
}

func TestExecuteLocal_CommandNotFound(t *testing.T) {
	res, _, _ := run(t, Command{Script: "this_command_does_not_exist_xyz123"})

	// Command should run but exit with non-zero (command not found)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestExecuteLocal_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	res, err := ExecuteLocal(ctx, Command{Script: "sleep 30"})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/home/me", "FOO=old"}

	got := mergeEnv(base, map[string]string{"FOO": "new", "BAR": "1"})

	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/home/me", "BAR=1", "FOO=new"}, got)
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 5}

	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defgh"))

	assert.Equal(t, "defgh", tb.String())
}
