package cli

import (
	"errors"
	"testing"

	"github.com/elgendy/vsts-agent/internal/settings"
	termtesting "github.com/elgendy/vsts-agent/internal/terminal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a RunFunc that remembers what it was asked to run.
type recorder struct {
	calls []*settings.CommandSettings
	code  int
}

func (r *recorder) run(s *settings.CommandSettings) int {
	r.calls = append(r.calls, s)
	return r.code
}

func (r *recorder) last(t *testing.T) *settings.CommandSettings {
	t.Helper()
	require.NotEmpty(t, r.calls)
	return r.calls[len(r.calls)-1]
}

func executeArgs(t *testing.T, rec *recorder, args ...string) (int, *termtesting.FakeTerminal) {
	t.Helper()
	term := termtesting.NewFakeTerminal()
	return execute(rec.run, args, term), term
}

func TestExecute_Verbs(t *testing.T) {
	tests := []struct {
		args   []string
		action string
	}{
		{[]string{"login"}, settings.FlagLogin},
		{[]string{"logout"}, settings.FlagLogout},
		{[]string{"lint"}, settings.FlagLint},
		{[]string{"validate"}, settings.FlagValidate},
		{[]string{"run"}, settings.FlagRun},
		{[]string{"version"}, settings.FlagVersion},
		{[]string{"--run"}, settings.FlagRun},
		{[]string{"--commit"}, settings.FlagCommit},
		{[]string{"--validate", "--run"}, settings.FlagValidate},
		{[]string{"run", "--help"}, settings.FlagHelp},
		{[]string{"-h"}, settings.FlagHelp},
		{[]string{"help"}, settings.FlagHelp},
	}

	for _, tt := range tests {
		t.Run(tt.action+" "+tt.args[0], func(t *testing.T) {
			rec := &recorder{}
			code, term := executeArgs(t, rec, tt.args...)

			assert.Equal(t, 0, code)
			assert.Empty(t, term.Errors)
			require.Len(t, rec.calls, 1)
			assert.Equal(t, tt.action, rec.last(t).Action())
		})
	}
}

func TestExecute_Options(t *testing.T) {
	rec := &recorder{}
	code, _ := executeArgs(t, rec, "run", "--yml", "ci.yml", "--offline", "--trace", "--no-color", "--unattended", "--config", "/tmp/c.yaml")
	require.Equal(t, 0, code)

	s := rec.last(t)
	assert.True(t, s.Run)
	assert.Equal(t, "ci.yml", s.Yaml)
	assert.True(t, s.Offline)
	assert.True(t, s.Trace)
	assert.True(t, s.NoColor)
	assert.True(t, s.Unattended)
	assert.Equal(t, "/tmp/c.yaml", s.ConfigPath)
}

func TestExecute_LoginOptions(t *testing.T) {
	rec := &recorder{}
	_, _ = executeArgs(t, rec, "login", "--url", " https://dev.azure.com/org ", "--auth", "PAT", "--token", "abc")

	s := rec.last(t)
	assert.True(t, s.Login)
	assert.Equal(t, "https://dev.azure.com/org", s.URL)
	assert.Equal(t, settings.AuthPAT, s.Auth)
	assert.Equal(t, "abc", s.Token)
}

func TestExecute_ExitCodePassesThrough(t *testing.T) {
	rec := &recorder{code: 3}
	code, term := executeArgs(t, rec, "run")

	assert.Equal(t, 3, code)
	assert.Empty(t, term.Errors, "the commander reports its own errors")
}

func TestExecute_HelpExitCodePassesThrough(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"help"}, {"run", "-h"}} {
		t.Run(args[0], func(t *testing.T) {
			rec := &recorder{code: 1}
			code, _ := executeArgs(t, rec, args...)

			assert.Equal(t, 1, code)
			require.Len(t, rec.calls, 1)
			assert.True(t, rec.last(t).Help)
		})
	}
}

func TestExecute_NoArgsShowsUsage(t *testing.T) {
	rec := &recorder{code: 1}
	code, _ := executeArgs(t, rec)

	assert.Equal(t, 1, code)
	require.Len(t, rec.calls, 1)
	assert.Empty(t, rec.last(t).Action())
}

func TestExecute_UnknownCommand(t *testing.T) {
	rec := &recorder{code: 1}
	code, term := executeArgs(t, rec, "deploy")

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"Unknown command 'deploy'"}, term.ErrorLines())
	require.Len(t, rec.calls, 1)
	assert.Empty(t, rec.last(t).Action(), "falls through to usage")
}

func TestExecute_UnknownFlag(t *testing.T) {
	rec := &recorder{code: 1}
	code, term := executeArgs(t, rec, "run", "--fast")

	assert.Equal(t, 1, code)
	require.Len(t, term.ErrorLines(), 1)
	assert.Contains(t, term.ErrorLines()[0], "unknown flag: --fast")
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.last(t).Run)
}

func TestExecute_BadFlagValue(t *testing.T) {
	rec := &recorder{}
	code, term := executeArgs(t, rec, "--offline=maybe")

	assert.Equal(t, 1, code)
	assert.Len(t, term.ErrorLines(), 1)
	assert.Empty(t, rec.calls)
}

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unknown command error",
			err:  errors.New(`unknown command "foo" for "vsts-pi"`),
			want: true,
		},
		{
			name: "unknown flag error",
			err:  errors.New(`unknown flag: --foo`),
			want: true,
		},
		{
			name: "unknown shorthand",
			err:  errors.New(`unknown shorthand flag: 'x' in -x`),
			want: true,
		},
		{
			name: "other error",
			err:  errors.New("connection failed"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "standard cobra format",
			err:  errors.New(`unknown command "foo" for "vsts-pi"`),
			want: "foo",
		},
		{
			name: "command with hyphen",
			err:  errors.New(`unknown command "my-task" for "vsts-pi"`),
			want: "my-task",
		},
		{
			name: "no quotes returns empty",
			err:  errors.New("unknown command foo"),
			want: "",
		},
		{
			name: "single quote returns empty",
			err:  errors.New(`unknown command "foo`),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}
