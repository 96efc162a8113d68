package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesAreDistinct(t *testing.T) {
	codes := []string{ErrConfig, ErrAuth, ErrPipeline, ErrTask, ErrExec, ErrLock}
	seen := map[string]bool{}
	for _, c := range codes {
		assert.NotEmpty(t, c)
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestError_Rendering(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(ErrPipeline, "No pipeline file found", ""),
			want: "✗ No pipeline file found\n",
		},
		{
			name: "with suggestion",
			err:  New(ErrAuth, "The token was rejected", "Run 'vsts-pi login' again"),
			want: "✗ The token was rejected\n\n  Run 'vsts-pi login' again\n",
		},
		{
			name: "with cause and suggestion",
			err: WrapWithCode(errors.New("dial tcp: connection refused"), ErrAuth,
				"Couldn't reach https://dev.azure.com/org", "Check the URL"),
			want: "✗ Couldn't reach https://dev.azure.com/org\n\n  dial tcp: connection refused\n\n  Check the URL\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_DefaultsToPipeline(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, "Step failed")

	assert.Equal(t, ErrPipeline, err.Code)
	assert.Empty(t, err.Suggestion)
	assert.Same(t, cause, err.Unwrap())
}

func TestError_Chain(t *testing.T) {
	sentinel := errors.New("lock is held")
	inner := WrapWithCode(sentinel, ErrLock, "Work directory busy", "")
	outer := fmt.Errorf("run: %w", inner)

	assert.True(t, errors.Is(outer, sentinel))

	var piErr *Error
	require.True(t, errors.As(outer, &piErr))
	assert.Equal(t, ErrLock, piErr.Code)
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("validate: %w", New(ErrTask, "Task Npm@3 is not in the task cache", ""))

	assert.True(t, IsCode(err, ErrTask))
	assert.False(t, IsCode(err, ErrPipeline))
	assert.False(t, IsCode(errors.New("plain"), ErrTask))
	assert.False(t, IsCode(nil, ErrTask))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(ErrPipeline, "No pipeline file found", "Pass --yaml"),
			want: "No pipeline file found",
		},
		{
			name: "message and cause",
			err:  WrapWithCode(errors.New("permission denied"), ErrConfig, "Cannot read config", "Check permissions"),
			want: "Cannot read config: permission denied",
		},
		{
			name: "nested structured cause",
			err: WrapWithCode(
				New(ErrTask, "Task Foo@1 not found", "Refresh the cache"),
				ErrPipeline, "Validation failed", ""),
			want: "Validation failed: Task Foo@1 not found",
		},
		{
			name: "multi-line plain cause",
			err:  WrapWithCode(errors.New("line one\nline two"), ErrExec, "Step failed", ""),
			want: "Step failed: line one line two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Summary()
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "\n")
		})
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", Summarize(nil))
	assert.Equal(t, "line one line two", Summarize(errors.New("line one\n  line two")))
	assert.Equal(t, "Bad token", Summarize(New(ErrAuth, "Bad token", "Log in again")))

	// A wrapped structured error is flattened from its full rendering.
	wrapped := fmt.Errorf("login: %w", New(ErrAuth, "Bad token", "Log in again"))
	assert.Equal(t, "login: ✗ Bad token Log in again", Summarize(wrapped))
}

func TestExitError(t *testing.T) {
	err := NewExitError(2)
	assert.Equal(t, "exit code 2", err.Error())

	code, ok := GetExitCode(fmt.Errorf("step 3: %w", err))
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	code, ok = GetExitCode(WrapWithCode(NewExitError(127), ErrExec, "Step failed", ""))
	assert.True(t, ok)
	assert.Equal(t, 127, code)

	_, ok = GetExitCode(errors.New("plain"))
	assert.False(t, ok)
	_, ok = GetExitCode(nil)
	assert.False(t, ok)
}
