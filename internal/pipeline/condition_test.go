package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionEvaluator(t *testing.T) {
	vars := map[string]string{"target": "Release", "build.reason": "manual"}

	tests := []struct {
		name   string
		expr   string
		status JobStatus
		want   bool
	}{
		{"succeeded on clean run", "succeeded()", JobStatus{}, true},
		{"succeeded after failure", "succeeded()", JobStatus{Failed: true}, false},
		{"succeeded after cancel", "succeeded()", JobStatus{Canceled: true}, false},
		{"failed after failure", "failed()", JobStatus{Failed: true}, true},
		{"failed on clean run", "failed()", JobStatus{}, false},
		{"failed when canceled", "failed()", JobStatus{Failed: true, Canceled: true}, false},
		{"canceled", "canceled()", JobStatus{Canceled: true}, true},
		{"always after failure", "always()", JobStatus{Failed: true}, true},
		{"eq ignores case", "eq(variables.target, 'release')", JobStatus{}, true},
		{"ne", "ne(variables.target, 'debug')", JobStatus{}, true},
		{"missing variable is empty", "eq(variables.missing, '')", JobStatus{}, true},
		{"dotted name by index", "eq(variables['build.reason'], 'Manual')", JobStatus{}, true},
		{"and", "succeeded() && eq(variables.target, 'release')", JobStatus{}, true},
		{"or", "failed() || eq(variables.target, 'debug')", JobStatus{}, false},
		{"not", "!failed()", JobStatus{}, true},
	}

	e := NewConditionEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, vars, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEvaluator_CompileErrors(t *testing.T) {
	e := NewConditionEvaluator()

	for _, expr := range []string{
		"succeeded(",
		"unknownFunc()",
		"variables.target",
		"eq(variables.target)",
	} {
		t.Run(expr, func(t *testing.T) {
			assert.Error(t, e.Compile(expr))
		})
	}
}

func TestConditionEvaluator_CachesPrograms(t *testing.T) {
	e := NewConditionEvaluator()

	require.NoError(t, e.Compile("always()"))
	require.NoError(t, e.Compile("always()"))
	assert.Len(t, e.programs, 1)

	ok, err := e.Evaluate("always()", nil, JobStatus{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, e.programs, 1)
}
