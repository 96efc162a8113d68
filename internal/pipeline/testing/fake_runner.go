// Package testing provides test doubles for the pipeline package.
package testing

import (
	"context"
	"sync"

	"github.com/elgendy/vsts-agent/internal/settings"
)

// Operation names recorded by FakeRunner.
const (
	OpLint     = "lint"
	OpValidate = "validate"
	OpRun      = "run"
)

// FakeRunner simulates the pipeline runner. Each operation returns the error
// configured for it, or runs its hook when one is set.
type FakeRunner struct {
	mu sync.Mutex

	// Configuration
	Errors map[string]error
	Hooks  map[string]func(ctx context.Context, s *settings.CommandSettings) error

	// Call tracking, in call order
	Calls []string
}

// NewFakeRunner creates a runner whose operations all succeed.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Errors: make(map[string]error),
		Hooks:  make(map[string]func(context.Context, *settings.CommandSettings) error),
	}
}

// SetError makes op fail with err.
func (f *FakeRunner) SetError(op string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[op] = err
	return f
}

// SetHook replaces op's behavior with fn.
func (f *FakeRunner) SetHook(op string, fn func(ctx context.Context, s *settings.CommandSettings) error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Hooks[op] = fn
	return f
}

// Lint simulates a lint.
func (f *FakeRunner) Lint(ctx context.Context, s *settings.CommandSettings) error {
	return f.call(ctx, OpLint, s)
}

// Validate simulates a validation.
func (f *FakeRunner) Validate(ctx context.Context, s *settings.CommandSettings) error {
	return f.call(ctx, OpValidate, s)
}

// Run simulates a pipeline run.
func (f *FakeRunner) Run(ctx context.Context, s *settings.CommandSettings) error {
	return f.call(ctx, OpRun, s)
}

// CallsTo returns how many times op was called.
func (f *FakeRunner) CallsTo(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of calls across all operations.
func (f *FakeRunner) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeRunner) call(ctx context.Context, op string, s *settings.CommandSettings) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, op)
	hook := f.Hooks[op]
	err := f.Errors[op]
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, s)
	}
	return err
}
