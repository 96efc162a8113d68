// Package testing provides test doubles for the terminal package.
package testing

import (
	"slices"
	"strings"
	"sync"

	"github.com/elgendy/vsts-agent/internal/terminal"
)

// FakeTerminal captures written lines in memory and lets tests press the
// cancel key.
type FakeTerminal struct {
	mu sync.Mutex

	Lines    []string
	Errors   []string
	handlers []terminal.CancelHandler

	AddCalls    int
	RemoveCalls int
}

// NewFakeTerminal creates an empty fake terminal.
func NewFakeTerminal() *FakeTerminal {
	return &FakeTerminal{}
}

// WriteLine records a line of standard output.
func (f *FakeTerminal) WriteLine(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lines = append(f.Lines, s)
}

// WriteError records an error line.
func (f *FakeTerminal) WriteError(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors = append(f.Errors, s)
}

// AddCancelHandler registers a handler.
func (f *FakeTerminal) AddCancelHandler(h terminal.CancelHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls++
	f.handlers = append(f.handlers, h)
}

// RemoveCancelHandler unregisters a handler.
func (f *FakeTerminal) RemoveCancelHandler(h terminal.CancelHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemoveCalls++
	if i := slices.Index(f.handlers, h); i >= 0 {
		f.handlers = slices.Delete(f.handlers, i, i+1)
	}
}

// PressCancel notifies every registered handler synchronously.
func (f *FakeTerminal) PressCancel() {
	f.mu.Lock()
	handlers := slices.Clone(f.handlers)
	f.mu.Unlock()
	for _, h := range handlers {
		h.OnCancel()
	}
}

// HandlerCount returns the number of registered handlers.
func (f *FakeTerminal) HandlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// Output returns everything written with WriteLine, newline-joined.
func (f *FakeTerminal) Output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.Lines, "\n")
}

// ErrorLines returns a copy of the recorded error lines.
func (f *FakeTerminal) ErrorLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Errors)
}
