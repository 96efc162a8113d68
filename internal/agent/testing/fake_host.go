// Package testing provides test doubles for the agent package.
package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/elgendy/vsts-agent/internal/agent"
)

// FakeHost records calls made against a host context and lets tests fire
// the termination notification on demand.
type FakeHost struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelCauseFunc

	handlers []agent.UnloadingHandler

	// Call tracking
	ShutdownRequests []agent.ShutdownReason
	DisposeCalls     int
	AddCalls         int
	RemoveCalls      int
}

// NewFakeHost creates a fake host with a live shutdown context.
func NewFakeHost() *FakeHost {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &FakeHost{ctx: ctx, cancel: cancel}
}

// ShutdownContext returns the fake's cancellation context.
func (h *FakeHost) ShutdownContext() context.Context {
	return h.ctx
}

// AddUnloadingHandler registers a handler.
func (h *FakeHost) AddUnloadingHandler(handler agent.UnloadingHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AddCalls++
	h.handlers = append(h.handlers, handler)
}

// RemoveUnloadingHandler unregisters a handler.
func (h *FakeHost) RemoveUnloadingHandler(handler agent.UnloadingHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.RemoveCalls++
	if i := slices.Index(h.handlers, handler); i >= 0 {
		h.handlers = slices.Delete(h.handlers, i, i+1)
	}
}

// RequestShutdown records the reason and cancels the context.
func (h *FakeHost) RequestShutdown(reason agent.ShutdownReason) {
	h.mu.Lock()
	h.ShutdownRequests = append(h.ShutdownRequests, reason)
	h.mu.Unlock()
	h.cancel(&agent.ShutdownError{Reason: reason})
}

// Dispose records the call and cancels the context.
func (h *FakeHost) Dispose() {
	h.mu.Lock()
	h.DisposeCalls++
	h.mu.Unlock()
	h.cancel(context.Canceled)
}

// Unload fires every registered handler synchronously, like a SIGTERM.
func (h *FakeHost) Unload() {
	h.mu.Lock()
	handlers := slices.Clone(h.handlers)
	h.mu.Unlock()
	for _, handler := range handlers {
		handler.OnUnloading()
	}
}

// HandlerCount returns the number of registered handlers.
func (h *FakeHost) HandlerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// Requests returns a copy of the recorded shutdown reasons.
func (h *FakeHost) Requests() []agent.ShutdownReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.ShutdownRequests)
}

// Disposed returns how many times Dispose was called.
func (h *FakeHost) Disposed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.DisposeCalls
}
