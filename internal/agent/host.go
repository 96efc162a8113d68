package agent

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/elgendy/vsts-agent/internal/logger"
)

// UnloadingHandler is notified when the process receives a termination
// request. OnUnloading runs on the signal goroutine and may block; the process
// exits once every handler has returned.
type UnloadingHandler interface {
	OnUnloading()
}

// HostContext owns the root cancellation context of one agent process and the
// termination notification source.
//
//	host := agent.NewHostContext(log)
//	host.Start()
//	defer host.Dispose()
//	ctx := host.ShutdownContext()
type HostContext struct {
	log    logger.Logger
	syncer logger.Syncer

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	handlers []UnloadingHandler
	started  bool

	signals []os.Signal
	sigChan chan os.Signal
	exit    func(int)

	disposeOnce sync.Once
}

// HostOption configures a HostContext.
type HostOption func(*HostContext)

// WithExitFunc replaces os.Exit for the termination path.
func WithExitFunc(exit func(int)) HostOption {
	return func(h *HostContext) {
		h.exit = exit
	}
}

// WithSyncer flushes the given logger on Dispose.
func WithSyncer(s logger.Syncer) HostOption {
	return func(h *HostContext) {
		h.syncer = s
	}
}

// WithSignals overrides the signals treated as termination requests.
// Default: SIGTERM and SIGHUP.
func WithSignals(sigs ...os.Signal) HostOption {
	return func(h *HostContext) {
		h.signals = sigs
	}
}

// NewHostContext creates a host context. Signal delivery starts with Start.
func NewHostContext(log logger.Logger, opts ...HostOption) *HostContext {
	if log == nil {
		log = logger.Noop()
	}
	ctx, cancel := context.WithCancelCause(context.Background())

	h := &HostContext{
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGHUP},
		sigChan: make(chan os.Signal, 1),
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ShutdownContext is cancelled once shutdown is requested or the host is
// disposed. Long-running commands observe it cooperatively.
func (h *HostContext) ShutdownContext() context.Context {
	return h.ctx
}

// Start begins listening for termination signals. Calling it more than once
// is a no-op.
func (h *HostContext) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return
	}
	h.started = true

	signal.Notify(h.sigChan, h.signals...)
	go func() {
		for sig := range h.sigChan {
			h.log.Info("Received %s, unloading", sig)
			h.Unload()
			h.exit(ReturnCodeTerminatedError)
		}
	}()
}

// AddUnloadingHandler registers h to be notified on termination.
func (h *HostContext) AddUnloadingHandler(handler UnloadingHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// RemoveUnloadingHandler removes a handler added with AddUnloadingHandler.
// Removing a handler that is not registered is a no-op.
func (h *HostContext) RemoveUnloadingHandler(handler UnloadingHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := slices.Index(h.handlers, handler); i >= 0 {
		h.handlers = slices.Delete(h.handlers, i, i+1)
	}
}

// UnloadingHandlers returns how many handlers are registered.
func (h *HostContext) UnloadingHandlers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// Unload notifies every registered handler synchronously, in registration
// order. With no handlers registered the context is cancelled with
// OperatingSystemShutdown instead.
func (h *HostContext) Unload() {
	h.mu.Lock()
	handlers := slices.Clone(h.handlers)
	h.mu.Unlock()

	if len(handlers) == 0 {
		h.RequestShutdown(OperatingSystemShutdown)
		return
	}
	for _, handler := range handlers {
		handler.OnUnloading()
	}
}

// RequestShutdown cancels the shutdown context with the given reason. Only the
// first request's reason is kept.
func (h *HostContext) RequestShutdown(reason ShutdownReason) {
	if h.ctx.Err() == nil {
		h.log.Info("Agent shutdown requested: %s", reason)
	}
	h.cancel(&ShutdownError{Reason: reason})
}

// ShutdownReason reports why the context was cancelled, if it was.
func (h *HostContext) ShutdownReason() (ShutdownReason, bool) {
	return ReasonFrom(h.ctx)
}

// Dispose cancels the context, stops signal delivery, and flushes the logger.
// It is safe to call more than once and from any goroutine.
func (h *HostContext) Dispose() {
	h.disposeOnce.Do(func() {
		h.cancel(context.Canceled)

		h.mu.Lock()
		if h.started {
			signal.Stop(h.sigChan)
		}
		h.mu.Unlock()

		if h.syncer != nil {
			_ = h.syncer.Sync()
		}
	})
}
