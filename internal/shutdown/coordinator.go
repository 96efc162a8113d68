package shutdown

import (
	"os"
	"sync"
	"time"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/terminal"
)

// Console is the part of the terminal the coordinator needs.
type Console interface {
	WriteLine(s string)
	AddCancelHandler(h terminal.CancelHandler)
	RemoveCancelHandler(h terminal.CancelHandler)
}

// Host is the part of the host context the coordinator needs.
type Host interface {
	AddUnloadingHandler(h agent.UnloadingHandler)
	RemoveUnloadingHandler(h agent.UnloadingHandler)
	RequestShutdown(reason agent.ShutdownReason)
	Dispose()
}

// State is the coordinator's lifecycle state.
type State int

const (
	Idle State = iota
	Armed
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// ExitingMessage is written to the terminal on the cancel-key fast exit.
const ExitingMessage = "Exiting..."

// Coordinator listens for the cancel key and for termination requests while a
// command runs.
//
// The cancel key is a fast exit: it disposes the host and ends the process
// immediately with TerminatedError, skipping Finalize. A termination request
// is cooperative: it cancels the host context and waits (bounded) for the
// command to reach Finalize.
//
//	c.Arm()
//	defer c.Finalize()
//	return dispatch(ctx)
type Coordinator struct {
	console Console
	host    Host
	log     logger.Logger

	latch   *Latch
	timeout time.Duration
	exit    func(int)

	mu    sync.Mutex
	state State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithUnloadTimeout bounds the termination handler's wait. The value is used
// as is.
func WithUnloadTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithExitFunc replaces os.Exit on the fast-exit path.
func WithExitFunc(exit func(int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithLogger sets the trace logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(console Console, host Host, opts ...Option) *Coordinator {
	c := &Coordinator{
		console: console,
		host:    host,
		log:     logger.Noop(),
		latch:   NewLatch(),
		timeout: agent.ExitOnUnloadTimeout,
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Arm resets the completion latch and registers both handlers.
func (c *Coordinator) Arm() {
	c.latch.Reset()
	c.setState(Armed)

	c.console.AddCancelHandler(c)
	c.host.AddUnloadingHandler(c)
	c.log.Debug("Shutdown handlers registered")
}

// Finalize removes both handlers and then sets the completion latch. It must
// run on every exit path of the command, so call it with defer.
func (c *Coordinator) Finalize() {
	c.setState(Finalizing)

	c.console.RemoveCancelHandler(c)
	c.host.RemoveUnloadingHandler(c)

	c.latch.Set()
	c.setState(Done)
	c.log.Debug("Shutdown handlers removed")
}

// OnCancel is the cancel-key handler. It does not return in production.
func (c *Coordinator) OnCancel() {
	c.log.Info("Cancel key pressed, exiting")
	c.console.WriteLine(ExitingMessage)
	c.host.Dispose()
	c.exit(agent.ReturnCodeTerminatedError)
}

// OnUnloading is the termination handler. It requests a cooperative shutdown
// and waits up to the unload timeout for Finalize.
func (c *Coordinator) OnUnloading() {
	c.log.Info("Termination requested, waiting up to %s for the command to finish", c.timeout)
	c.host.RequestShutdown(agent.UserCancelled)

	if !c.latch.Wait(c.timeout) {
		c.log.Warn("Command did not finish within %s", c.timeout)
		return
	}
	c.log.Info("Command finished after termination request")
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Completed reports whether the completion latch is set.
func (c *Coordinator) Completed() bool {
	return c.latch.IsSet()
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
