// Package commander is the entry-point controller of vsts-pi. It picks the one
// requested operation from CommandSettings, delegates it to the login service
// or the pipeline runner, and turns the outcome into a process exit code while
// the shutdown coordinator guards against interruption.
package commander

import (
	"context"
	"fmt"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/elgendy/vsts-agent/internal/shutdown"
)

// Terminal is the console the commander writes to.
type Terminal interface {
	shutdown.Console
	WriteError(s string)
}

// Host is the process host context.
type Host interface {
	shutdown.Host
	ShutdownContext() context.Context
}

// LoginService authenticates against the service and manages stored
// credentials. Both operations choose their own exit code.
type LoginService interface {
	Login(ctx context.Context, s *settings.CommandSettings) (int, error)
	Logout() (int, error)
}

// PipelineRunner lints, validates, and runs pipeline files.
type PipelineRunner interface {
	Lint(ctx context.Context, s *settings.CommandSettings) error
	Validate(ctx context.Context, s *settings.CommandSettings) error
	Run(ctx context.Context, s *settings.CommandSettings) error
}

// Commander dispatches one command per Run call.
type Commander struct {
	term   Terminal
	host   Host
	login  LoginService
	runner PipelineRunner

	build agent.BuildInfo
	log   logger.Logger

	shutdownOpts []shutdown.Option
	coord        *shutdown.Coordinator
}

// Option configures a Commander.
type Option func(*Commander)

// WithLogger sets the trace logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Commander) {
		c.log = log
	}
}

// WithBuildInfo sets the version and commit reported by --version and
// --commit.
func WithBuildInfo(b agent.BuildInfo) Option {
	return func(c *Commander) {
		c.build = b
	}
}

// WithShutdownOptions passes options to the shutdown coordinator.
func WithShutdownOptions(opts ...shutdown.Option) Option {
	return func(c *Commander) {
		c.shutdownOpts = append(c.shutdownOpts, opts...)
	}
}

// New creates a commander over its collaborators.
func New(term Terminal, host Host, login LoginService, runner PipelineRunner, opts ...Option) *Commander {
	c := &Commander{
		term:   term,
		host:   host,
		login:  login,
		runner: runner,
		build:  agent.BuildInfo{Version: "dev", Commit: "none"},
		log:    logger.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	coordOpts := append([]shutdown.Option{shutdown.WithLogger(c.log)}, c.shutdownOpts...)
	c.coord = shutdown.NewCoordinator(term, host, coordOpts...)
	return c
}

// Coordinator exposes the shutdown coordinator guarding Run.
func (c *Commander) Coordinator() *shutdown.Coordinator {
	return c.coord
}

// Run executes the highest-priority command in s and returns the process exit
// code. Errors and panics from the delegated call never escape: they are
// logged, reported as one error line, and mapped to TerminatedError. The
// interruption handlers are registered for the duration of the call and
// always removed before Run returns.
func (c *Commander) Run(s *settings.CommandSettings) int {
	if s == nil {
		s = &settings.CommandSettings{}
	}
	c.log.Info("Run: %s", actionName(s))

	c.coord.Arm()
	defer c.coord.Finalize()

	code, err := c.dispatch(c.host.ShutdownContext(), s)
	if err != nil {
		c.log.Error("%s failed: %v", actionName(s), err)
		c.term.WriteError(errors.Summarize(err))
		return agent.ReturnCodeTerminatedError
	}
	c.log.Info("%s finished with exit code %d", actionName(s), code)
	return code
}

func (c *Commander) dispatch(ctx context.Context, s *settings.CommandSettings) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	switch {
	case s.Help:
		c.printUsage()
		return agent.ReturnCodeSuccess, nil

	case s.Version:
		c.term.WriteLine(c.build.Version)
		return agent.ReturnCodeSuccess, nil

	case s.Commit:
		c.term.WriteLine(c.build.Commit)
		return agent.ReturnCodeSuccess, nil

	case s.Lint:
		if err := c.runner.Lint(ctx, s); err != nil {
			return 0, err
		}
		return agent.ReturnCodeSuccess, nil

	case s.Login:
		return c.login.Login(ctx, s)

	case s.Logout:
		return c.login.Logout()

	case s.Validate:
		if err := c.runner.Validate(ctx, s); err != nil {
			return 0, err
		}
		return agent.ReturnCodeSuccess, nil

	case s.Run:
		if err := c.runner.Run(ctx, s); err != nil {
			return 0, err
		}
		return agent.ReturnCodeSuccess, nil
	}

	c.printUsage()
	return agent.ReturnCodeTerminatedError, nil
}

func actionName(s *settings.CommandSettings) string {
	if a := s.Action(); a != "" {
		return a
	}
	return "usage"
}
