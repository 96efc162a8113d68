package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/elgendy/vsts-agent/internal/terminal"
	"github.com/spf13/cobra"
)

// RunFunc executes parsed settings and returns the exit code.
type RunFunc func(s *settings.CommandSettings) int

type errorWriter interface {
	WriteError(s string)
}

// Execute runs vsts-pi with the process arguments and returns the exit code.
func Execute(build agent.BuildInfo) int {
	run := func(s *settings.CommandSettings) int {
		return runAgent(s, build)
	}
	return execute(run, os.Args[1:], terminal.Std())
}

func execute(run RunFunc, args []string, errOut errorWriter) int {
	helpCode := agent.ReturnCodeSuccess
	root := newRootCommand(run, &helpCode)
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		// cobra gives the help func no way to fail, so its code comes back
		// through helpCode.
		return helpCode
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			errOut.WriteError(fmt.Sprintf("Unknown command '%s'", name))
		} else {
			errOut.WriteError(errors.Summarize(err))
		}
		return run(&settings.CommandSettings{})
	}

	errOut.WriteError(errors.Summarize(err))
	return agent.ReturnCodeTerminatedError
}

// NewRootCommand builds the command tree. Every command, including help,
// calls run exactly once.
func NewRootCommand(run RunFunc) *cobra.Command {
	var helpCode int
	return newRootCommand(run, &helpCode)
}

func newRootCommand(run RunFunc, helpCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "vsts-pi [command]",
		Short:         "Run Azure Pipelines YAML on this machine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          dispatch(run, ""),
	}
	root.CompletionOptions.DisableDefaultCmd = true
	settings.RegisterFlags(root.PersistentFlags())
	root.SetGlobalNormalizationFunc(settings.NormalizeFlagName)

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		verb := ""
		if cmd != cmd.Root() {
			verb = cmd.Name()
		}
		s, err := settings.FromFlags(cmd.Flags(), verb)
		if err != nil {
			s = &settings.CommandSettings{}
		}
		s.Help = true
		*helpCode = run(s)
	})

	for _, c := range verbCommands(run) {
		root.AddCommand(c)
	}
	return root
}

// dispatch turns the parsed flags into settings and runs them.
func dispatch(run RunFunc, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := settings.FromFlags(cmd.Flags(), verb)
		if err != nil {
			return err
		}
		if code := run(s); code != agent.ReturnCodeSuccess {
			return errors.NewExitError(code)
		}
		return nil
	}
}

// isUnknownCommandError reports cobra's errors for unknown subcommands and
// flags.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "vsts-pi"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
