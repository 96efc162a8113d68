package cli

import (
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/spf13/cobra"
)

var verbs = []struct {
	name  string
	short string
}{
	{settings.VerbLogin, "Login and connect with the service. Only needed once"},
	{settings.VerbRun, "Run a pipeline"},
	{settings.VerbLint, "Validate syntax of a yaml file"},
	{settings.VerbValidate, "Validate a pipeline file, including referenced tasks and inputs"},
	{settings.VerbLogout, "Logout"},
	{settings.VerbVersion, "Print the agent version"},
}

func verbCommands(run RunFunc) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(verbs))
	for _, v := range verbs {
		cmds = append(cmds, &cobra.Command{
			Use:   v.name,
			Short: v.short,
			Args:  cobra.NoArgs,
			RunE:  dispatch(run, v.name),
		})
	}
	return cmds
}
