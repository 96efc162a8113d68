// Package settings turns parsed command-line flags into the immutable
// CommandSettings value the commander dispatches on.
package settings

import (
	"fmt"
	"strings"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagHelp     = "help"
	FlagVersion  = "version"
	FlagCommit   = "commit"
	FlagLint     = "lint"
	FlagLogin    = "login"
	FlagLogout   = "logout"
	FlagValidate = "validate"
	FlagRun      = "run"

	FlagYaml       = "yaml"
	FlagOffline    = "offline"
	FlagURL        = "url"
	FlagAuth       = "auth"
	FlagToken      = "token"
	FlagConfig     = "config"
	FlagTrace      = "trace"
	FlagNoColor    = "no-color"
	FlagUnattended = "unattended"
)

// Verbs accepted as the first positional argument or as subcommands.
const (
	VerbLogin    = "login"
	VerbLogout   = "logout"
	VerbLint     = "lint"
	VerbValidate = "validate"
	VerbRun      = "run"
	VerbVersion  = "version"
)

// AuthPAT is the only supported authentication scheme.
const AuthPAT = "pat"

// CommandSettings is the requested action and its options. Several action
// flags may be set; the commander honors the highest-priority one.
type CommandSettings struct {
	Help     bool
	Version  bool
	Commit   bool
	Lint     bool
	Login    bool
	Logout   bool
	Validate bool
	Run      bool

	// Yaml is the pipeline file. Empty means the first *.yml in the working
	// directory.
	Yaml    string
	Offline bool

	URL   string
	Auth  string
	Token string

	ConfigPath string
	Trace      bool
	NoColor    bool
	Unattended bool
}

// RegisterFlags declares every vsts-pi flag on fs. --yml is accepted as an
// alias of --yaml.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolP(FlagHelp, "h", false, "Print usage")
	fs.Bool(FlagVersion, false, "Print the agent version")
	fs.Bool(FlagCommit, false, "Print the build commit hash")
	fs.Bool(FlagLint, false, "Validate syntax of a yaml file")
	fs.Bool(FlagLogin, false, "Login and connect with the service")
	fs.Bool(FlagLogout, false, "Logout")
	fs.Bool(FlagValidate, false, "Validate a pipeline file, including referenced tasks and inputs")
	fs.Bool(FlagRun, false, "Run a pipeline")

	fs.String(FlagYaml, "", "Path to a yaml file (default: first *.yml in the working directory)")
	fs.Bool(FlagOffline, false, "Do not resolve task versions; use the local task cache")
	fs.String(FlagURL, "", "URL of the server or service")
	fs.String(FlagAuth, "", "Authentication scheme (pat)")
	fs.String(FlagToken, "", "Personal access token")
	fs.String(FlagConfig, "", "Config file (default: ~/.vsts-pi/config.yaml)")
	fs.Bool(FlagTrace, false, "Mirror the trace log to stderr")
	fs.Bool(FlagNoColor, false, "Disable colored output")
	fs.Bool(FlagUnattended, false, "Never prompt; fail when a value is missing")

	fs.SetNormalizeFunc(NormalizeFlagName)
}

// NormalizeFlagName maps flag aliases to their canonical names.
func NormalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "yml" {
		name = FlagYaml
	}
	return pflag.NormalizedName(name)
}

// FromFlags builds CommandSettings from a parsed flag set. verb, when not
// empty, sets the matching action flag.
func FromFlags(fs *pflag.FlagSet, verb string) (*CommandSettings, error) {
	s := &CommandSettings{}

	bools := []struct {
		name string
		dst  *bool
	}{
		{FlagHelp, &s.Help},
		{FlagVersion, &s.Version},
		{FlagCommit, &s.Commit},
		{FlagLint, &s.Lint},
		{FlagLogin, &s.Login},
		{FlagLogout, &s.Logout},
		{FlagValidate, &s.Validate},
		{FlagRun, &s.Run},
		{FlagOffline, &s.Offline},
		{FlagTrace, &s.Trace},
		{FlagNoColor, &s.NoColor},
		{FlagUnattended, &s.Unattended},
	}
	for _, b := range bools {
		v, err := fs.GetBool(b.name)
		if err != nil {
			return nil, flagError(b.name, err)
		}
		*b.dst = v
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{FlagYaml, &s.Yaml},
		{FlagURL, &s.URL},
		{FlagAuth, &s.Auth},
		{FlagToken, &s.Token},
		{FlagConfig, &s.ConfigPath},
	}
	for _, f := range strs {
		v, err := fs.GetString(f.name)
		if err != nil {
			return nil, flagError(f.name, err)
		}
		*f.dst = strings.TrimSpace(v)
	}
	s.Auth = strings.ToLower(s.Auth)

	if err := s.applyVerb(verb); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CommandSettings) applyVerb(verb string) error {
	switch strings.ToLower(verb) {
	case "":
	case VerbLogin:
		s.Login = true
	case VerbLogout:
		s.Logout = true
	case VerbLint:
		s.Lint = true
	case VerbValidate:
		s.Validate = true
	case VerbRun:
		s.Run = true
	case VerbVersion:
		s.Version = true
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown command '%s'", verb),
			"Run 'vsts-pi --help' to see the available commands")
	}
	return nil
}

// Action names the highest-priority action that is set, or "" when none is.
func (s *CommandSettings) Action() string {
	switch {
	case s.Help:
		return FlagHelp
	case s.Version:
		return FlagVersion
	case s.Commit:
		return FlagCommit
	case s.Lint:
		return FlagLint
	case s.Login:
		return FlagLogin
	case s.Logout:
		return FlagLogout
	case s.Validate:
		return FlagValidate
	case s.Run:
		return FlagRun
	default:
		return ""
	}
}

func flagError(name string, err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig,
		fmt.Sprintf("Flag --%s is not registered", name),
		"This is a bug in vsts-pi; please report it")
}
