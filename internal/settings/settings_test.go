package settings

import (
	"testing"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("vsts-pi", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestFromFlags_Defaults(t *testing.T) {
	s, err := FromFlags(parse(t), "")
	require.NoError(t, err)

	assert.Equal(t, &CommandSettings{}, s)
	assert.Empty(t, s.Action())
}

func TestFromFlags_ActionFlags(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"--help", FlagHelp},
		{"--version", FlagVersion},
		{"--commit", FlagCommit},
		{"--lint", FlagLint},
		{"--login", FlagLogin},
		{"--logout", FlagLogout},
		{"--validate", FlagValidate},
		{"--run", FlagRun},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			s, err := FromFlags(parse(t, tt.flag), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Action())
		})
	}
}

func TestFromFlags_Verbs(t *testing.T) {
	tests := []struct {
		verb string
		want string
	}{
		{VerbLogin, FlagLogin},
		{VerbLogout, FlagLogout},
		{VerbLint, FlagLint},
		{VerbValidate, FlagValidate},
		{VerbRun, FlagRun},
		{VerbVersion, FlagVersion},
		{"RUN", FlagRun},
	}

	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			s, err := FromFlags(parse(t), tt.verb)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Action())
		})
	}
}

func TestFromFlags_UnknownVerb(t *testing.T) {
	_, err := FromFlags(parse(t), "deploy")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "deploy")
}

func TestFromFlags_Options(t *testing.T) {
	s, err := FromFlags(parse(t,
		"--yaml", "ci.yml",
		"--offline",
		"--url", " https://dev.azure.com/org ",
		"--auth", "PAT",
		"--token", "abc",
		"--config", "/tmp/config.yaml",
		"--trace",
		"--no-color",
		"--unattended",
	), VerbRun)
	require.NoError(t, err)

	assert.Equal(t, &CommandSettings{
		Run:        true,
		Yaml:       "ci.yml",
		Offline:    true,
		URL:        "https://dev.azure.com/org",
		Auth:       AuthPAT,
		Token:      "abc",
		ConfigPath: "/tmp/config.yaml",
		Trace:      true,
		NoColor:    true,
		Unattended: true,
	}, s)
}

func TestFromFlags_YmlAlias(t *testing.T) {
	s, err := FromFlags(parse(t, "--yml", "vsts-ci.yml"), VerbValidate)
	require.NoError(t, err)
	assert.Equal(t, "vsts-ci.yml", s.Yaml)
}

func TestFromFlags_UnregisteredFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("bare", pflag.ContinueOnError)
	_, err := FromFlags(fs, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestAction_Priority(t *testing.T) {
	tests := []struct {
		name string
		s    CommandSettings
		want string
	}{
		{"help beats everything", CommandSettings{Help: true, Version: true, Run: true}, FlagHelp},
		{"version beats commit", CommandSettings{Version: true, Commit: true}, FlagVersion},
		{"commit beats lint", CommandSettings{Commit: true, Lint: true}, FlagCommit},
		{"lint beats login", CommandSettings{Lint: true, Login: true}, FlagLint},
		{"login beats logout", CommandSettings{Login: true, Logout: true}, FlagLogin},
		{"logout beats validate", CommandSettings{Logout: true, Validate: true}, FlagLogout},
		{"validate beats run", CommandSettings{Validate: true, Run: true}, FlagValidate},
		{"run alone", CommandSettings{Run: true, Offline: true}, FlagRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Action())
		})
	}
}
