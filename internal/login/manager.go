package login

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/config"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/settings"
)

// Output is where the manager reports progress.
type Output interface {
	WriteLine(s string)
}

// Manager implements login and logout.
type Manager struct {
	out      Output
	store    *Store
	client   *http.Client
	prompter Prompter
	canAsk   func() bool
	log      logger.Logger

	// Values from config/environment (VSTS_URL, VSTS_PAT).
	defaultURL   string
	defaultToken string
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// WithPrompter sets how missing values are asked for. canAsk reports whether
// prompting is possible at all (e.g. stdin is a terminal).
func WithPrompter(p Prompter, canAsk func() bool) Option {
	return func(m *Manager) {
		m.prompter = p
		m.canAsk = canAsk
	}
}

// WithDefaults sets the URL and token used when no flag is given.
func WithDefaults(url, token string) Option {
	return func(m *Manager) {
		m.defaultURL = url
		m.defaultToken = token
	}
}

// WithLogger sets the trace logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a login manager storing credentials in store.
func NewManager(out Output, store *Store, opts ...Option) *Manager {
	m := &Manager{
		out:      out,
		store:    store,
		client:   NewHTTPClient(),
		prompter: HuhPrompter{},
		canAsk:   func() bool { return false },
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login resolves URL, auth scheme, and token (flag, then environment, then
// prompt), verifies them against the service, and stores them.
func (m *Manager) Login(ctx context.Context, s *settings.CommandSettings) (int, error) {
	auth := s.Auth
	if auth == "" {
		auth = settings.AuthPAT
	}
	if auth != settings.AuthPAT {
		return agent.ReturnCodeTerminatedError, errors.New(errors.ErrAuth,
			fmt.Sprintf("Unsupported auth scheme '%s'", s.Auth),
			"Use --auth pat with a personal access token")
	}

	url, err := m.resolve(s, s.URL, m.defaultURL, "Server URL", "https://dev.azure.com/<organization>", false)
	if err != nil {
		return agent.ReturnCodeTerminatedError, err
	}
	url = strings.TrimRight(url, "/")
	if err := config.ValidateURL(url); err != nil {
		return agent.ReturnCodeTerminatedError, err
	}

	token, err := m.resolve(s, s.Token, m.defaultToken, "Personal access token", "", true)
	if err != nil {
		return agent.ReturnCodeTerminatedError, err
	}
	if r, ok := m.log.(interface{ Redact(string) }); ok {
		r.Redact(token)
	}

	m.log.Info("Verifying credentials against %s", url)
	id, err := Verify(ctx, m.client, url, token)
	if err != nil {
		return agent.ReturnCodeTerminatedError, err
	}
	if id.DisplayName != "" {
		m.out.WriteLine("Connected as " + id.DisplayName)
	}

	inKeyring, err := m.store.Save(Credentials{URL: url, Auth: auth, Token: token})
	if err != nil {
		return agent.ReturnCodeTerminatedError, err
	}
	m.log.Info("Credentials saved to %s (token in keyring: %t)", m.store.Path(), inKeyring)
	m.out.WriteLine("Saved credentials for " + url)
	return agent.ReturnCodeSuccess, nil
}

// Logout removes stored credentials.
func (m *Manager) Logout() (int, error) {
	removed, err := m.store.Delete()
	if err != nil {
		return agent.ReturnCodeTerminatedError, err
	}
	if removed {
		m.out.WriteLine("Removed credentials")
	} else {
		m.out.WriteLine("Not logged in")
	}
	return agent.ReturnCodeSuccess, nil
}

// Load returns the credentials to use for service calls. VSTS_URL and
// VSTS_PAT (the manager defaults) override what is stored; with both set no
// login is needed.
func (m *Manager) Load() (*Credentials, error) {
	if m.defaultURL != "" && m.defaultToken != "" {
		return &Credentials{URL: strings.TrimRight(m.defaultURL, "/"), Auth: settings.AuthPAT, Token: m.defaultToken}, nil
	}

	c, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if m.defaultURL != "" {
		c.URL = strings.TrimRight(m.defaultURL, "/")
	}
	if m.defaultToken != "" {
		c.Token = m.defaultToken
	}
	return c, nil
}

// Client returns the HTTP client used for service calls.
func (m *Manager) Client() *http.Client {
	return m.client
}

func (m *Manager) resolve(s *settings.CommandSettings, flag, def, title, placeholder string, secret bool) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if def != "" {
		return def, nil
	}
	if s.Unattended || !m.canAsk() {
		return "", errors.New(errors.ErrAuth,
			title+" is required",
			"Pass it as a flag (--url, --token) or set VSTS_URL / VSTS_PAT")
	}
	return m.prompter.Input(title, placeholder, secret)
}
