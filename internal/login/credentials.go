// Package login authenticates vsts-pi against Azure DevOps (or TFS) with a
// personal access token and keeps the credentials between runs.
package login

import (
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// KeyringService is the OS keyring service name for stored tokens.
const KeyringService = "vsts-pi"

// ErrNotLoggedIn is returned by Load when no credentials are stored.
var ErrNotLoggedIn = stderrors.New("not logged in")

// Credentials identify the service and how to authenticate against it.
type Credentials struct {
	URL  string `yaml:"url"`
	Auth string `yaml:"auth"`
	// Token is only written to the file when the OS keyring is unavailable.
	Token string `yaml:"token,omitempty"`
}

// Store persists credentials: URL and auth scheme in a YAML file, the token
// in the OS keyring keyed by URL.
type Store struct {
	path string
	log  logger.Logger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Noop()
	}
	return &Store{path: path, log: log}
}

// Path returns the credentials file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes c. It reports whether the token went to the OS keyring; when
// the keyring is unavailable the token is kept in the file, readable only by
// the current user.
func (s *Store) Save(c Credentials) (bool, error) {
	onDisk := c
	inKeyring := true
	if err := keyring.Set(KeyringService, c.URL, c.Token); err != nil {
		s.log.Warn("OS keyring unavailable, storing token in %s: %v", s.path, err)
		inKeyring = false
	} else {
		onDisk.Token = ""
	}

	data, err := yaml.Marshal(&onDisk)
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't encode credentials",
			"")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't create "+filepath.Dir(s.path),
			"Check permissions on the agent root directory")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't write "+s.path,
			"Check permissions on the agent root directory")
	}
	return inKeyring, nil
}

// Load reads stored credentials. It returns ErrNotLoggedIn when there are
// none.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't read "+s.path,
			"Check the file permissions")
	}

	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Stored credentials are corrupt",
			"Run 'vsts-pi logout' and log in again")
	}
	if c.URL == "" {
		return nil, ErrNotLoggedIn
	}

	if c.Token == "" {
		token, err := keyring.Get(KeyringService, c.URL)
		switch {
		case err == nil:
			c.Token = token
		case stderrors.Is(err, keyring.ErrNotFound):
			return nil, errors.New(errors.ErrAuth,
				"No token stored for "+c.URL,
				"Run 'vsts-pi login' again")
		default:
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				"Couldn't read the token from the OS keyring",
				"Unlock the keyring, or set VSTS_PAT")
		}
	}
	return &c, nil
}

// Delete removes the stored credentials. It reports whether anything was
// removed.
func (s *Store) Delete() (bool, error) {
	removed := false

	data, err := os.ReadFile(s.path)
	if err == nil {
		var c Credentials
		if yaml.Unmarshal(data, &c) == nil && c.URL != "" {
			err := keyring.Delete(KeyringService, c.URL)
			switch {
			case err == nil:
				removed = true
			case stderrors.Is(err, keyring.ErrNotFound):
			default:
				s.log.Warn("Couldn't remove token from the OS keyring: %v", err)
			}
		}
	}

	if err := os.Remove(s.path); err != nil {
		if !os.IsNotExist(err) {
			return removed, errors.WrapWithCode(err, errors.ErrAuth,
				"Couldn't remove "+s.path,
				"Delete the file by hand")
		}
	} else {
		removed = true
	}
	return removed, nil
}
