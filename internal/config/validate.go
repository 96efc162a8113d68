package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/elgendy/vsts-agent/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
// ExitOnUnloadTimeout is not range-checked.
func Validate(cfg *Config) error {
	// Check version
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but vsts-pi only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Update vsts-pi to the latest release")
	}

	if cfg.URL != "" {
		if err := ValidateURL(cfg.URL); err != nil {
			return err
		}
	}

	dirs := []struct {
		key   string
		value string
	}{
		{"diag_dir", cfg.DiagDir},
		{"task_cache_dir", cfg.TaskCacheDir},
		{"work_dir", cfg.WorkDir},
		{"credentials_file", cfg.CredentialsFile},
	}
	for _, d := range dirs {
		if strings.TrimSpace(d.value) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' is empty", d.key),
				"Remove the key to use the default, or set a path")
		}
	}

	switch cfg.Output.Color {
	case "", "auto", "always", "never":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output.color '%s'", cfg.Output.Color),
			"Use one of: auto, always, never")
	}

	if cfg.Lock.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("lock.timeout can't be negative (got %s)", cfg.Lock.Timeout),
			"Use 0s to fail immediately when another run holds the lock")
	}
	if cfg.Lock.Stale < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("lock.stale can't be negative (got %s)", cfg.Lock.Stale),
			"Use 0s to never treat a lock as abandoned")
	}

	return nil
}

// ValidateURL checks that s is an absolute http(s) URL.
func ValidateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a valid URL", s),
			"Use the form https://dev.azure.com/<organization>")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' is not an http(s) URL", s),
			"Use the form https://dev.azure.com/<organization>")
	}
	return nil
}
