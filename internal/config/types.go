package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// DefaultExitOnUnloadTimeout bounds how long a termination request waits for
// the running command to finish its cleanup.
const DefaultExitOnUnloadTimeout = 30 * time.Second

// Config represents the agent settings file (~/.vsts-pi/config.yaml) merged
// with environment overrides.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// URL is the server or service URL. VSTS_URL overrides it.
	URL string `yaml:"url" mapstructure:"url"`

	// Token is a personal access token. Only ever set from VSTS_PAT; it is
	// never written back to disk by the config package.
	Token string `yaml:"-" mapstructure:"pat"`

	// Root is the agent home directory that the other paths default under.
	Root string `yaml:"root" mapstructure:"root"`

	// DiagDir holds trace logs.
	DiagDir string `yaml:"diag_dir" mapstructure:"diag_dir"`

	// TaskCacheDir holds task manifests and the resolved task index.
	TaskCacheDir string `yaml:"task_cache_dir" mapstructure:"task_cache_dir"`

	// WorkDir is the scratch directory handed to pipeline steps.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`

	// CredentialsFile stores the login URL and auth scheme.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`

	// ExitOnUnloadTimeout is how long a SIGTERM waits for cleanup.
	ExitOnUnloadTimeout time.Duration `yaml:"exit_on_unload_timeout" mapstructure:"exit_on_unload_timeout"`

	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Lock   LockConfig   `yaml:"lock" mapstructure:"lock"`
}

// LogConfig controls the diagnostic trace file.
type LogConfig struct {
	// Level: debug, info, warn, error. VSTS_PI_LOG_LEVEL overrides it.
	Level string `yaml:"level" mapstructure:"level"`

	MaxSizeMB  int `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days"`

	// Retention across runs; each invocation writes its own trace file.
	KeepRuns   int `yaml:"keep_runs" mapstructure:"keep_runs"`
	KeepDays   int `yaml:"keep_days" mapstructure:"keep_days"`
	MaxTotalMB int `yaml:"max_total_mb" mapstructure:"max_total_mb"`
}

// OutputConfig controls terminal output.
type OutputConfig struct {
	// Color: auto, always, never.
	Color string `yaml:"color" mapstructure:"color"`

	// Timing shows per-step durations.
	Timing bool `yaml:"timing" mapstructure:"timing"`
}

// LockConfig controls the work directory lock that keeps runs from overlapping.
type LockConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Timeout is how long a run waits for another run to finish. Zero fails
	// immediately.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Stale is the age after which a lock is treated as abandoned.
	Stale time.Duration `yaml:"stale" mapstructure:"stale"`
}

// DefaultConfig returns a Config with default values, rooted at ~/.vsts-pi.
func DefaultConfig() *Config {
	root := ExpandTilde(DefaultRoot)
	return &Config{
		Version:             CurrentConfigVersion,
		Root:                root,
		DiagDir:             joinRoot(root, "_diag"),
		TaskCacheDir:        joinRoot(root, "_tasks"),
		WorkDir:             joinRoot(root, "_work"),
		CredentialsFile:     joinRoot(root, "credentials.yaml"),
		ExitOnUnloadTimeout: DefaultExitOnUnloadTimeout,
		Log: LogConfig{
			Level:    "info",
			KeepRuns: 50,
			KeepDays: 30,
		},
		Output: OutputConfig{
			Color:  "auto",
			Timing: true,
		},
		Lock: LockConfig{
			Enabled: true,
			Stale:   6 * time.Hour,
		},
	}
}
