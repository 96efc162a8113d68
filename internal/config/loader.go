package config

import (
	"os"
	"path/filepath"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultRoot is the agent home directory.
	DefaultRoot = "~/.vsts-pi"
	// ConfigFileName is the config file name inside the agent root.
	ConfigFileName = "config.yaml"
	// DotEnvFileName is loaded from the working directory before env binding.
	DotEnvFileName = ".env"
)

// Environment variables that override config values.
const (
	EnvURL      = "VSTS_URL"
	EnvToken    = "VSTS_PAT"
	EnvLogLevel = "VSTS_PI_LOG_LEVEL"
	EnvRoot     = "VSTS_PI_ROOT"
)

// Load reads the config from path, or from the default location when path is
// empty. A missing default file is not an error; defaults are used instead.
// Environment overrides are always applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Specified config file not found: "+path,
			"Check the path passed to --config")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check "+path+" exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find returns the default config path if the file exists, or "" otherwise.
// The agent root is VSTS_PI_ROOT when set, else ~/.vsts-pi.
func Find() (string, error) {
	path := filepath.Join(rootDir(), ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot access config file: "+path,
			"Check file permissions")
	}
	return path, nil
}

// LoadDotEnv loads KEY=VALUE pairs from .env in dir into the process
// environment. Variables already set are not overridden and a missing file is
// ignored.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, DotEnvFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read "+path,
			"Each line should look like VSTS_URL=https://dev.azure.com/org")
	}
	return nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		source := "the environment"
		if path != "" {
			source = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+source)
	}

	cfg.Root = Expand(cfg.Root)
	cfg.DiagDir = resolveUnderRoot(cfg.Root, cfg.DiagDir, "_diag")
	cfg.TaskCacheDir = resolveUnderRoot(cfg.Root, cfg.TaskCacheDir, "_tasks")
	cfg.WorkDir = resolveUnderRoot(cfg.Root, cfg.WorkDir, "_work")
	cfg.CredentialsFile = resolveUnderRoot(cfg.Root, cfg.CredentialsFile, "credentials.yaml")

	return cfg, nil
}

// setDefaults registers the keys viper should know about even when neither the
// file nor the environment sets them. Directory keys are left empty so they
// follow the configured root.
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", CurrentConfigVersion)
	v.SetDefault("url", "")
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("diag_dir", "")
	v.SetDefault("task_cache_dir", "")
	v.SetDefault("work_dir", "")
	v.SetDefault("credentials_file", "")
	v.SetDefault("exit_on_unload_timeout", DefaultExitOnUnloadTimeout.String())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 0)
	v.SetDefault("log.max_backups", 0)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.keep_runs", 50)
	v.SetDefault("log.keep_days", 30)
	v.SetDefault("log.max_total_mb", 0)
	v.SetDefault("output.color", "auto")
	v.SetDefault("output.timing", true)
	v.SetDefault("lock.enabled", true)
	v.SetDefault("lock.timeout", "0s")
	v.SetDefault("lock.stale", "6h")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("url", EnvURL)
	_ = v.BindEnv("pat", EnvToken)
	_ = v.BindEnv("log.level", EnvLogLevel)
	_ = v.BindEnv("root", EnvRoot)
}

// rootDir resolves the agent root without reading the config file.
func rootDir() string {
	if root := os.Getenv(EnvRoot); root != "" {
		return Expand(root)
	}
	return ExpandTilde(DefaultRoot)
}

// resolveUnderRoot expands a configured path, or derives it from the root
// when unset. Relative paths are taken relative to the root.
func resolveUnderRoot(root, value, def string) string {
	if value == "" {
		return joinRoot(root, def)
	}
	value = Expand(value)
	if !filepath.IsAbs(value) {
		return joinRoot(root, value)
	}
	return value
}

func joinRoot(root, name string) string {
	return filepath.Join(root, name)
}
