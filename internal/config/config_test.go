package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the agent root at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv(EnvRoot, root)
	t.Setenv(EnvURL, "")
	t.Setenv(EnvToken, "")
	t.Setenv(EnvLogLevel, "")
	return root
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.ExitOnUnloadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Log.KeepRuns)
	assert.Equal(t, 30, cfg.Log.KeepDays)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.True(t, cfg.Output.Timing)
	assert.Equal(t, LockConfig{Enabled: true, Stale: 6 * time.Hour}, cfg.Lock)
	assert.Equal(t, filepath.Join(cfg.Root, "_diag"), cfg.DiagDir)
	assert.Equal(t, filepath.Join(cfg.Root, "_tasks"), cfg.TaskCacheDir)
	assert.Equal(t, filepath.Join(cfg.Root, "credentials.yaml"), cfg.CredentialsFile)
	assert.Empty(t, cfg.URL)
	assert.Empty(t, cfg.Token)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	root := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, filepath.Join(root, "_diag"), cfg.DiagDir)
	assert.Equal(t, filepath.Join(root, "_work"), cfg.WorkDir)
	assert.Equal(t, DefaultExitOnUnloadTimeout, cfg.ExitOnUnloadTimeout)
	assert.Equal(t, 6*time.Hour, cfg.Lock.Stale)
}

func TestLoad_DefaultLocation(t *testing.T) {
	root := isolate(t)

	content := `
version: 1
url: https://dev.azure.com/contoso
exit_on_unload_timeout: 5s
task_cache_dir: tasks
log:
  level: debug
  max_size_mb: 20
output:
  color: never
  timing: false
lock:
  timeout: 2m
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://dev.azure.com/contoso", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.ExitOnUnloadTimeout)
	assert.Equal(t, filepath.Join(root, "tasks"), cfg.TaskCacheDir, "relative paths resolve under the root")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Log.MaxSizeMB)
	assert.Equal(t, "never", cfg.Output.Color)
	assert.False(t, cfg.Output.Timing)
	assert.Equal(t, 2*time.Minute, cfg.Lock.Timeout)
	assert.True(t, cfg.Lock.Enabled)
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://tfs.example.com/tfs\ndiag_dir: "+dir+"/logs\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tfs.example.com/tfs", cfg.URL)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.DiagDir)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("url: [unclosed\n"), 0o644))

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	root := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("url: https://from-file.example.com\n"), 0o644))

	t.Setenv(EnvURL, "https://from-env.example.com")
	t.Setenv(EnvToken, "pat-from-env")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example.com", cfg.URL)
	assert.Equal(t, "pat-from-env", cfg.Token)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ZeroUnloadTimeoutKept(t *testing.T) {
	root := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("exit_on_unload_timeout: 0s\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.ExitOnUnloadTimeout)
}

func TestFind(t *testing.T) {
	root := isolate(t)

	path, err := Find()
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0o644))
	path, err = Find()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), path)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvURL, "")
	os.Unsetenv(EnvURL)

	require.NoError(t, LoadDotEnv(dir), "missing .env is ignored")

	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFileName), []byte("VSTS_URL=https://dotenv.example.com\n"), 0o644))
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "https://dotenv.example.com", os.Getenv(EnvURL))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvURL, "https://already-set.example.com")

	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFileName), []byte("VSTS_URL=https://dotenv.example.com\n"), 0o644))
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "https://already-set.example.com", os.Getenv(EnvURL))
}
