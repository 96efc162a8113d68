package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/commander"
	"github.com/elgendy/vsts-agent/internal/config"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/lock"
	"github.com/elgendy/vsts-agent/internal/logger"
	"github.com/elgendy/vsts-agent/internal/login"
	"github.com/elgendy/vsts-agent/internal/pipeline"
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/elgendy/vsts-agent/internal/shutdown"
	"github.com/elgendy/vsts-agent/internal/terminal"
	"github.com/elgendy/vsts-agent/internal/ui"
	"go.uber.org/zap/zapcore"
)

// runAgent loads the configuration, builds the agent around the real
// terminal and host, and dispatches s.
func runAgent(s *settings.CommandSettings, build agent.BuildInfo) int {
	term := terminal.Std()

	wd, err := os.Getwd()
	if err != nil {
		term.WriteError(errors.Summarize(errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't determine the working directory", "")))
		return agent.ReturnCodeTerminatedError
	}

	cfg, fallback, err := resolveConfig(s, wd, term.ErrOut())
	if err != nil {
		term.WriteError(errors.Summarize(err))
		return agent.ReturnCodeTerminatedError
	}

	ui.ConfigureColor(colorMode(s, cfg), term.Out())

	var log logger.Logger = logger.Noop()
	var syncer logger.Syncer
	if !fallback {
		log, syncer = openTrace(s, cfg)
	}
	logger.SetDefault(log)

	host := agent.NewHostContext(log, agent.WithSyncer(syncer))
	host.Start()
	defer host.Dispose()

	return buildCommander(cfg, build, term, host, log, wd).Run(s)
}

// resolveConfig loads the config for s. Help, version, commit and usage
// don't depend on it, so for those a broken config is reported as a warning
// and the defaults are used instead; fallback is true in that case and no
// trace is written.
func resolveConfig(s *settings.CommandSettings, wd string, warn io.Writer) (cfg *config.Config, fallback bool, err error) {
	cfg, err = loadConfig(s, wd)
	if err == nil {
		return cfg, false, nil
	}
	if needsConfig(s) {
		return nil, false, err
	}
	fmt.Fprintf(warn, "warning: ignoring config: %s\n", errors.Summarize(err))
	return config.DefaultConfig(), true, nil
}

func needsConfig(s *settings.CommandSettings) bool {
	switch s.Action() {
	case "", settings.FlagHelp, settings.FlagVersion, settings.FlagCommit:
		return false
	}
	return true
}

func loadConfig(s *settings.CommandSettings, wd string) (*config.Config, error) {
	if err := config.LoadDotEnv(wd); err != nil {
		return nil, err
	}
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func colorMode(s *settings.CommandSettings, cfg *config.Config) string {
	if s.NoColor {
		return ui.ColorNever
	}
	return cfg.Output.Color
}

// openTrace starts the diagnostic trace. When the trace file can't be
// created the agent still runs, logging to stderr with --trace or nowhere.
func openTrace(s *settings.CommandSettings, cfg *config.Config) (logger.Logger, logger.Syncer) {
	traceCfg := logger.TraceConfig{
		Dir:        cfg.DiagDir,
		Level:      logger.ParseLevel(cfg.Log.Level, zapcore.InfoLevel),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Retention: logger.Retention{
			KeepRuns:   cfg.Log.KeepRuns,
			KeepDays:   cfg.Log.KeepDays,
			MaxTotalMB: cfg.Log.MaxTotalMB,
		},
	}
	if s.Trace {
		traceCfg.Console = os.Stderr
	}

	log, path, err := logger.NewTraceLogger(traceCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: trace log disabled: %v\n", err)
		return logger.Noop(), nil
	}
	log.Redact(cfg.Token)
	log.Redact(s.Token)
	log.Info("vsts-pi started, trace at %s", path)
	return log, log
}

// buildCommander wires the commander's collaborators from the config.
func buildCommander(cfg *config.Config, build agent.BuildInfo, term *terminal.Terminal, host commander.Host, log logger.Logger, wd string) *commander.Commander {
	store := login.NewStore(cfg.CredentialsFile, log)
	manager := login.NewManager(term, store,
		login.WithDefaults(cfg.URL, cfg.Token),
		login.WithPrompter(login.HuhPrompter{}, term.Interactive),
		login.WithLogger(log),
	)

	var runLock *lock.Config
	if cfg.Lock.Enabled {
		runLock = &lock.Config{Timeout: cfg.Lock.Timeout, Stale: cfg.Lock.Stale}
	}

	tasks := pipeline.NewTaskStore(cfg.TaskCacheDir, log)
	runner := pipeline.NewRunner(term.Out(), tasks,
		pipeline.WithLock(runLock),
		pipeline.WithCredentials(manager),
		pipeline.WithWorkingDir(wd),
		pipeline.WithWorkDir(cfg.WorkDir),
		pipeline.WithErrorOutput(term.ErrOut()),
		pipeline.WithTiming(cfg.Output.Timing),
		pipeline.WithLogger(log),
	)

	return commander.New(term, host, manager, runner,
		commander.WithLogger(log),
		commander.WithBuildInfo(build),
		commander.WithShutdownOptions(shutdown.WithUnloadTimeout(cfg.ExitOnUnloadTimeout)),
	)
}
