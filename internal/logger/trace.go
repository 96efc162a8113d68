package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Trace file rotation defaults.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14
)

// TraceConfig controls where and how the diagnostic trace is written.
type TraceConfig struct {
	// Dir is the diagnostics directory. The trace file is
	// <Dir>/vsts-pi_<timestamp>.log.
	Dir string

	// Level is the minimum level written to the file.
	Level zapcore.Level

	// MaxSizeMB, MaxBackups and MaxAgeDays control rotation. Zero means default.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Retention prunes trace files from earlier runs before the new file
	// is created.
	Retention Retention

	// Console, when non-nil, receives a human-readable copy of every entry
	// at debug level (the --trace flag).
	Console io.Writer

	// Now is used for the file name timestamp. Defaults to time.Now.
	Now func() time.Time
}

// TraceFileName returns the trace file name for a given start time.
func TraceFileName(t time.Time) string {
	return fmt.Sprintf("vsts-pi_%s.log", t.UTC().Format("20060102-150405"))
}

// NewTraceLogger builds the production logger: JSON entries to a rotating file
// in cfg.Dir, plus an optional console copy.
func NewTraceLogger(cfg TraceConfig) (*ZapLogger, string, error) {
	if cfg.Dir == "" {
		return nil, "", fmt.Errorf("trace directory is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create trace directory: %w", err)
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	cleanupErr := CleanupTraces(cfg.Dir, cfg.Retention, now())
	path := filepath.Join(cfg.Dir, TraceFileName(now()))

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), cfg.Level),
	}
	if cfg.Console != nil {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(cfg.Console),
			zapcore.DebugLevel,
		))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	l := NewZap(z, "")
	if cleanupErr != nil {
		l.Warn("trace cleanup: %v", cleanupErr)
	}
	return l, path, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
