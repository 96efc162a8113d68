// Package logger provides the trace logging interface for vsts-pi components.
// Packages log debug, info, warn, and error messages without being coupled to
// the zap-backed implementation that writes the diagnostic trace file.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Syncer is implemented by loggers that buffer output.
type Syncer interface {
	Sync() error
}

// ZapLogger implements Logger on top of a sugared zap logger. It is the
// production logger; secrets registered through Redact are masked before
// anything is written.
type ZapLogger struct {
	sugar  *zap.SugaredLogger
	prefix string

	mu      sync.RWMutex
	secrets []string
}

// NewZap wraps an existing zap logger. The prefix is prepended to all
// messages (e.g., "[commander]" or "[pipeline]").
func NewZap(z *zap.Logger, prefix string) *ZapLogger {
	return &ZapLogger{
		sugar:  z.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		prefix: prefix,
	}
}

// Named returns a logger sharing the same core and secrets with a new prefix.
func (l *ZapLogger) Named(prefix string) *ZapLogger {
	return &ZapLogger{
		sugar:   l.sugar,
		prefix:  prefix,
		secrets: l.snapshotSecrets(),
	}
}

// Redact registers a value that must never reach the trace output.
func (l *ZapLogger) Redact(secret string) {
	if secret == "" {
		return
	}
	l.mu.Lock()
	l.secrets = append(l.secrets, secret)
	l.mu.Unlock()
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func (l *ZapLogger) snapshotSecrets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.secrets...)
}

func (l *ZapLogger) format(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.secrets {
		msg = strings.ReplaceAll(msg, s, "***")
	}
	return msg
}

func (l *ZapLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debug(l.format(format, args...))
}

func (l *ZapLogger) Info(format string, args ...interface{}) {
	l.sugar.Info(l.format(format, args...))
}

func (l *ZapLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warn(l.format(format, args...))
}

func (l *ZapLogger) Error(format string, args ...interface{}) {
	l.sugar.Error(l.format(format, args...))
}

// ParseLevel parses a level name (debug, info, warn, error), returning def
// when the value is empty or unknown.
func ParseLevel(s string, def zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "verbose":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return def
	}
}

// noopLogger implements Logger but discards all messages.
// Useful for testing or when logging is not desired.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// It is safe for use from signal handler goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) {
	l.add("debug", format, args...)
}

func (l *BufferLogger) Info(format string, args ...interface{}) {
	l.add("info", format, args...)
}

func (l *BufferLogger) Warn(format string, args ...interface{}) {
	l.add("warn", format, args...)
}

func (l *BufferLogger) Error(format string, args ...interface{}) {
	l.add("error", format, args...)
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogMessage(nil), l.Messages...)
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = Noop()
)

// Default returns the process-wide logger. It discards everything until
// SetDefault installs the trace logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
