// Package logging builds the zap backed loggers used by the stereo pipeline and its tools.
package logging

import (
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger("disparity")
)

// ReplaceGlobal replaces the global logger. Constructors that are handed a nil logger use
// the global one.
func ReplaceGlobal(logger golog.Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the global logger.
func Global() golog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(level string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, errors.Wrapf(err, "unknown log level %q", level)
	}
	return lvl, nil
}

// NewLoggerAtLevel returns a named console logger that writes level and above to stdout.
func NewLoggerAtLevel(name string, level zapcore.Level) golog.Logger {
	cfg := NewLoggerConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		// the default config only fails on a broken stdout
		return golog.NewDevelopmentLogger(name)
	}
	return logger.Sugar().Named(name)
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) golog.Logger {
	return NewLoggerAtLevel(name, zapcore.InfoLevel)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) golog.Logger {
	return NewLoggerAtLevel(name, zapcore.DebugLevel)
}

// NewBlankLogger returns a logger that drops everything.
func NewBlankLogger(name string) golog.Logger {
	return zap.NewNop().Sugar().Named(name)
}
