package log

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Logger wraps slog.Logger with a component name. Records are encoded by a zap core.
type Logger struct {
	*slog.Logger
	component string
	core      zapcore.Core
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "console" or "json"
	Component string
	// Core overrides Level and Format when set (tests use zaptest cores).
	Core zapcore.Core
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "console",
		Component: ComponentApp,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	core := config.Core
	if core == nil {
		core = newCore(config.Format, config.Level)
	}
	if config.Component == "" {
		config.Component = ComponentApp
	}

	logger := slog.New(zapslog.NewHandler(core)).With(FieldComponent, config.Component)

	return &Logger{
		Logger:    logger,
		component: config.Component,
		core:      core,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return New(Config{Core: zapcore.NewNopCore(), Component: ComponentApp})
}

func newCore(format string, level slog.Level) zapcore.Core {
	var encoder zapcore.Encoder
	if strings.EqualFold(format, "json") {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapLevel(level))
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
		core:      l.core,
	}
}

// WithComponent returns a new logger for a specific component, built from the same core
func (l *Logger) WithComponent(component string) *Logger {
	return New(Config{Core: l.core, Component: component})
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.core.Sync()
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
