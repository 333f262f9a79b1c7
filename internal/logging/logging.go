package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the application logger. Messages take alternating key/value
// pairs after the message, e.g. logger.Info("saved", "workflow_id", id).
type Logger struct {
	sugar *zap.SugaredLogger
}

// Options selects the level and encoding of a Logger.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // json or console
}

// NewLogger creates a Logger from opts. It falls back to a no-op logger if the
// zap configuration cannot be built.
func NewLogger(opts Options) *Logger {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// With returns a child logger that adds kv to every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(kv...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.sugar.Debugw(msg, kv...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, kv ...any) {
	l.sugar.Infow(msg, kv...)
}

// Warn logs a warning.
func (l *Logger) Warn(msg string, kv ...any) {
	l.sugar.Warnw(msg, kv...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, kv ...any) {
	l.sugar.Errorw(msg, kv...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
