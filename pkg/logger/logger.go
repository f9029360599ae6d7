// Package logger provides the structured logging interface used across the
// solver. It wraps go.uber.org/zap so call sites depend on a small interface
// rather than the concrete zap types.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is satisfied by ZapLogger and by NewNoopLogger, which is the
// default held by a freshly constructed solver so that logging is opt-in.
type Logger interface {
	Debug(string, ...zap.Field)
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)

	With(fields ...zap.Field) Logger
}

// ZapLogger is the Logger implementation backed by a real zap.Logger.
type ZapLogger struct {
	*zap.Logger
}

func (l *ZapLogger) Debug(msg string, fields ...zap.Field) { l.Logger.Debug(msg, fields...) }
func (l *ZapLogger) Info(msg string, fields ...zap.Field)  { l.Logger.Info(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...zap.Field)  { l.Logger.Warn(msg, fields...) }
func (l *ZapLogger) Error(msg string, fields ...zap.Field) { l.Logger.Error(msg, fields...) }

func (l *ZapLogger) With(fields ...zap.Field) Logger {
	return &ZapLogger{l.Logger.With(fields...)}
}

// NewNoopLogger returns a Logger that discards everything, used by default
// so that ISAM2 never requires a logger to be configured.
func NewNoopLogger() Logger {
	return &ZapLogger{zap.NewNop()}
}

// New builds a ZapLogger at the given level ("debug", "info", "warn",
// "error"), logging JSON to stderr.
func New(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{zl}, nil
}
