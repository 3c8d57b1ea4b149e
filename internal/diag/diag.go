// Package diag provides the structured logger threaded through the engine,
// scheduler, and every actor's Context. It is a thin wrapper over zap's
// SugaredLogger: callers get a small, stable keyword-argument surface
// (Debugw/Infow/Warnw/Errorw) without depending on zap's own types outside
// this package.
package diag

import (
	"go.uber.org/zap"
)

// Logger is the keyword-argument logging surface used throughout revue.
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	// With returns a derived Logger with kv permanently attached, used to
	// scope a logger to one actor or worker.
	With(kv ...any) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewDevelopment returns a human-readable, colorized-when-a-tty logger
// suitable for the demo CLI and tests.
func NewDevelopment() Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

// NewProduction returns a JSON logger suitable for embedding revue in a
// long-running service.
func NewProduction() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

// Noop returns a Logger that discards everything, used as the default when
// no logger is configured.
func Noop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugw(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...)}
}
