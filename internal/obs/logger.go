// Package obs provides the structured logging the index uses. The
// index currently logs each single-vector StoreVec at debug level and
// no other events. The small
// Debug/Info/Warn/Error/With interface lets callers inject a no-op
// logger in tests; the default implementation is backed by
// go.uber.org/zap.
package obs

import "go.uber.org/zap"

// Logger is the leveled, structured logging interface used throughout
// this module.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewProduction returns a Logger backed by zap's production encoder config
// (JSON, ISO8601 timestamps, sampling disabled for the low event volume
// this library produces).
func NewProduction() Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap's production config is validated at compile time in practice;
		// fall back to a no-op sink rather than panic in a library.
		return NewNop()
	}
	return &zapLogger{l: z.Sugar()}
}

// NewNop returns a Logger that discards everything, used as the default
// when the caller does not configure one.
func NewNop() Logger {
	return &zapLogger{l: zap.NewNop().Sugar()}
}

func (z *zapLogger) Debug(msg string, keyvals ...any) { z.l.Debugw(msg, keyvals...) }
func (z *zapLogger) Info(msg string, keyvals ...any)  { z.l.Infow(msg, keyvals...) }
func (z *zapLogger) Warn(msg string, keyvals ...any)  { z.l.Warnw(msg, keyvals...) }
func (z *zapLogger) Error(msg string, keyvals ...any) { z.l.Errorw(msg, keyvals...) }

func (z *zapLogger) With(keyvals ...any) Logger {
	return &zapLogger{l: z.l.With(keyvals...)}
}
