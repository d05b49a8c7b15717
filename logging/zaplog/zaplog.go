// Package zaplog adapts go.uber.org/zap to the burrow Logger interface.
//
// Usage:
//
//	zl, _ := zap.NewProduction()
//	store := burrow.New(adapter, burrow.WithLogger(zaplog.New(zl)))
package zaplog

import (
	"go.uber.org/zap"

	"github.com/burrowkit/burrow"
)

// Logger wraps a zap.SugaredLogger behind burrow.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ burrow.Logger = (*Logger)(nil)

// New wraps a zap logger. A nil logger falls back to zap.NewNop.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sugar: logger.Sugar()}
}

// NewDevelopment returns a Logger backed by a zap development logger.
func NewDevelopment() (*Logger, error) {
	zl, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(zl), nil
}

// NewProduction returns a Logger backed by a zap production logger.
func NewProduction() (*Logger, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(zl), nil
}

// Named returns a Logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

// With returns a Logger with the given key/value pairs attached.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(args...)}
}

// Debug logs at debug level with alternating key/value pairs.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugw(msg, args...)
}

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.sugar.Infow(msg, args...)
}

// Warn logs at warn level with alternating key/value pairs.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnw(msg, args...)
}

// Error logs at error level with alternating key/value pairs.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.sugar.Errorw(msg, args...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
