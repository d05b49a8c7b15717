package burrow

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// stage lifts a dispatch function into a Middleware, flattening the
// usual nested-closure shape.
func stage(fn func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error)) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			return fn(next, ctx, cmd)
		}
	}
}

// ValidationMiddleware rejects commands whose Validate fails before
// they reach the handler.
func ValidationMiddleware() Middleware {
	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		if err := cmd.Validate(); err != nil {
			return NewErrorResult(err), err
		}
		return next(ctx, cmd)
	})
}

// RecoveryMiddleware turns handler panics into PanicError results.
func RecoveryMiddleware() Middleware {
	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (result CommandResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				panicErr := NewPanicError(cmd.CommandType(), r, string(debug.Stack()))
				result, err = NewErrorResult(panicErr), panicErr
			}
		}()
		return next(ctx, cmd)
	})
}

// TimeoutMiddleware bounds handler execution with a context deadline.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx, cmd)
	})
}

// LoggingMiddleware logs each dispatch with its outcome and duration.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Middleware returns the middleware function.
func (m *LoggingMiddleware) Middleware() Middleware {
	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		start := time.Now()
		m.logger.Info("Dispatching command", "type", cmd.CommandType())

		result, err := next(ctx, cmd)
		duration := time.Since(start)

		switch {
		case err != nil:
			m.logger.Error("Command failed",
				"type", cmd.CommandType(), "duration", duration, "error", err)
		case result.IsError():
			m.logger.Warn("Command returned error result",
				"type", cmd.CommandType(), "duration", duration, "error", result.Error)
		default:
			m.logger.Info("Command completed",
				"type", cmd.CommandType(), "duration", duration,
				"aggregateId", result.AggregateID, "version", result.Version)
		}

		return result, err
	})
}

// RetryConfig configures RetryMiddleware. MaxAttempts counts the first
// attempt; ShouldRetry classifies errors as transient, defaulting to
// IsRetryable, which retries only version conflicts from concurrent
// writers.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	ShouldRetry  func(err error) bool
}

// DefaultRetryConfig retries version conflicts up to three times with
// exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		ShouldRetry:  IsRetryable,
	}
}

// withDefaults fills unset fields so a zero RetryConfig behaves sanely.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 1.0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsRetryable
	}
	return c
}

// RetryMiddleware re-dispatches commands that failed with a transient
// error. A concurrent writer bumping the stream version is the typical
// case: the handler reloads the session on the next attempt and stages
// against the fresh state.
func RetryMiddleware(config RetryConfig) Middleware {
	config = config.withDefaults()

	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		delay := config.InitialDelay

		for attempt := 1; ; attempt++ {
			result, err := next(ctx, cmd)
			if err == nil && result.IsSuccess() {
				return result, nil
			}
			if attempt == config.MaxAttempts {
				return result, err
			}

			// The result error stands in when the handler reported
			// failure without returning a Go error.
			cause := err
			if cause == nil {
				cause = result.Error
			}
			if !config.ShouldRetry(cause) {
				return result, err
			}

			select {
			case <-ctx.Done():
				return NewErrorResult(ctx.Err()), ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * config.Multiplier)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	})
}

// Context keys for dispatch-scoped tracing identifiers.
type (
	correlationIDKey struct{}
	causationIDKey   struct{}
)

// CorrelationIDFromContext returns the correlation ID, or "" when unset.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// CausationIDFromContext returns the causation ID, or "" when unset.
func CausationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(causationIDKey{}).(string)
	return id
}

// WithCausationID returns a context with the causation ID set.
func WithCausationID(ctx context.Context, causationID string) context.Context {
	return context.WithValue(ctx, causationIDKey{}, causationID)
}

// CorrelationIDMiddleware makes sure every dispatch carries a
// correlation ID: an existing context value wins, then the command's
// own ID, then a generated one.
func CorrelationIDMiddleware(generator func() string) Middleware {
	if generator == nil {
		generator = uuid.NewString
	}

	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		if CorrelationIDFromContext(ctx) != "" {
			return next(ctx, cmd)
		}

		var correlationID string
		if base, ok := cmd.(interface{ GetCorrelationID() string }); ok {
			correlationID = base.GetCorrelationID()
		}
		if correlationID == "" {
			correlationID = generator()
		}

		return next(context.WithValue(ctx, correlationIDKey{}, correlationID), cmd)
	})
}

// CausationIDMiddleware propagates the command's causation ID, falling
// back to its command ID. Unlike correlation IDs nothing is generated:
// a command with no identifiers dispatches with an untouched context.
func CausationIDMiddleware() Middleware {
	return stage(func(next MiddlewareFunc, ctx context.Context, cmd Command) (CommandResult, error) {
		if CausationIDFromContext(ctx) != "" {
			return next(ctx, cmd)
		}

		var causationID string
		if base, ok := cmd.(interface{ GetCausationID() string }); ok {
			causationID = base.GetCausationID()
		}
		if causationID == "" {
			if base, ok := cmd.(interface{ GetCommandID() string }); ok {
				causationID = base.GetCommandID()
			}
		}

		if causationID != "" {
			ctx = WithCausationID(ctx, causationID)
		}
		return next(ctx, cmd)
	})
}
