package burrow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busTestOpenTicket struct {
	CommandBase
	ReporterID string
}

func (c busTestOpenTicket) CommandType() string { return "OpenTicket" }
func (c busTestOpenTicket) Validate() error {
	if c.ReporterID == "" {
		return NewValidationError("OpenTicket", "ReporterID", "required")
	}
	return nil
}

// succeedWith returns a handler func that always succeeds with the
// given aggregate ID.
func succeedWith(aggregateID string) MiddlewareFunc {
	return func(ctx context.Context, cmd Command) (CommandResult, error) {
		return NewSuccessResult(aggregateID, 1), nil
	}
}

// traceMW appends label-before/label-after around the inner call so
// ordering tests can watch the chain unwind.
func traceMW(order *[]string, label string) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			*order = append(*order, label+"-before")
			result, err := next(ctx, cmd)
			*order = append(*order, label+"-after")
			return result, err
		}
	}
}

func TestNewCommandBus(t *testing.T) {
	t.Run("default construction", func(t *testing.T) {
		bus := NewCommandBus()
		assert.NotNil(t, bus)
		assert.Zero(t, bus.HandlerCount())
		assert.Zero(t, bus.MiddlewareCount())
		assert.False(t, bus.IsClosed())
	})

	t.Run("seeded with middleware", func(t *testing.T) {
		passthrough := func(next MiddlewareFunc) MiddlewareFunc { return next }
		bus := NewCommandBus(WithMiddleware(passthrough))
		assert.Equal(t, 1, bus.MiddlewareCount())
	})

	t.Run("seeded with a registry", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.RegisterFunc("Test", succeedWith(""))

		bus := NewCommandBus(WithHandlerRegistry(registry))
		assert.True(t, bus.HasHandler("Test"))
	})
}

func TestCommandBusRegister(t *testing.T) {
	t.Run("registers a handler func", func(t *testing.T) {
		bus := NewCommandBus()
		bus.RegisterFunc("OpenTicket", succeedWith("ticket-1"))

		assert.True(t, bus.HasHandler("OpenTicket"))
		assert.Equal(t, 1, bus.HandlerCount())
	})

	t.Run("registers a typed CommandHandler", func(t *testing.T) {
		bus := NewCommandBus()
		bus.Register(NewGenericHandler(func(ctx context.Context, cmd busTestOpenTicket) (CommandResult, error) {
			return NewSuccessResult("ticket-1", 1), nil
		}))

		assert.True(t, bus.HasHandler("OpenTicket"))
	})
}

func TestCommandBusUse(t *testing.T) {
	bus := NewCommandBus()
	passthrough := func(next MiddlewareFunc) MiddlewareFunc { return next }

	bus.Use(passthrough)
	assert.Equal(t, 1, bus.MiddlewareCount())

	bus.Use(passthrough, passthrough)
	assert.Equal(t, 3, bus.MiddlewareCount())
}

func TestCommandBusDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to the registered handler", func(t *testing.T) {
		bus := NewCommandBus()
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			c := cmd.(busTestOpenTicket)
			return NewSuccessResult("ticket-"+c.ReporterID, 1), nil
		})

		result, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-123"})

		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		assert.Equal(t, "ticket-rep-123", result.AggregateID)
	})

	t.Run("rejects a nil command", func(t *testing.T) {
		result, err := NewCommandBus().Dispatch(ctx, nil)

		require.ErrorIs(t, err, ErrNilCommand)
		assert.True(t, result.IsError())
	})

	t.Run("rejects a command without a handler", func(t *testing.T) {
		result, err := NewCommandBus().Dispatch(ctx, busTestOpenTicket{})

		require.ErrorIs(t, err, ErrHandlerNotFound)
		assert.True(t, result.IsError())
	})

	t.Run("rejects dispatch after Close", func(t *testing.T) {
		bus := NewCommandBus()
		bus.RegisterFunc("OpenTicket", succeedWith(""))
		bus.Close()

		result, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-1"})

		require.ErrorIs(t, err, ErrCommandBusClosed)
		assert.True(t, result.IsError())
	})

	t.Run("runs middleware outermost first", func(t *testing.T) {
		var order []string
		bus := NewCommandBus()
		bus.Use(traceMW(&order, "auth"))
		bus.Use(traceMW(&order, "audit"))
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			order = append(order, "handler")
			return NewSuccessResult("", 0), nil
		})

		_, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-1"})
		require.NoError(t, err)

		assert.Equal(t, []string{"auth-before", "audit-before", "handler", "audit-after", "auth-after"}, order)
	})

	t.Run("middleware can short-circuit the handler", func(t *testing.T) {
		bus := NewCommandBus()
		abortErr := errors.New("short circuit")
		bus.Use(func(next MiddlewareFunc) MiddlewareFunc {
			return func(ctx context.Context, cmd Command) (CommandResult, error) {
				return NewErrorResult(abortErr), abortErr
			}
		})

		handler, called := trackingHandler(NewSuccessResult("", 0), nil)
		bus.RegisterFunc("OpenTicket", handler)

		result, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-1"})

		assert.False(t, *called)
		assert.Equal(t, abortErr, err)
		assert.True(t, result.IsError())
	})

	t.Run("middleware-modified context reaches the handler", func(t *testing.T) {
		type ctxKey string
		const key ctxKey = "test-key"

		bus := NewCommandBus()
		bus.Use(func(next MiddlewareFunc) MiddlewareFunc {
			return func(ctx context.Context, cmd Command) (CommandResult, error) {
				return next(context.WithValue(ctx, key, "test-value"), cmd)
			}
		})

		var seen string
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			seen = ctx.Value(key).(string)
			return NewSuccessResult("", 0), nil
		})

		_, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-1"})
		require.NoError(t, err)
		assert.Equal(t, "test-value", seen)
	})
}

func TestCommandBusDispatchAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers the result on the channel", func(t *testing.T) {
		bus := NewCommandBus()
		bus.RegisterFunc("OpenTicket", succeedWith("ticket-1"))

		result := <-bus.DispatchAsync(ctx, busTestOpenTicket{ReporterID: "rep-1"})

		assert.True(t, result.IsSuccess())
		assert.Equal(t, "ticket-1", result.AggregateID)
		assert.NoError(t, result.Error)
	})

	t.Run("delivers dispatch errors on the channel", func(t *testing.T) {
		result := <-NewCommandBus().DispatchAsync(ctx, busTestOpenTicket{})

		assert.False(t, result.IsSuccess())
		assert.ErrorIs(t, result.Error, ErrHandlerNotFound)
	})

	t.Run("closes the channel after the result", func(t *testing.T) {
		bus := NewCommandBus()
		bus.RegisterFunc("OpenTicket", succeedWith(""))

		ch := bus.DispatchAsync(ctx, busTestOpenTicket{ReporterID: "rep-1"})
		<-ch

		_, open := <-ch
		assert.False(t, open)
	})
}

func TestCommandBusDispatchAll(t *testing.T) {
	t.Run("dispatches every command in order", func(t *testing.T) {
		bus := NewCommandBus()
		var processed []string
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			c := cmd.(busTestOpenTicket)
			processed = append(processed, c.ReporterID)
			return NewSuccessResult("ticket-"+c.ReporterID, 1), nil
		})

		results, err := bus.DispatchAll(context.Background(),
			busTestOpenTicket{ReporterID: "rep-1"},
			busTestOpenTicket{ReporterID: "rep-2"},
			busTestOpenTicket{ReporterID: "rep-3"},
		)

		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []string{"rep-1", "rep-2", "rep-3"}, processed)
		for _, r := range results {
			assert.True(t, r.IsSuccess())
		}
	})

	t.Run("cancellation stops the batch with partial results", func(t *testing.T) {
		bus := NewCommandBus()
		ctx, cancel := context.WithCancel(context.Background())

		var count int
		bus.RegisterFunc("OpenTicket", func(c context.Context, cmd Command) (CommandResult, error) {
			count++
			if count == 2 {
				cancel()
			}
			return NewSuccessResult("", 0), nil
		})

		results, err := bus.DispatchAll(ctx,
			busTestOpenTicket{ReporterID: "rep-1"},
			busTestOpenTicket{ReporterID: "rep-2"},
			busTestOpenTicket{ReporterID: "rep-3"},
		)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, results, 2)
	})

	t.Run("a failing command does not abort the rest", func(t *testing.T) {
		bus := NewCommandBus()
		handlerErr := errors.New("handler error")
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			if cmd.(busTestOpenTicket).ReporterID == "fail" {
				return NewErrorResult(handlerErr), handlerErr
			}
			return NewSuccessResult("", 1), nil
		})

		results, err := bus.DispatchAll(context.Background(),
			busTestOpenTicket{ReporterID: "rep-1"},
			busTestOpenTicket{ReporterID: "fail"},
			busTestOpenTicket{ReporterID: "rep-3"},
		)

		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, results[0].IsSuccess())
		assert.False(t, results[1].IsSuccess())
		assert.True(t, results[2].IsSuccess())
	})
}

func TestCommandBusClose(t *testing.T) {
	bus := NewCommandBus()
	assert.False(t, bus.IsClosed())

	assert.NoError(t, bus.Close())
	assert.True(t, bus.IsClosed())

	// Closing again stays a no-op.
	assert.NoError(t, bus.Close())
	assert.True(t, bus.IsClosed())
}

func TestCommandBusConcurrency(t *testing.T) {
	t.Run("parallel dispatches", func(t *testing.T) {
		bus := NewCommandBus()
		var counter int32
		bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
			atomic.AddInt32(&counter, 1)
			return NewSuccessResult("", 0), nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = bus.Dispatch(context.Background(), busTestOpenTicket{ReporterID: "rep-1"})
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), counter)
	})

	t.Run("register while dispatching", func(t *testing.T) {
		bus := NewCommandBus()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				bus.RegisterFunc("OpenTicket", succeedWith(""))
			}()
			go func() {
				defer wg.Done()
				_, _ = bus.Dispatch(context.Background(), busTestOpenTicket{ReporterID: "rep-1"})
			}()
		}
		wg.Wait()
	})
}

func TestDispatchResult(t *testing.T) {
	tests := []struct {
		name   string
		result DispatchResult
		want   bool
	}{
		{
			name:   "success result without error",
			result: DispatchResult{CommandResult: NewSuccessResult("agg-1", 1)},
			want:   true,
		},
		{
			name:   "success result with dispatch error",
			result: DispatchResult{CommandResult: NewSuccessResult("agg-1", 1), Error: errors.New("dispatch error")},
			want:   false,
		},
		{
			name:   "error result without dispatch error",
			result: DispatchResult{CommandResult: NewErrorResult(errors.New("command error"))},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.IsSuccess())
		})
	}
}

func TestChainMiddleware(t *testing.T) {
	t.Run("wraps outermost first", func(t *testing.T) {
		var order []string
		chain := ChainMiddleware(traceMW(&order, "auth"), traceMW(&order, "audit"))

		wrapped := chain(func(ctx context.Context, cmd Command) (CommandResult, error) {
			order = append(order, "handler")
			return NewSuccessResult("", 0), nil
		})
		_, _ = wrapped(context.Background(), busTestOpenTicket{})

		assert.Equal(t, []string{"auth-before", "audit-before", "handler", "audit-after", "auth-after"}, order)
	})

	t.Run("empty chain returns the handler untouched", func(t *testing.T) {
		wrapped := ChainMiddleware()(succeedWith("test"))

		result, err := wrapped(context.Background(), busTestOpenTicket{})

		require.NoError(t, err)
		assert.Equal(t, "test", result.AggregateID)
	})
}

func TestCommandBusHandlerTimeout(t *testing.T) {
	bus := NewCommandBus()
	bus.RegisterFunc("OpenTicket", func(ctx context.Context, cmd Command) (CommandResult, error) {
		select {
		case <-ctx.Done():
			return NewErrorResult(ctx.Err()), ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return NewSuccessResult("", 0), nil
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := bus.Dispatch(ctx, busTestOpenTicket{ReporterID: "rep-1"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, result.IsError())
}
