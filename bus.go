package burrow

import (
	"context"
	"sync"
	"sync/atomic"
)

// MiddlewareFunc is the signature shared by handlers and middleware
// stages in a dispatch pipeline.
type MiddlewareFunc func(ctx context.Context, cmd Command) (CommandResult, error)

// Middleware wraps the next pipeline stage with extra behavior.
type Middleware func(next MiddlewareFunc) MiddlewareFunc

// ChainMiddleware folds several middleware into one. The first argument
// becomes the outermost stage.
func ChainMiddleware(mw ...Middleware) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc { return compose(next, mw) }
}

// compose layers middleware around next, innermost last.
func compose(next MiddlewareFunc, mw []Middleware) MiddlewareFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		next = mw[i](next)
	}
	return next
}

// DispatchResult pairs a CommandResult with the dispatch error.
type DispatchResult struct {
	CommandResult
	Error error
}

// IsSuccess reports whether the dispatch completed without error.
func (r DispatchResult) IsSuccess() bool {
	return r.Error == nil && r.CommandResult.IsSuccess()
}

// CommandBus routes commands through a middleware pipeline to their
// registered handlers.
type CommandBus struct {
	mu     sync.RWMutex
	reg    *HandlerRegistry
	stages []Middleware
	closed atomic.Bool
}

// CommandBusOption customizes a bus at construction.
type CommandBusOption func(*CommandBus)

// WithMiddleware seeds the pipeline with middleware.
func WithMiddleware(mw ...Middleware) CommandBusOption {
	return func(b *CommandBus) { b.stages = append(b.stages, mw...) }
}

// WithHandlerRegistry replaces the default registry.
func WithHandlerRegistry(reg *HandlerRegistry) CommandBusOption {
	return func(b *CommandBus) { b.reg = reg }
}

// NewCommandBus creates a CommandBus with the given options.
func NewCommandBus(opts ...CommandBusOption) *CommandBus {
	b := &CommandBus{reg: NewHandlerRegistry()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a handler under its command type.
func (b *CommandBus) Register(handler CommandHandler) {
	b.mu.Lock()
	b.reg.Register(handler)
	b.mu.Unlock()
}

// RegisterFunc wraps fn in a command handler and registers it.
func (b *CommandBus) RegisterFunc(cmdType string, fn func(ctx context.Context, cmd Command) (CommandResult, error)) {
	b.Register(NewCommandHandlerFunc(cmdType, fn))
}

// Use appends middleware. Middleware runs in the order it was added.
func (b *CommandBus) Use(mw ...Middleware) {
	b.mu.Lock()
	b.stages = append(b.stages, mw...)
	b.mu.Unlock()
}

// snapshot copies the handler and middleware list under the read lock so
// Use/Register during a dispatch cannot mutate a pipeline mid-flight.
func (b *CommandBus) snapshot(cmdType string) (CommandHandler, []Middleware) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reg.Get(cmdType), append([]Middleware(nil), b.stages...)
}

// Dispatch sends a command through the middleware pipeline to its
// handler. Failed dispatches return both an error result and the error.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (CommandResult, error) {
	switch {
	case b.closed.Load():
		return NewErrorResult(ErrCommandBusClosed), ErrCommandBusClosed
	case cmd == nil:
		return NewErrorResult(ErrNilCommand), ErrNilCommand
	}

	h, mw := b.snapshot(cmd.CommandType())
	if h == nil {
		err := NewHandlerNotFoundError(cmd.CommandType())
		return NewErrorResult(err), err
	}
	return compose(h.Handle, mw)(ctx, cmd)
}

// DispatchAsync dispatches on a new goroutine and returns a channel
// that delivers the single result.
func (b *CommandBus) DispatchAsync(ctx context.Context, cmd Command) <-chan DispatchResult {
	out := make(chan DispatchResult, 1)
	go func() {
		defer close(out)
		res, err := b.Dispatch(ctx, cmd)
		out <- DispatchResult{CommandResult: res, Error: err}
	}()
	return out
}

// DispatchAll dispatches commands sequentially in order. It stops early
// when the context is done, returning the results collected so far.
func (b *CommandBus) DispatchAll(ctx context.Context, cmds ...Command) ([]DispatchResult, error) {
	out := make([]DispatchResult, len(cmds))
	for i, cmd := range cmds {
		res, err := b.Dispatch(ctx, cmd)
		out[i] = DispatchResult{CommandResult: res, Error: err}
		if err := ctx.Err(); err != nil {
			return out[:i+1], err
		}
	}
	return out, nil
}

// HasHandler reports whether a handler is registered for cmdType.
func (b *CommandBus) HasHandler(cmdType string) bool {
	h, _ := b.snapshot(cmdType)
	return h != nil
}

// HandlerCount reports how many handlers are registered.
func (b *CommandBus) HandlerCount() int {
	b.mu.RLock()
	n := b.reg.Count()
	b.mu.RUnlock()
	return n
}

// MiddlewareCount reports how many middleware are installed.
func (b *CommandBus) MiddlewareCount() int {
	b.mu.RLock()
	n := len(b.stages)
	b.mu.RUnlock()
	return n
}

// Close stops the bus; further dispatches fail with ErrCommandBusClosed.
func (b *CommandBus) Close() error {
	b.closed.Store(true)
	return nil
}

// IsClosed reports whether the bus has been closed.
func (b *CommandBus) IsClosed() bool { return b.closed.Load() }
