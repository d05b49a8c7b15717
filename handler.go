package burrow

import (
	"context"
	"fmt"
	"sync"
)

// CommandHandler processes commands of a single type. Handlers hold the
// business logic that opens a session, stages events, and commits.
type CommandHandler interface {
	// CommandType names the single command type this handler accepts.
	CommandType() string

	// Handle runs the command and reports the outcome.
	Handle(ctx context.Context, cmd Command) (CommandResult, error)
}

// funcHandler adapts a plain function to CommandHandler.
type funcHandler struct {
	name string
	fn   func(ctx context.Context, cmd Command) (CommandResult, error)
}

// NewCommandHandlerFunc wraps fn as a CommandHandler for cmdType.
func NewCommandHandlerFunc(cmdType string, fn func(ctx context.Context, cmd Command) (CommandResult, error)) CommandHandler {
	return &funcHandler{name: cmdType, fn: fn}
}

func (h *funcHandler) CommandType() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	return h.fn(ctx, cmd)
}

// GenericHandler gives a handler compile-time command typing. The bus
// still passes Command; the wrong concrete type yields an error result
// instead of a panic.
type GenericHandler[C Command] struct {
	cmdType string
	handle  func(ctx context.Context, cmd C) (CommandResult, error)
}

// NewGenericHandler creates a handler for the command type C. The type
// name comes from C's zero value, so C must implement CommandType on
// its value receiver.
func NewGenericHandler[C Command](handler func(ctx context.Context, cmd C) (CommandResult, error)) *GenericHandler[C] {
	var zero C
	return &GenericHandler[C]{
		cmdType: zero.CommandType(), handle: handler,
	}
}

// CommandType returns the command type this handler processes.
func (h *GenericHandler[C]) CommandType() string { return h.cmdType }

// Handle checks the concrete command type before delegating.
func (h *GenericHandler[C]) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	if typed, ok := cmd.(C); ok {
		return h.handle(ctx, typed)
	}
	return NewErrorResult(fmt.Errorf("burrow: expected command type %T, got %T", *new(C), cmd)), nil
}

// HandlerRegistry maps command types to their handlers. Safe for
// concurrent use.
type HandlerRegistry struct {
	mu     sync.RWMutex
	byType map[string]CommandHandler
}

// NewHandlerRegistry creates an empty HandlerRegistry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string]CommandHandler)}
}

// Register adds a handler, replacing any existing handler for the same
// command type.
func (r *HandlerRegistry) Register(handler CommandHandler) {
	r.mu.Lock()
	r.byType[handler.CommandType()] = handler
	r.mu.Unlock()
}

// RegisterFunc registers a plain function as the handler for cmdType.
func (r *HandlerRegistry) RegisterFunc(cmdType string, fn func(ctx context.Context, cmd Command) (CommandResult, error)) {
	r.Register(NewCommandHandlerFunc(cmdType, fn))
}

// Get returns the handler for cmdType, or nil when none is registered.
func (r *HandlerRegistry) Get(cmdType string) CommandHandler {
	r.mu.RLock()
	h := r.byType[cmdType]
	r.mu.RUnlock()
	return h
}

// Has reports whether a handler is registered for cmdType.
func (r *HandlerRegistry) Has(cmdType string) bool {
	return r.Get(cmdType) != nil
}

// Remove unregisters the handler for cmdType.
func (r *HandlerRegistry) Remove(cmdType string) {
	r.mu.Lock()
	delete(r.byType, cmdType)
	r.mu.Unlock()
}

// Count returns the number of registered handlers.
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	n := len(r.byType)
	r.mu.RUnlock()
	return n
}

// CommandTypes returns all registered command types.
func (r *HandlerRegistry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	return out
}
