package burrow

import (
	"errors"
	"fmt"

	"github.com/burrowkit/burrow/adapters"
)

// Sentinel errors, matched with errors.Is. The persistence-level ones
// are aliases to the adapters package so callers can match either.
var (
	// ErrNotFound indicates the requested aggregate or stream does not exist.
	ErrNotFound = adapters.ErrStreamNotFound

	// ErrAlreadyExists indicates the aggregate or stream already exists.
	ErrAlreadyExists = errors.New("burrow: already exists")

	// ErrConflict indicates an optimistic concurrency violation. The failed
	// operation left no trace in the log and may be retried after reloading.
	ErrConflict = adapters.ErrConflict

	// ErrInvalidArgument indicates a malformed or missing command field.
	ErrInvalidArgument = errors.New("burrow: invalid argument")

	// ErrInvalidState indicates the operation is not allowed in the
	// aggregate's current state.
	ErrInvalidState = errors.New("burrow: invalid state")

	// ErrFatal indicates an internal failure, such as a serialization or
	// storage defect. Not retryable.
	ErrFatal = errors.New("burrow: fatal")

	ErrSerializationFailed    = errors.New("burrow: serialization failed")
	ErrEventTypeNotRegistered = errors.New("burrow: event type not registered")

	ErrEmptyStreamID  = adapters.ErrEmptyStreamID
	ErrNoEvents       = adapters.ErrNoEvents
	ErrInvalidVersion = adapters.ErrInvalidVersion
	ErrAdapterClosed  = adapters.ErrAdapterClosed

	// ErrSessionClosed indicates the session has already been committed or
	// rolled back and cannot stage further events.
	ErrSessionClosed = errors.New("burrow: session closed")

	// Command and handler side.
	ErrHandlerNotFound         = errors.New("burrow: handler not found")
	ErrValidationFailed        = errors.New("burrow: validation failed")
	ErrCommandAlreadyProcessed = errors.New("burrow: command already processed")
	ErrNilCommand              = errors.New("burrow: nil command")
	ErrHandlerPanicked         = errors.New("burrow: handler panicked")
	ErrCommandBusClosed        = errors.New("burrow: command bus closed")
)

// IsRetryable reports whether the error represents a transient condition
// that may succeed on retry. Only concurrency conflicts qualify: they mean
// another writer won the race, not that the command itself is bad.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether the error indicates a missing aggregate or stream.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidState reports whether the error indicates a state-machine rejection.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// ConflictError carries the stream and both versions of a concurrency
// conflict.
type ConflictError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// NewConflictError creates a new ConflictError.
func NewConflictError(streamID string, expected, actual int64) *ConflictError {
	return &ConflictError{StreamID: streamID, ExpectedVersion: expected, ActualVersion: actual}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("burrow: version conflict on stream %q: expected version %d, actual version %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict || target == adapters.ErrConflict
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing stream.
type NotFoundError struct {
	StreamID string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(streamID string) *NotFoundError {
	return &NotFoundError{StreamID: streamID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("burrow: stream %q not found", e.StreamID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == adapters.ErrStreamNotFound
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError names the duplicate stream.
type AlreadyExistsError struct {
	StreamID string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(streamID string) *AlreadyExistsError {
	return &AlreadyExistsError{StreamID: streamID}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("burrow: stream %q already exists", e.StreamID)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }
func (e *AlreadyExistsError) Unwrap() error        { return ErrAlreadyExists }

// InvalidStateError reports an operation rejected by the aggregate's
// current state.
type InvalidStateError struct {
	StreamID string
	Reason   string
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(streamID, reason string) *InvalidStateError {
	return &InvalidStateError{StreamID: streamID, Reason: reason}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("burrow: invalid state on stream %q: %s", e.StreamID, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }
func (e *InvalidStateError) Unwrap() error        { return ErrInvalidState }

// SerializationError records which event type failed and in which
// direction. Operation is "serialize" or "deserialize".
type SerializationError struct {
	EventType string
	Operation string
	Cause     error
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(eventType, operation string, cause error) *SerializationError {
	return &SerializationError{EventType: eventType, Operation: operation, Cause: cause}
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("burrow: failed to %s event type %q: %v",
		e.Operation, e.EventType, e.Cause)
}

func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed || target == ErrFatal
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// EventTypeNotRegisteredError names the unknown event type.
type EventTypeNotRegisteredError struct {
	EventType string
}

// NewEventTypeNotRegisteredError creates a new EventTypeNotRegisteredError.
func NewEventTypeNotRegisteredError(eventType string) *EventTypeNotRegisteredError {
	return &EventTypeNotRegisteredError{EventType: eventType}
}

func (e *EventTypeNotRegisteredError) Error() string {
	return fmt.Sprintf("burrow: event type %q not registered", e.EventType)
}

func (e *EventTypeNotRegisteredError) Is(target error) bool {
	return target == ErrEventTypeNotRegistered || target == ErrFatal
}

func (e *EventTypeNotRegisteredError) Unwrap() error { return ErrEventTypeNotRegistered }

// HandlerNotFoundError names the command type with no handler.
type HandlerNotFoundError struct {
	CommandType string
}

// NewHandlerNotFoundError creates a new HandlerNotFoundError.
func NewHandlerNotFoundError(cmdType string) *HandlerNotFoundError {
	return &HandlerNotFoundError{CommandType: cmdType}
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("burrow: no handler registered for command type %q", e.CommandType)
}

func (e *HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }
func (e *HandlerNotFoundError) Unwrap() error        { return ErrHandlerNotFound }

// PanicError captures the panic value and stack from a handler.
type PanicError struct {
	CommandType string
	Value       interface{}
	Stack       string
}

// NewPanicError creates a new PanicError.
func NewPanicError(cmdType string, value interface{}, stack string) *PanicError {
	return &PanicError{CommandType: cmdType, Value: value, Stack: stack}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("burrow: handler panicked while processing %q: %v", e.CommandType, e.Value)
}

func (e *PanicError) Is(target error) bool { return target == ErrHandlerPanicked }
func (e *PanicError) Unwrap() error        { return ErrHandlerPanicked }
