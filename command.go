package burrow

import "fmt"

// Command is an intent to change an aggregate. Commands are validated
// before a handler opens a session for them.
type Command interface {
	CommandType() string
	Validate() error
}

// AggregateCommand is a command addressed to one aggregate instance.
// The bus uses the ID for per-aggregate locking and result reporting.
type AggregateCommand interface {
	Command
	AggregateID() string
}

// IdempotentCommand carries a deduplication key. Commands with the
// same key are processed once; replays return the recorded result.
type IdempotentCommand interface {
	Command
	IdempotencyKey() string
}

// CommandBase carries the tracing identifiers shared by all commands.
// Embed it in command types.
type CommandBase struct {
	CommandID     string `json:"commandId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CausationID   string `json:"causationId,omitempty"`
}

// The With* builders return copies, so a shared base value is never
// mutated in place.

func (c CommandBase) WithCommandID(id string) CommandBase { c.CommandID = id; return c }

func (c CommandBase) WithCorrelationID(id string) CommandBase { c.CorrelationID = id; return c }

func (c CommandBase) WithCausationID(id string) CommandBase { c.CausationID = id; return c }

func (c CommandBase) GetCommandID() string     { return c.CommandID }
func (c CommandBase) GetCorrelationID() string { return c.CorrelationID }
func (c CommandBase) GetCausationID() string   { return c.CausationID }

// CommandResult reports the outcome of one command execution. Version
// is the aggregate's stream version after the commit.
type CommandResult struct {
	Success     bool
	AggregateID string
	Version     int64
	Data        interface{}
	Error       error
}

// NewSuccessResult creates a successful CommandResult.
func NewSuccessResult(aggregateID string, version int64) CommandResult {
	return CommandResult{Success: true, AggregateID: aggregateID, Version: version}
}

// NewErrorResult creates a failed CommandResult.
func NewErrorResult(err error) CommandResult {
	return CommandResult{Error: err}
}

func (r CommandResult) IsSuccess() bool { return r.Success && r.Error == nil }
func (r CommandResult) IsError() bool   { return !r.IsSuccess() }

// ValidationError reports a command validation failure. It matches both
// ErrValidationFailed and ErrInvalidArgument via errors.Is.
type ValidationError struct {
	CommandType string
	Field       string
	Message     string
	Cause       error
}

// NewValidationError creates a ValidationError for one field.
func NewValidationError(cmdType, field, message string) *ValidationError {
	return &ValidationError{CommandType: cmdType, Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("burrow: validation failed for command %q: %s", e.CommandType, e.Message)
	}
	return fmt.Sprintf("burrow: validation failed for command %q field %q: %s",
		e.CommandType, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed || target == ErrInvalidArgument
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// MultiValidationError collects validation failures across fields so a
// caller sees every problem at once.
type MultiValidationError struct {
	CommandType string
	Errors      []*ValidationError
}

// NewMultiValidationError creates an empty MultiValidationError.
func NewMultiValidationError(cmdType string) *MultiValidationError {
	return &MultiValidationError{CommandType: cmdType}
}

func (e *MultiValidationError) Error() string {
	return fmt.Sprintf("burrow: validation failed for command %q: %d error(s)", e.CommandType, len(e.Errors))
}

func (e *MultiValidationError) Is(target error) bool {
	return target == ErrValidationFailed || target == ErrInvalidArgument
}

// Unwrap returns the first error for errors.Unwrap().
func (e *MultiValidationError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// Add appends a validation error.
func (e *MultiValidationError) Add(err *ValidationError) { e.Errors = append(e.Errors, err) }

// AddField appends a validation error for a specific field.
func (e *MultiValidationError) AddField(field, message string) {
	e.Add(NewValidationError(e.CommandType, field, message))
}

// HasErrors reports whether any validation errors were added.
func (e *MultiValidationError) HasErrors() bool { return len(e.Errors) > 0 }
