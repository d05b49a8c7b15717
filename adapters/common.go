package adapters

import (
	"fmt"
	"strings"
)

// Expected-version sentinels accepted by Append.
const (
	AnyVersion   int64 = -1 // skip the concurrency check
	NoStream     int64 = 0  // the stream must not exist yet
	StreamExists int64 = -2 // the stream must exist, at any version
)

// ExtractCategory returns the part of a stream ID before the first
// hyphen. An ID without a hyphen is its own category.
func ExtractCategory(streamID string) string {
	if category, _, found := strings.Cut(streamID, "-"); found {
		return category
	}
	return streamID
}

// ConflictError reports a failed optimistic concurrency check with the
// versions involved. Matches ErrConflict via errors.Is.
type ConflictError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// NewConflictError builds a ConflictError for a stream.
func NewConflictError(streamID string, expected, actual int64) *ConflictError {
	return &ConflictError{StreamID: streamID, ExpectedVersion: expected, ActualVersion: actual}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("burrow: version conflict on stream %q: expected version %d, got %d", e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StreamNotFoundError reports a missing stream by ID. Matches
// ErrStreamNotFound via errors.Is.
type StreamNotFoundError struct {
	StreamID string
}

// NewStreamNotFoundError builds a StreamNotFoundError for a stream.
func NewStreamNotFoundError(streamID string) *StreamNotFoundError {
	return &StreamNotFoundError{StreamID: streamID}
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("burrow: stream %q not found", e.StreamID)
}

func (e *StreamNotFoundError) Is(target error) bool { return target == ErrStreamNotFound }

// CheckVersion evaluates an expected version against the current state
// of a stream. Every adapter routes its concurrency check through here
// so backends agree on semantics. current is the stream's version when
// exists is true, ignored otherwise.
func CheckVersion(streamID string, expected, current int64, exists bool) error {
	switch {
	case expected == AnyVersion:
		return nil
	case expected < StreamExists:
		return ErrInvalidVersion
	case expected == NoStream && exists:
		return NewConflictError(streamID, expected, current)
	case expected == StreamExists && !exists:
		return NewStreamNotFoundError(streamID)
	case expected > 0 && current != expected:
		return NewConflictError(streamID, expected, current)
	}
	return nil
}

// CopyIdempotencyRecord returns a copy of the record, or nil for nil
// input. Stores hand out copies so callers cannot mutate stored state.
func CopyIdempotencyRecord(record *IdempotencyRecord) *IdempotencyRecord {
	if record == nil {
		return nil
	}
	c := *record
	return &c
}
