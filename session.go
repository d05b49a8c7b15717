package burrow

import (
	"context"
	"fmt"
)

// ApplyFunc projects a single event onto a state value and returns the
// updated state. Both replay during Load and synchronous application
// during Stage go through it.
//
// An ApplyFunc must be pure with respect to its inputs. Returning an error
// marks the event as unprojectable; Stage refuses it and the session state
// is left exactly as it was.
type ApplyFunc[S any] func(state S, event interface{}) (S, error)

// InvariantFunc checks a cross-field consistency rule on a state value.
// It returns a non-nil error describing the violation, or nil if the state
// is consistent.
type InvariantFunc[S any] func(state S) error

// Session is a unit of work over a single event stream. It loads current
// state by replaying the stream, stages new events with immediate state
// projection, and commits the staged batch atomically with optimistic
// concurrency against the version observed at load time.
//
// The staging model mirrors a database transaction: state mutations made
// through Stage are visible to subsequent reads within the session, but
// nothing reaches the log until Commit. Rollback (or simply discarding the
// session) abandons the staged batch.
//
// A Session is not safe for concurrent use. Serialize writers per stream
// with a StreamLocker or rely on optimistic concurrency alone.
type Session[S any] struct {
	store      *EventStore
	streamID   StreamID
	apply      ApplyFunc[S]
	invariants []InvariantFunc[S]
	metadata   Metadata

	state       S
	baseState   S
	baseVersion int64
	staged      []interface{}
	loaded      bool
	closed      bool
}

// SessionOption configures a Session.
type SessionOption[S any] func(*Session[S])

// WithInvariant registers a consistency rule checked at commit time.
// Commit refuses the batch with an ErrInvalidState-matching error if any
// registered invariant rejects the would-be-committed state.
func WithInvariant[S any](fn InvariantFunc[S]) SessionOption[S] {
	return func(s *Session[S]) {
		s.invariants = append(s.invariants, fn)
	}
}

// WithSessionMetadata sets metadata attached to every event committed by
// the session.
func WithSessionMetadata[S any](m Metadata) SessionOption[S] {
	return func(s *Session[S]) {
		s.metadata = m
	}
}

// NewSession creates a session for the given stream. The zero value of S is
// the initial state; call Load to replay the stream before staging against
// an existing aggregate.
func NewSession[S any](store *EventStore, streamID StreamID, apply ApplyFunc[S], opts ...SessionOption[S]) (*Session[S], error) {
	if store == nil {
		return nil, fmt.Errorf("burrow: session requires an event store")
	}
	if err := streamID.Validate(); err != nil {
		return nil, err
	}
	if apply == nil {
		return nil, fmt.Errorf("burrow: session requires an apply function")
	}

	s := &Session[S]{
		store:    store,
		streamID: streamID,
		apply:    apply,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load replays the stream through the apply function to rebuild current
// state and records the stream version for optimistic concurrency at
// commit. Loading a nonexistent stream succeeds with the zero state and
// version 0. Load discards any previously staged events.
func (s *Session[S]) Load(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	events, err := s.store.Load(ctx, s.streamID.String())
	if err != nil {
		return err
	}

	var state S
	var version int64
	for _, ev := range events {
		state, err = s.apply(state, ev.Data)
		if err != nil {
			return fmt.Errorf("burrow: replay of stream %q failed at version %d: %w",
				s.streamID, ev.Version, err)
		}
		version = ev.Version
	}

	s.state = state
	s.baseState = state
	s.baseVersion = version
	s.staged = nil
	s.loaded = true
	return nil
}

// State returns the current in-session state, including the effect of all
// staged events.
func (s *Session[S]) State() S {
	return s.state
}

// Version returns the stream version observed at Load time. Staged events
// do not advance it; only a successful Commit does.
func (s *Session[S]) Version() int64 {
	return s.baseVersion
}

// Exists reports whether the stream had any events at Load time.
func (s *Session[S]) Exists() bool {
	return s.baseVersion > 0
}

// Staged returns the staged, uncommitted events in staging order.
// The returned slice is shared; callers must not modify it.
func (s *Session[S]) Staged() []interface{} {
	return s.staged
}

// Dirty reports whether the session has staged events awaiting commit.
func (s *Session[S]) Dirty() bool {
	return len(s.staged) > 0
}

// Stage projects the event onto the session state and, on success, appends
// it to the staged batch. The event's effect is immediately visible through
// State. If the apply function rejects the event, neither state nor the
// batch changes.
func (s *Session[S]) Stage(event interface{}) error {
	if s.closed {
		return ErrSessionClosed
	}
	if event == nil {
		return fmt.Errorf("burrow: cannot stage nil event")
	}

	next, err := s.apply(s.state, event)
	if err != nil {
		return fmt.Errorf("burrow: failed to apply %s: %w", GetEventType(event), err)
	}

	s.state = next
	s.staged = append(s.staged, event)
	return nil
}

// StageAll stages a sequence of events, stopping at the first failure.
// Events staged before the failure remain staged.
func (s *Session[S]) StageAll(events ...interface{}) error {
	for _, ev := range events {
		if err := s.Stage(ev); err != nil {
			return err
		}
	}
	return nil
}

// Commit atomically appends the staged batch to the log, expecting the
// stream to still be at the version observed at Load. On success the
// session's base advances past the batch and staging continues from the
// new state. On any failure the log is untouched and the staged batch is
// preserved, so the caller may Rollback and retry.
//
// A concurrent writer surfacing as a version conflict returns an error
// matching ErrConflict; IsRetryable reports true for it. Registered
// invariants are checked against the post-batch state before anything is
// written.
//
// Committing an empty batch is a no-op.
func (s *Session[S]) Commit(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.staged) == 0 {
		return nil
	}

	for _, inv := range s.invariants {
		if err := inv(s.state); err != nil {
			return NewInvalidStateError(s.streamID.String(), err.Error())
		}
	}

	// A base version of 0 doubles as NoStream, so a fresh stream commit
	// expects the stream to still be absent.
	err := s.store.Append(ctx, s.streamID.String(), s.staged,
		ExpectVersion(s.baseVersion), WithAppendMetadata(s.metadata))
	if err != nil {
		return err
	}

	s.baseVersion += int64(len(s.staged))
	s.baseState = s.state
	s.staged = nil
	return nil
}

// Rollback discards the staged batch and restores the state observed at
// Load (or at the last successful Commit). The session remains usable.
func (s *Session[S]) Rollback() {
	s.state = s.baseState
	s.staged = nil
}

// Close marks the session closed. Further Stage, Load, and Commit calls
// fail with ErrSessionClosed. Staged events are discarded.
func (s *Session[S]) Close() {
	s.Rollback()
	s.closed = true
}
