// Package bdd provides BDD-style test fixtures for event-sourced state.
// It enables expressive Given-When-Then testing for projection functions,
// session-based command handling, and command bus dispatch.
package bdd

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/burrowkit/burrow"
)

// TB is an alias for testing.TB to allow mocking in tests.
type TB = testing.TB

// Fixture provides BDD-style testing for a projection function and the
// decisions made on top of it. The Given events are replayed to build
// the starting state; When runs a decision that may emit new events.
type Fixture[S any] struct {
	t           TB
	apply       burrow.ApplyFunc[S]
	invariants  []burrow.InvariantFunc[S]
	givenEvents []interface{}
	state       S
	emitted     []interface{}
	err         error
	executed    bool
}

// Given sets up a fixture with the projection function and historical events.
func Given[S any](t TB, apply burrow.ApplyFunc[S], events ...interface{}) *Fixture[S] {
	t.Helper()
	return &Fixture[S]{t: t, apply: apply, givenEvents: events}
}

// WithInvariant adds an invariant that must hold after the decision's
// events are applied.
func (f *Fixture[S]) WithInvariant(fn burrow.InvariantFunc[S]) *Fixture[S] {
	f.invariants = append(f.invariants, fn)
	return f
}

// When executes a decision against the replayed state. The decision
// returns the events it wants to emit, or an error.
func (f *Fixture[S]) When(decide func(state S) ([]interface{}, error)) *Fixture[S] {
	f.t.Helper()

	var state S
	for _, event := range f.givenEvents {
		next, err := f.apply(state, event)
		if err != nil {
			f.t.Fatalf("applying given event %T: %v", event, err)
		}
		state = next
	}

	f.state = state
	f.emitted, f.err = decide(state)
	f.executed = true
	if f.err != nil {
		return f
	}

	for _, event := range f.emitted {
		next, err := f.apply(f.state, event)
		if err != nil {
			f.err = err
			return f
		}
		f.state = next
	}
	for _, inv := range f.invariants {
		if err := inv(f.state); err != nil {
			f.err = err
			break
		}
	}
	return f
}

// ensureRan fatals unless When ran first.
func (f *Fixture[S]) ensureRan(method string) {
	f.t.Helper()
	if !f.executed {
		f.t.Fatalf("bdd: %s() must be called after When()", method)
	}
}

// ensureSucceeded fatals unless When ran and the decision succeeded.
func (f *Fixture[S]) ensureSucceeded(method string) {
	f.t.Helper()
	f.ensureRan(method)
	if f.err != nil {
		f.t.Fatalf("want success, got error: %v", f.err)
	}
}

// ensureFailed fatals unless When ran and the decision failed.
func (f *Fixture[S]) ensureFailed(method string) {
	f.t.Helper()
	f.ensureRan(method)
	if f.err == nil {
		f.t.Fatal("want an error, got success")
	}
}

// Then asserts that the decision produced exactly the expected events.
func (f *Fixture[S]) Then(expectedEvents ...interface{}) {
	f.t.Helper()
	f.ensureSucceeded("Then")

	if len(f.emitted) != len(expectedEvents) {
		f.t.Fatalf("event count: want %d, got %d\nwant: %+v\ngot:  %+v",
			len(expectedEvents), len(f.emitted), expectedEvents, f.emitted)
	}
	for i, expected := range expectedEvents {
		if !reflect.DeepEqual(f.emitted[i], expected) {
			f.t.Errorf("event %d mismatch:\nwant: %+v\ngot:  %+v", i, expected, f.emitted[i])
		}
	}
}

// ThenError asserts that the decision produced the expected error.
func (f *Fixture[S]) ThenError(expectedErr error) {
	f.t.Helper()
	f.ensureFailed("ThenError")
	if !errors.Is(f.err, expectedErr) {
		f.t.Errorf("error: want %v, got %v", expectedErr, f.err)
	}
}

// ThenErrorContains asserts that the error message contains a substring.
func (f *Fixture[S]) ThenErrorContains(substring string) {
	f.t.Helper()
	f.ensureFailed("ThenErrorContains")
	if !strings.Contains(f.err.Error(), substring) {
		f.t.Errorf("error text: want substring %q, got %q", substring, f.err.Error())
	}
}

// ThenNoEvents asserts that no events were produced.
func (f *Fixture[S]) ThenNoEvents() {
	f.t.Helper()
	f.ensureSucceeded("ThenNoEvents")
	if len(f.emitted) > 0 {
		f.t.Errorf("want no events, got %d: %+v", len(f.emitted), f.emitted)
	}
}

// ThenState asserts on the state after the decision's events are applied.
func (f *Fixture[S]) ThenState(assert func(state S)) {
	f.t.Helper()
	f.ensureSucceeded("ThenState")
	assert(f.state)
}

type seedEvent struct {
	streamID string
	event    interface{}
}

// CommandTestFixture provides BDD-style testing with command bus integration.
type CommandTestFixture struct {
	t           TB
	ctx         context.Context
	bus         *burrow.CommandBus
	store       *burrow.EventStore
	givenEvents []seedEvent
	result      burrow.CommandResult
	err         error
	executed    bool
}

// GivenCommand creates a new command test fixture with a command bus.
func GivenCommand(t TB, bus *burrow.CommandBus, store *burrow.EventStore) *CommandTestFixture {
	t.Helper()
	return &CommandTestFixture{t: t, ctx: context.Background(), bus: bus, store: store}
}

// WithContext sets a custom context for the command execution.
func (f *CommandTestFixture) WithContext(ctx context.Context) *CommandTestFixture {
	f.ctx = ctx
	return f
}

// WithExistingEvents sets up initial events in the event store.
func (f *CommandTestFixture) WithExistingEvents(streamID string, events ...interface{}) *CommandTestFixture {
	for _, event := range events {
		f.givenEvents = append(f.givenEvents, seedEvent{streamID: streamID, event: event})
	}
	return f
}

// When dispatches the command.
func (f *CommandTestFixture) When(cmd burrow.Command) *CommandTestFixture {
	f.t.Helper()

	if f.store != nil {
		for _, seed := range f.givenEvents {
			if err := f.store.Append(f.ctx, seed.streamID, []interface{}{seed.event}); err != nil {
				f.t.Fatalf("storing given event: %v", err)
			}
		}
		f.givenEvents = nil
	}

	f.result, f.err = f.bus.Dispatch(f.ctx, cmd)
	f.executed = true
	return f
}

func (f *CommandTestFixture) ensureRan(method string) {
	f.t.Helper()
	if !f.executed {
		f.t.Fatalf("bdd: %s() must be called after When()", method)
	}
}

// ThenSucceeds asserts the command succeeded.
func (f *CommandTestFixture) ThenSucceeds() *CommandTestFixture {
	f.t.Helper()
	f.ensureRan("ThenSucceeds")
	if f.err != nil {
		f.t.Fatalf("want success, got error: %v", f.err)
	}
	if !f.result.IsSuccess() {
		f.t.Fatalf("want a success result, got error: %v", f.result.Error)
	}
	return f
}

// ThenFails asserts the command failed with the expected error.
func (f *CommandTestFixture) ThenFails(expectedErr error) {
	f.t.Helper()
	f.ensureRan("ThenFails")
	if f.err == nil && f.result.IsSuccess() {
		f.t.Fatal("want a failed result, got success")
	}

	cause := f.err
	if cause == nil {
		cause = f.result.Error
	}
	if !errors.Is(cause, expectedErr) {
		f.t.Errorf("error: want %v, got %v", expectedErr, cause)
	}
}

// ThenReturnsAggregateID asserts the result contains the expected aggregate ID.
func (f *CommandTestFixture) ThenReturnsAggregateID(expected string) *CommandTestFixture {
	f.t.Helper()
	f.ensureRan("ThenReturnsAggregateID")
	if f.result.AggregateID != expected {
		f.t.Errorf("aggregate ID: want %q, got %q", expected, f.result.AggregateID)
	}
	return f
}

// ThenReturnsVersion asserts the result contains the expected version.
func (f *CommandTestFixture) ThenReturnsVersion(expected int64) *CommandTestFixture {
	f.t.Helper()
	f.ensureRan("ThenReturnsVersion")
	if f.result.Version != expected {
		f.t.Errorf("version: want %d, got %d", expected, f.result.Version)
	}
	return f
}
