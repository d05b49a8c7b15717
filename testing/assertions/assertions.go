// Package assertions provides test helpers for checking the event
// history of a stream: which event types were written, in what order,
// and with what payloads.
package assertions

import (
	"reflect"
	"testing"

	"github.com/burrowkit/burrow"
)

// TB is an alias for testing.TB so helpers can be tested against a
// recording fake.
type TB = testing.TB

// AssertHistoryLen checks the number of events in the history.
func AssertHistoryLen(t TB, history []burrow.Event, want int) {
	t.Helper()

	if len(history) != want {
		t.Errorf("expected %d events in history, got %d", want, len(history))
	}
}

// AssertHistoryTypes checks that the history carries exactly the given
// event types, in order.
func AssertHistoryTypes(t TB, history []burrow.Event, types ...string) {
	t.Helper()

	if len(history) != len(types) {
		t.Fatalf("expected %d events in history, got %d", len(types), len(history))
		return
	}

	for i, want := range types {
		if history[i].Type != want {
			t.Errorf("event %d: expected type %s, got %s", i, want, history[i].Type)
		}
	}
}

// AssertEventAt checks that the payload at index equals want.
func AssertEventAt[T any](t TB, history []burrow.Event, index int, want T) {
	t.Helper()

	if index < 0 || index >= len(history) {
		t.Fatalf("index %d out of bounds, history has %d events", index, len(history))
		return
	}

	got, ok := history[index].Data.(T)
	if !ok {
		t.Fatalf("event %d: expected payload of type %T, got %T", index, want, history[index].Data)
		return
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("event %d payload mismatch:\nwant: %+v\ngot:  %+v", index, want, got)
	}
}

// AssertLastEvent checks that the final payload equals want.
func AssertLastEvent[T any](t TB, history []burrow.Event, want T) {
	t.Helper()

	if len(history) == 0 {
		t.Fatal("expected at least one event in history, got none")
		return
	}

	AssertEventAt(t, history, len(history)-1, want)
}

// AssertContainsEvent checks that some event in the history carries a
// payload equal to want.
func AssertContainsEvent[T any](t TB, history []burrow.Event, want T) {
	t.Helper()

	for _, event := range history {
		if got, ok := event.Data.(T); ok && reflect.DeepEqual(got, want) {
			return
		}
	}

	t.Errorf("history does not contain event: %+v", want)
}

// AssertNoneOfType checks that no event of the named type was written.
func AssertNoneOfType(t TB, history []burrow.Event, eventType string) {
	t.Helper()

	for i, event := range history {
		if event.Type == eventType {
			t.Errorf("event %d: unexpected %s in history: %+v", i, eventType, event.Data)
		}
	}
}

// CountOfType returns how many events of the named type the history
// carries.
func CountOfType(history []burrow.Event, eventType string) int {
	count := 0
	for _, event := range history {
		if event.Type == eventType {
			count++
		}
	}
	return count
}
