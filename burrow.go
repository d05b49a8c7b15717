// Package burrow is a minimal event-sourced aggregate engine.
//
// burrow persists aggregate history as ordered event streams and rebuilds
// current state by replaying those streams through a projection function.
// Writes go through a Session: events are staged with their state effect
// applied synchronously, then committed to the log as one atomic batch
// guarded by optimistic concurrency.
//
// # Quick Start
//
// Create an event store with the in-memory adapter for development:
//
//	import (
//	    "github.com/burrowkit/burrow"
//	    "github.com/burrowkit/burrow/adapters/memory"
//	)
//
//	store := burrow.New(memory.NewAdapter())
//
// For production, use the PostgreSQL adapter:
//
//	import (
//	    "github.com/burrowkit/burrow"
//	    "github.com/burrowkit/burrow/adapters/postgres"
//	)
//
//	adapter, err := postgres.NewAdapter(connStr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := burrow.New(adapter)
//
// # Defining Events
//
// Events are simple structs that record something that happened:
//
//	type IssueCreated struct {
//	    IssueID string `json:"issueId"`
//	    Title   string `json:"title"`
//	}
//
//	type AssigneeChanged struct {
//	    IssueID    string `json:"issueId"`
//	    AssigneeID string `json:"assigneeId"`
//	}
//
// Register events with the store so they can be deserialized back to their
// concrete types:
//
//	store.RegisterEvents(IssueCreated{}, AssigneeChanged{})
//
// # Sessions
//
// A Session is a unit of work over one stream. It replays the stream
// through an ApplyFunc to rebuild state, stages new events with their
// effect immediately visible, and commits the batch atomically:
//
//	apply := func(s IssueState, event interface{}) (IssueState, error) {
//	    switch e := event.(type) {
//	    case IssueCreated:
//	        s.Title = e.Title
//	    case AssigneeChanged:
//	        s.AssigneeID = e.AssigneeID
//	    }
//	    return s, nil
//	}
//
//	sess, err := burrow.NewSession(store, burrow.NewStreamID("Issue", id), apply)
//	if err := sess.Load(ctx); err != nil { ... }
//	if err := sess.Stage(AssigneeChanged{IssueID: id, AssigneeID: "u-7"}); err != nil { ... }
//	// sess.State() already reflects the staged event
//	if err := sess.Commit(ctx); err != nil { ... }
//
// A failed commit leaves the log untouched; Rollback restores the state
// observed at load time. Conflicts from concurrent writers match
// ErrConflict and are retryable: reload and reapply.
//
// # Optimistic Concurrency
//
// Direct appends take an expected version:
//
//	err := store.Append(ctx, "Issue-123", events, burrow.ExpectVersion(burrow.NoStream))
//
// Version constants:
//   - AnyVersion (-1): Skip version check
//   - NoStream (0): Stream must not exist
//   - StreamExists (-2): Stream must exist
//
// # Commands
//
// Commands encapsulate intent and flow through a middleware pipeline:
//
//	bus := burrow.NewCommandBus()
//	bus.Use(burrow.ValidationMiddleware())
//	bus.Use(burrow.RecoveryMiddleware())
//	bus.Use(burrow.RetryMiddleware(burrow.DefaultRetryConfig()))
//
//	result, err := bus.Dispatch(ctx, CreateIssue{Title: "fix login"})
//
// The issue package under this module is a complete worked domain built on
// these primitives.
package burrow

// Version returns the library version string.
func Version() string {
	return "0.1.0"
}

// BuildStreamID creates a stream ID from an aggregate type and ID.
// This follows the convention: "{Type}-{ID}"
func BuildStreamID(aggregateType, aggregateID string) string {
	return aggregateType + "-" + aggregateID
}
