package issue

import (
	"fmt"

	"github.com/burrowkit/burrow"
)

// State is the projected state of one issue aggregate. The zero value
// represents an issue that does not exist yet.
type State struct {
	ID         string
	Title      string
	Status     Status
	AssigneeID string

	// Exists is true once a Created event has been applied.
	Exists bool
}

// Assigned reports whether the issue currently has an assignee.
func (s State) Assigned() bool {
	return s.AssigneeID != ""
}

// Project applies a single event to the state and returns the updated
// state. It is the only write path for State: both replay and staging go
// through it. Project is pure, so replaying the same events always yields
// the same state.
//
// An event type outside the issue vocabulary is an error: it means the
// stream is corrupt or a new event type was deployed without extending
// the projection.
func Project(s State, event interface{}) (State, error) {
	switch e := event.(type) {
	case Created:
		s.ID = e.IssueID
		s.Title = e.Title
		s.Status = StatusBacklog
		s.Exists = true
	case AssigneeChanged:
		s.AssigneeID = e.NewAssigneeID
	case AssigneeRemoved:
		s.AssigneeID = ""
	case StatusChanged:
		s.Status = e.NewStatus
	default:
		return s, fmt.Errorf("issue: unexpected event type %T", event)
	}
	return s, nil
}

// CheckInvariant verifies the cross-field consistency rule: an issue in a
// status that requires an assignee must have one. Command handlers reject
// transitions that would break this; the session re-checks it at commit as
// a backstop against handler bugs.
func CheckInvariant(s State) error {
	if s.Exists && s.Status.RequiresAssignee() && !s.Assigned() {
		return fmt.Errorf("issue %s is %s but has no assignee", s.ID, s.Status)
	}
	return nil
}

// Session is a burrow session projecting issue state.
type Session = burrow.Session[State]

// NewSession opens a session for the given issue ID with the standard
// projection and invariant wired in.
func NewSession(store *burrow.EventStore, issueID string, opts ...burrow.SessionOption[State]) (*Session, error) {
	allOpts := append([]burrow.SessionOption[State]{
		burrow.WithInvariant(CheckInvariant),
	}, opts...)
	return burrow.NewSession(store, burrow.NewStreamID(Category, issueID), Project, allOpts...)
}
