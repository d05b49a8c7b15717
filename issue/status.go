// Package issue implements an event-sourced issue tracker aggregate on top
// of the burrow engine. It is both a usable domain package and the worked
// example for sessions, staged batches, and invariant enforcement.
package issue

import "fmt"

// Status is the workflow state of an issue.
type Status string

// Workflow states. An issue starts in Backlog and moves through InProgress
// and Review to Done. InProgress requires an assignee.
const (
	StatusBacklog    Status = "Backlog"
	StatusInProgress Status = "InProgress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// Valid reports whether s is a known workflow state.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("issue: unknown status %q", s)
	}
	return status, nil
}

// RequiresAssignee reports whether the status is only valid while the
// issue has an assignee.
func (s Status) RequiresAssignee() bool {
	return s == StatusInProgress
}
