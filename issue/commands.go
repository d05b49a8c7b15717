package issue

import (
	"github.com/burrowkit/burrow"
)

// CreateIssue puts a new issue into the tracker. Creating an issue that
// already exists is a no-op, so the command is safe to retry.
type CreateIssue struct {
	burrow.CommandBase
	IssueID string `json:"issueId"`
	Title   string `json:"title"`
}

// CommandType returns the command type identifier.
func (c CreateIssue) CommandType() string { return "CreateIssue" }

// AggregateID returns the targeted issue ID.
func (c CreateIssue) AggregateID() string { return c.IssueID }

// Validate checks the command is well-formed.
func (c CreateIssue) Validate() error {
	errs := burrow.NewMultiValidationError(c.CommandType())
	if c.IssueID == "" {
		errs.AddField("issueId", "required")
	}
	if c.Title == "" {
		errs.AddField("title", "required")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// AssignIssue sets the issue's assignee, replacing any previous one.
type AssignIssue struct {
	burrow.CommandBase
	IssueID    string `json:"issueId"`
	AssigneeID string `json:"assigneeId"`
}

// CommandType returns the command type identifier.
func (c AssignIssue) CommandType() string { return "AssignIssue" }

// AggregateID returns the targeted issue ID.
func (c AssignIssue) AggregateID() string { return c.IssueID }

// Validate checks the command is well-formed.
func (c AssignIssue) Validate() error {
	errs := burrow.NewMultiValidationError(c.CommandType())
	if c.IssueID == "" {
		errs.AddField("issueId", "required")
	}
	if c.AssigneeID == "" {
		errs.AddField("assigneeId", "required")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// UnassignIssue clears the issue's assignee. If the issue was InProgress,
// it also falls back to Backlog, since InProgress requires an assignee.
type UnassignIssue struct {
	burrow.CommandBase
	IssueID string `json:"issueId"`
}

// CommandType returns the command type identifier.
func (c UnassignIssue) CommandType() string { return "UnassignIssue" }

// AggregateID returns the targeted issue ID.
func (c UnassignIssue) AggregateID() string { return c.IssueID }

// Validate checks the command is well-formed.
func (c UnassignIssue) Validate() error {
	if c.IssueID == "" {
		return burrow.NewValidationError(c.CommandType(), "issueId", "required")
	}
	return nil
}

// ChangeStatus moves the issue to a new workflow state.
type ChangeStatus struct {
	burrow.CommandBase
	IssueID string `json:"issueId"`
	Status  Status `json:"status"`
}

// CommandType returns the command type identifier.
func (c ChangeStatus) CommandType() string { return "ChangeStatus" }

// AggregateID returns the targeted issue ID.
func (c ChangeStatus) AggregateID() string { return c.IssueID }

// Validate checks the command is well-formed.
func (c ChangeStatus) Validate() error {
	errs := burrow.NewMultiValidationError(c.CommandType())
	if c.IssueID == "" {
		errs.AddField("issueId", "required")
	}
	if !c.Status.Valid() {
		errs.AddField("status", "unknown status")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
