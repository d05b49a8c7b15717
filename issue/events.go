package issue

// Category is the stream category for issue aggregates. Stream IDs take
// the form "Issue-{id}".
const Category = "Issue"

// Created records that a new issue entered the tracker.
// It is always the first event of a stream.
type Created struct {
	IssueID string `json:"issueId"`
	Title   string `json:"title"`
}

// AssigneeChanged records that the issue was assigned to a user,
// replacing any previous assignee.
type AssigneeChanged struct {
	IssueID       string `json:"issueId"`
	NewAssigneeID string `json:"newAssigneeId"`
}

// AssigneeRemoved records that the issue's assignee was cleared.
type AssigneeRemoved struct {
	IssueID            string `json:"issueId"`
	PreviousAssigneeID string `json:"previousAssigneeId"`
}

// StatusChanged records a workflow transition.
type StatusChanged struct {
	IssueID   string `json:"issueId"`
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
}

// Events returns one example value of every issue event type, for
// registration with a serializer.
func Events() []interface{} {
	return []interface{}{
		Created{},
		AssigneeChanged{},
		AssigneeRemoved{},
		StatusChanged{},
	}
}
