package burrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestOpenTicket struct {
	CommandBase
	TicketID string `json:"ticketId"`
	Title    string `json:"title"`
}

func (c TestOpenTicket) CommandType() string { return "OpenTicket" }
func (c TestOpenTicket) AggregateID() string { return c.TicketID }

func (c TestOpenTicket) Validate() error {
	if c.Title == "" {
		return NewValidationError(c.CommandType(), "Title", "title is required")
	}
	return nil
}

type TestAssignTicket struct {
	CommandBase
	TicketID   string `json:"ticketId"`
	AssigneeID string `json:"assigneeId"`
}

func (c TestAssignTicket) CommandType() string { return "AssignTicket" }
func (c TestAssignTicket) AggregateID() string { return c.TicketID }

func (c TestAssignTicket) Validate() error {
	errs := NewMultiValidationError(c.CommandType())
	if c.TicketID == "" {
		errs.AddField("TicketID", "ticket ID is required")
	}
	if c.AssigneeID == "" {
		errs.AddField("AssigneeID", "assignee ID is required")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

type TestCloseTicket struct {
	CommandBase
	TicketID  string `json:"ticketId"`
	ClientKey string `json:"clientKey"`
}

func (c TestCloseTicket) CommandType() string    { return "CloseTicket" }
func (c TestCloseTicket) Validate() error        { return nil }
func (c TestCloseTicket) IdempotencyKey() string { return c.ClientKey }

func TestCommandContracts(t *testing.T) {
	var cmd Command = TestOpenTicket{TicketID: "T-1", Title: "Fix login"}
	assert.Equal(t, "OpenTicket", cmd.CommandType())
	assert.NoError(t, cmd.Validate())

	var aggCmd AggregateCommand = TestAssignTicket{TicketID: "T-1", AssigneeID: "u-1"}
	assert.Equal(t, "T-1", aggCmd.AggregateID())

	var idemCmd IdempotentCommand = TestCloseTicket{TicketID: "T-1", ClientKey: "close-T-1-once"}
	assert.Equal(t, "close-T-1-once", idemCmd.IdempotencyKey())
}

func TestCommandBase(t *testing.T) {
	t.Run("zero value carries no identifiers", func(t *testing.T) {
		base := CommandBase{}
		assert.Empty(t, base.CommandID)
		assert.Empty(t, base.CorrelationID)
		assert.Empty(t, base.CausationID)
	})

	t.Run("builders chain and getters reflect them", func(t *testing.T) {
		base := CommandBase{}.
			WithCommandID("cmd-a1").
			WithCorrelationID("corr-b2").
			WithCausationID("cause-c3")

		assert.Equal(t, "cmd-a1", base.GetCommandID())
		assert.Equal(t, "corr-b2", base.GetCorrelationID())
		assert.Equal(t, "cause-c3", base.GetCausationID())
	})
}

func TestCommandResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		result := NewSuccessResult("Ticket-9", 5)

		assert.True(t, result.IsSuccess())
		assert.False(t, result.IsError())
		assert.Equal(t, "Ticket-9", result.AggregateID)
		assert.Equal(t, int64(5), result.Version)
		assert.Nil(t, result.Data)
		assert.NoError(t, result.Error)
	})

	t.Run("error", func(t *testing.T) {
		result := NewErrorResult(assert.AnError)

		assert.True(t, result.IsError())
		assert.False(t, result.IsSuccess())
		assert.Empty(t, result.AggregateID)
		assert.Equal(t, int64(0), result.Version)
		assert.Equal(t, assert.AnError, result.Error)
	})

	t.Run("failure without a Go error still reads as error", func(t *testing.T) {
		assert.True(t, CommandResult{Success: false}.IsError())
	})
}

func TestValidationError(t *testing.T) {
	t.Run("message includes command, field and reason", func(t *testing.T) {
		err := NewValidationError("OpenTicket", "Title", "required")

		assert.Contains(t, err.Error(), "OpenTicket")
		assert.Contains(t, err.Error(), "Title")
		assert.Contains(t, err.Error(), "required")
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, err.Unwrap())
	})

	t.Run("field is omitted when unset", func(t *testing.T) {
		err := &ValidationError{CommandType: "OpenTicket", Message: "invalid"}

		assert.Contains(t, err.Error(), "OpenTicket")
		assert.Contains(t, err.Error(), "invalid")
		assert.NotContains(t, err.Error(), "field")
	})

	t.Run("Unwrap surfaces the cause", func(t *testing.T) {
		err := &ValidationError{CommandType: "OpenTicket", Field: "Field", Message: "message", Cause: assert.AnError}
		assert.Equal(t, assert.AnError, err.Unwrap())
	})
}

func TestMultiValidationError(t *testing.T) {
	t.Run("aggregates field errors", func(t *testing.T) {
		errs := NewMultiValidationError("OpenTicket")
		assert.False(t, errs.HasErrors())
		assert.Nil(t, errs.Unwrap())

		errs.AddField("Priority", "priority unknown")
		errs.AddField("Labels", "label too long")

		assert.True(t, errs.HasErrors())
		assert.Contains(t, errs.Error(), "OpenTicket")
		assert.Contains(t, errs.Error(), "2 error(s)")
		assert.ErrorIs(t, errs, ErrValidationFailed)
	})

	t.Run("Unwrap returns the first error", func(t *testing.T) {
		errs := NewMultiValidationError("OpenTicket")
		first := NewValidationError("OpenTicket", "Priority", "priority unknown")
		errs.Add(first)
		errs.AddField("Labels", "label too long")

		assert.Equal(t, first, errs.Unwrap())
	})
}

func TestCommandValidators(t *testing.T) {
	t.Run("complete commands pass", func(t *testing.T) {
		assert.NoError(t, TestOpenTicket{TicketID: "T-1", Title: "Fix login"}.Validate())
		assert.NoError(t, TestAssignTicket{TicketID: "T-1", AssigneeID: "u-1"}.Validate())
	})

	t.Run("missing title yields a field error", func(t *testing.T) {
		err := TestOpenTicket{TicketID: "T-1"}.Validate()

		require.ErrorIs(t, err, ErrValidationFailed)
		var validErr *ValidationError
		require.ErrorAs(t, err, &validErr)
		assert.Equal(t, "Title", validErr.Field)
	})

	t.Run("multiple missing fields are all reported", func(t *testing.T) {
		err := TestAssignTicket{}.Validate()

		require.ErrorIs(t, err, ErrValidationFailed)
		var multiErr *MultiValidationError
		require.ErrorAs(t, err, &multiErr)
		assert.Len(t, multiErr.Errors, 2)
	})
}
