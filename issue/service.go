package issue

import (
	"context"

	"github.com/burrowkit/burrow"
)

// Service executes issue commands against an event store. Each command
// opens a session, replays the issue's stream, stages the resulting
// events, and commits them as one atomic batch.
//
// A per-stream locker serializes writers inside the process; optimistic
// concurrency still guards against writers elsewhere.
type Service struct {
	store   *burrow.EventStore
	locker  *burrow.StreamLocker
	project burrow.ApplyFunc[State]
	logger  burrow.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLocker sets the per-stream locker. Pass nil to disable in-process
// serialization and rely on optimistic concurrency alone.
func WithLocker(l *burrow.StreamLocker) ServiceOption {
	return func(s *Service) {
		s.locker = l
	}
}

// WithProjector replaces the projection function used by sessions the
// service opens. Intended for tests that need to observe commit behavior
// when projection fails partway through a batch.
func WithProjector(fn burrow.ApplyFunc[State]) ServiceOption {
	return func(s *Service) {
		s.project = fn
	}
}

// WithServiceLogger sets the logger for command execution.
func WithServiceLogger(l burrow.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service and registers the issue event types with
// the store's serializer.
func NewService(store *burrow.EventStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		locker:  burrow.NewStreamLocker(),
		project: Project,
		logger:  store.Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	store.RegisterEvents(Events()...)
	return s
}

// Store returns the underlying event store.
func (s *Service) Store() *burrow.EventStore {
	return s.store
}

// Register wires the service's command handlers into a command bus.
func (s *Service) Register(bus *burrow.CommandBus) {
	bus.Register(burrow.NewGenericHandler(s.handleCreate))
	bus.Register(burrow.NewGenericHandler(s.handleAssign))
	bus.Register(burrow.NewGenericHandler(s.handleUnassign))
	bus.Register(burrow.NewGenericHandler(s.handleChangeStatus))
}

// session opens and loads a session for the given issue.
func (s *Service) session(ctx context.Context, issueID string) (*Session, error) {
	sess, err := burrow.NewSession(s.store, burrow.NewStreamID(Category, issueID), s.project,
		burrow.WithInvariant(CheckInvariant))
	if err != nil {
		return nil, err
	}
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// lock acquires the stream lock for an issue, if a locker is configured.
func (s *Service) lock(issueID string) func() {
	if s.locker == nil {
		return func() {}
	}
	return s.locker.Lock(burrow.BuildStreamID(Category, issueID))
}

// Create puts a new issue into the tracker in the Backlog status.
// Creating an issue that already exists succeeds without emitting
// anything, so the command can be retried safely.
func (s *Service) Create(ctx context.Context, cmd CreateIssue) (burrow.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return burrow.NewErrorResult(err), err
	}

	unlock := s.lock(cmd.IssueID)
	defer unlock()

	sess, err := s.session(ctx, cmd.IssueID)
	if err != nil {
		return burrow.NewErrorResult(err), err
	}

	if sess.Exists() {
		// Already created; nothing to do
		return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
	}

	if err := sess.Stage(Created{IssueID: cmd.IssueID, Title: cmd.Title}); err != nil {
		return burrow.NewErrorResult(err), err
	}

	if err := sess.Commit(ctx); err != nil {
		return burrow.NewErrorResult(err), err
	}

	s.logger.Debug("issue created", "issue_id", cmd.IssueID)
	return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
}

// Assign sets the issue's assignee, replacing any previous one. The
// command always appends an AssigneeChanged event, even when the new
// assignee is the current one, so the history records every assignment.
func (s *Service) Assign(ctx context.Context, cmd AssignIssue) (burrow.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return burrow.NewErrorResult(err), err
	}

	unlock := s.lock(cmd.IssueID)
	defer unlock()

	sess, err := s.session(ctx, cmd.IssueID)
	if err != nil {
		return burrow.NewErrorResult(err), err
	}

	if !sess.Exists() {
		err := burrow.NewNotFoundError(burrow.BuildStreamID(Category, cmd.IssueID))
		return burrow.NewErrorResult(err), err
	}

	if err := sess.Stage(AssigneeChanged{IssueID: cmd.IssueID, NewAssigneeID: cmd.AssigneeID}); err != nil {
		return burrow.NewErrorResult(err), err
	}

	if err := sess.Commit(ctx); err != nil {
		return burrow.NewErrorResult(err), err
	}

	return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
}

// Unassign clears the issue's assignee. An issue that was InProgress
// falls back to Backlog in the same batch: both events commit together
// or not at all, so no reader ever sees an assignee-less InProgress
// issue.
func (s *Service) Unassign(ctx context.Context, cmd UnassignIssue) (burrow.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return burrow.NewErrorResult(err), err
	}

	unlock := s.lock(cmd.IssueID)
	defer unlock()

	sess, err := s.session(ctx, cmd.IssueID)
	if err != nil {
		return burrow.NewErrorResult(err), err
	}

	if !sess.Exists() {
		err := burrow.NewNotFoundError(burrow.BuildStreamID(Category, cmd.IssueID))
		return burrow.NewErrorResult(err), err
	}

	if !sess.State().Assigned() {
		err := burrow.NewInvalidStateError(burrow.BuildStreamID(Category, cmd.IssueID),
			"issue has no assignee to remove")
		return burrow.NewErrorResult(err), err
	}

	// Capture the status and assignee before staging: the decision to
	// fall back to Backlog depends on the state at command time, not on
	// the state after AssigneeRemoved is applied.
	statusBefore := sess.State().Status
	removed := sess.State().AssigneeID

	if err := sess.Stage(AssigneeRemoved{IssueID: cmd.IssueID, PreviousAssigneeID: removed}); err != nil {
		return burrow.NewErrorResult(err), err
	}

	if statusBefore == StatusInProgress {
		if err := sess.Stage(StatusChanged{IssueID: cmd.IssueID, OldStatus: statusBefore, NewStatus: StatusBacklog}); err != nil {
			sess.Rollback()
			return burrow.NewErrorResult(err), err
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return burrow.NewErrorResult(err), err
	}

	return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
}

// SetStatus moves the issue to a new workflow state. Moving to a state
// that requires an assignee is rejected while the issue is unassigned.
func (s *Service) SetStatus(ctx context.Context, cmd ChangeStatus) (burrow.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return burrow.NewErrorResult(err), err
	}

	unlock := s.lock(cmd.IssueID)
	defer unlock()

	sess, err := s.session(ctx, cmd.IssueID)
	if err != nil {
		return burrow.NewErrorResult(err), err
	}

	if !sess.Exists() {
		err := burrow.NewNotFoundError(burrow.BuildStreamID(Category, cmd.IssueID))
		return burrow.NewErrorResult(err), err
	}

	state := sess.State()
	if state.Status == cmd.Status {
		return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
	}

	if cmd.Status.RequiresAssignee() && !state.Assigned() {
		err := burrow.NewInvalidStateError(burrow.BuildStreamID(Category, cmd.IssueID),
			"cannot move an unassigned issue to "+cmd.Status.String())
		return burrow.NewErrorResult(err), err
	}

	if err := sess.Stage(StatusChanged{IssueID: cmd.IssueID, OldStatus: state.Status, NewStatus: cmd.Status}); err != nil {
		return burrow.NewErrorResult(err), err
	}

	if err := sess.Commit(ctx); err != nil {
		return burrow.NewErrorResult(err), err
	}

	return burrow.NewSuccessResult(cmd.IssueID, sess.Version()), nil
}

// handleCreate adapts Create to the command bus handler signature.
func (s *Service) handleCreate(ctx context.Context, cmd CreateIssue) (burrow.CommandResult, error) {
	return s.Create(ctx, cmd)
}

func (s *Service) handleAssign(ctx context.Context, cmd AssignIssue) (burrow.CommandResult, error) {
	return s.Assign(ctx, cmd)
}

func (s *Service) handleUnassign(ctx context.Context, cmd UnassignIssue) (burrow.CommandResult, error) {
	return s.Unassign(ctx, cmd)
}

func (s *Service) handleChangeStatus(ctx context.Context, cmd ChangeStatus) (burrow.CommandResult, error) {
	return s.SetStatus(ctx, cmd)
}
