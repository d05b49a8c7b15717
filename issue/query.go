package issue

import (
	"context"

	"github.com/burrowkit/burrow"
)

// StateReader answers queries about issues by replaying their streams.
// Every read reflects all committed events at the time of the call.
type StateReader struct {
	store *burrow.EventStore
}

// NewStateReader creates a StateReader backed by the given store.
func NewStateReader(store *burrow.EventStore) *StateReader {
	return &StateReader{store: store}
}

// Get returns the current state of an issue. It returns a not-found
// error when the issue has never been created.
func (r *StateReader) Get(ctx context.Context, issueID string) (State, error) {
	sess, err := burrow.NewSession(r.store, burrow.NewStreamID(Category, issueID), Project)
	if err != nil {
		return State{}, err
	}
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		return State{}, err
	}

	if !sess.Exists() {
		return State{}, burrow.NewNotFoundError(burrow.BuildStreamID(Category, issueID))
	}

	return sess.State(), nil
}

// Version returns the committed version of an issue's stream, or zero
// when the stream does not exist.
func (r *StateReader) Version(ctx context.Context, issueID string) (int64, error) {
	return r.store.StreamVersion(ctx, burrow.BuildStreamID(Category, issueID))
}

// History returns the issue's full event history in commit order.
func (r *StateReader) History(ctx context.Context, issueID string) ([]burrow.Event, error) {
	events, err := r.store.Load(ctx, burrow.BuildStreamID(Category, issueID))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, burrow.NewNotFoundError(burrow.BuildStreamID(Category, issueID))
	}
	return events, nil
}
