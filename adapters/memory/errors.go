package memory

import (
	"github.com/burrowkit/burrow/adapters"
)

// Aliases for the shared adapter errors, so code importing only this
// package can still match them with errors.Is.
var (
	ErrAdapterClosed  = adapters.ErrAdapterClosed
	ErrEmptyStreamID  = adapters.ErrEmptyStreamID
	ErrNoEvents       = adapters.ErrNoEvents
	ErrConflict       = adapters.ErrConflict
	ErrStreamNotFound = adapters.ErrStreamNotFound
	ErrInvalidVersion = adapters.ErrInvalidVersion
)
