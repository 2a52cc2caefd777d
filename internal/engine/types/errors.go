package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced download no longer exists
	ErrNotFound = errors.New("Download item not found (may have been cleared).")

	// ErrPrecondition is returned when an action does not fit the current record state
	ErrPrecondition = errors.New("action not allowed in current state")

	// ErrUserGesture is returned when the engine refuses to open a file without a direct user action
	ErrUserGesture = errors.New("Opening file requires a direct user action (security restriction). Try 'Show in Folder'.")

	// ErrHelperUnavailable is returned when the clipboard helper cannot be created
	ErrHelperUnavailable = errors.New("Could not create helper for copying.")

	// ErrUnknownAction is returned for action names outside the known vocabulary
	ErrUnknownAction = errors.New("Unknown action")
)

// PreconditionError describes why an action was refused for the current record state
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// Precondition builds a PreconditionError with a formatted reason
func Precondition(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}
