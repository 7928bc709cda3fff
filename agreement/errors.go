package agreement

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no agreement row exists for the id (or it
	// is not owned by the acting creator).
	ErrNotFound = errors.New("agreement: not found")

	// ErrEmailUndeliverable reports that the review email could not be
	// dispatched during Send. The transition itself has already been
	// committed; the agreement is pending with its unsigned PDF stored.
	ErrEmailUndeliverable = errors.New("agreement: review email undeliverable")
)

// ValidationError reports malformed or missing caller input. It is always
// raised before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agreement: invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a precondition failure on the current status,
// including the losing side of two concurrent transitions.
type InvalidStateError struct {
	Current   Status
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("agreement: cannot %s from status %q", e.Operation, e.Current)
}

// RenderError reports document generation failure. Rendering happens before
// persistence, so no state has changed when it is returned.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("agreement: render document: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PersistenceError reports a storage write failure after a successful
// render. The caller must treat the agreement as unchanged and may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("agreement: persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
