package api

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound is returned when a process is started with an
	// unknown definition key.
	ErrDefinitionNotFound = errors.New("process definition not found")

	// ErrDefinitionExists is returned when a definition key is deployed twice.
	ErrDefinitionExists = errors.New("process definition already deployed")

	// ErrInvalidDefinition is returned when a definition fails validation.
	ErrInvalidDefinition = errors.New("invalid process definition")

	// ErrNotFound is returned when an entity does not exist or is not visible
	// to the calling actor. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not valid for the
	// current status of a process instance or task.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthenticated is returned when a call carries no actor, or an actor
	// the configured identity directory does not know.
	ErrUnauthenticated = errors.New("unauthenticated actor")

	// ErrInvalidPageable is returned for negative offsets or non-positive
	// page sizes.
	ErrInvalidPageable = errors.New("invalid pageable")
)

// ListenerError reports a listener that failed while an event was delivered.
// The event itself has already been appended to the event log.
type ListenerError struct {
	Event RuntimeEvent
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener failed on %s (seq %d): %v", e.Event.Type, e.Event.Seq, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
