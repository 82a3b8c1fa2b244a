package processing

import (
	"errors"
	"fmt"

	"concordlabs/concord/pkg/message"
)

// ErrHandlerFailed is the sentinel for handler dispatch failures.
var ErrHandlerFailed = errors.New("handler failed")

// ErrMissingCollaborator reports a processor built without a required
// collaborator.
var ErrMissingCollaborator = errors.New("missing collaborator")

// HandlerError wraps a handler error or panic for one target agent.
// Earlier handlers' side effects stand; the message still fails.
type HandlerError struct {
	// AgentID is the agent whose handler failed.
	AgentID string

	// Index is the handler's registration position.
	Index int

	// Err is the underlying failure.
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %d for agent %s: %v", e.Index, e.AgentID, e.Err)
}

// Is matches ErrHandlerFailed.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailed
}

// Unwrap returns the underlying failure.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the wire kind for handler failures.
func (e *HandlerError) ErrorKind() message.ErrorKind {
	return message.KindHandlerFailure
}
