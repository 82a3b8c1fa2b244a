package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrAgentExists is returned when registering an id that is taken.
	ErrAgentExists = errors.New("agent already registered")

	// ErrAgentNotFound is returned for operations on unknown agents.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidRecord is returned for records missing required fields.
	ErrInvalidRecord = errors.New("invalid agent record")
)

// ExistsError reports a duplicate registration.
type ExistsError struct {
	AgentID string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("agent %s already registered", e.AgentID)
}

// Is matches ErrAgentExists.
func (e *ExistsError) Is(target error) bool {
	return target == ErrAgentExists
}

// NotFoundError reports an operation on an unknown agent.
type NotFoundError struct {
	AgentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.AgentID)
}

// Is matches ErrAgentNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrAgentNotFound
}
