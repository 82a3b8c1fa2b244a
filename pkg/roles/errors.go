package roles

import (
	"errors"
	"fmt"

	"concordlabs/concord/pkg/message"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrUnknownRole is returned for roles outside the fixed set.
	ErrUnknownRole = errors.New("unknown role")

	// ErrUnknownAction is returned for actions outside the fixed set.
	ErrUnknownAction = errors.New("unknown action")

	// ErrViolation is the sentinel matched by any role violation.
	ErrViolation = errors.New("role violation")

	// ErrAlreadyAssigned is returned when an agent already holds a role.
	ErrAlreadyAssigned = errors.New("agent already holds a role")
)

// ViolationError reports an action an agent's role does not permit.
type ViolationError struct {
	// AgentID is the acting agent.
	AgentID string

	// Role is the agent's role, empty when the agent holds none.
	Role Role

	// Action is the attempted action.
	Action Action

	// Reason explains the violation.
	Reason string
}

func (e *ViolationError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("agent %s without a role attempted %s: %s", e.AgentID, e.Action, e.Reason)
	}
	return fmt.Sprintf("agent %s (%s) attempted %s: %s", e.AgentID, e.Role, e.Action, e.Reason)
}

// Is matches ErrViolation.
func (e *ViolationError) Is(target error) bool {
	return target == ErrViolation
}

// ErrorKind classifies violations for the wire error vocabulary.
func (e *ViolationError) ErrorKind() message.ErrorKind {
	return message.KindRoleViolation
}
