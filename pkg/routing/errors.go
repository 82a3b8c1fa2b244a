package routing

import (
	"errors"
	"fmt"

	"concordlabs/concord/pkg/message"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrNoRoute is the sentinel matched by any unresolvable target.
	ErrNoRoute = errors.New("no route to agent")

	// ErrInboxFull is the sentinel matched when a target inbox rejects
	// a delivery.
	ErrInboxFull = errors.New("agent inbox full")

	// ErrInboxClosed is returned when receiving for an agent without an
	// open inbox.
	ErrInboxClosed = errors.New("agent inbox not open")

	// ErrReceiveTimeout is returned when no message arrives within the
	// receive window.
	ErrReceiveTimeout = errors.New("receive timed out")
)

// RouteNotFoundError reports a message whose target resolved to no
// registered agent.
type RouteNotFoundError struct {
	// AgentID is the unresolvable target.
	AgentID string

	// TenantID scopes the lookup.
	TenantID string
}

func (e *RouteNotFoundError) Error() string {
	if e.TenantID != "" {
		return fmt.Sprintf("no route to agent %s in tenant %s", e.AgentID, e.TenantID)
	}
	return fmt.Sprintf("no route to agent %s", e.AgentID)
}

// Is matches ErrNoRoute.
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrNoRoute
}

// ErrorKind maps to the wire vocabulary.
func (e *RouteNotFoundError) ErrorKind() message.ErrorKind {
	return message.KindNoRoute
}

// InboxFullError reports a delivery rejected by a full inbox.
type InboxFullError struct {
	// AgentID is the congested target.
	AgentID string

	// Capacity is the inbox bound.
	Capacity int
}

func (e *InboxFullError) Error() string {
	return fmt.Sprintf("inbox of agent %s full (capacity %d)", e.AgentID, e.Capacity)
}

// Is matches ErrInboxFull.
func (e *InboxFullError) Is(target error) bool {
	return target == ErrInboxFull
}

// ErrorKind maps to the wire vocabulary.
func (e *InboxFullError) ErrorKind() message.ErrorKind {
	return message.KindQueueFull
}
