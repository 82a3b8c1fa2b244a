package bus

import (
	"errors"
	"fmt"
	"time"

	"concordlabs/concord/pkg/message"
)

// Package sentinels.
var (
	// ErrNotStarted is returned by Send before Start.
	ErrNotStarted = errors.New("bus not started")

	// ErrStopped is returned by Send after Stop.
	ErrStopped = errors.New("bus stopped")

	// ErrQueueFull is the sentinel behind QueueFullError.
	ErrQueueFull = errors.New("queue full")

	// ErrSenderUnknown rejects sends from unregistered agents.
	ErrSenderUnknown = errors.New("sender not registered")
)

// QueueFullError reports an admission that stayed blocked past its
// timeout.
type QueueFullError struct {
	// Capacity is the queue bound.
	Capacity int

	// Waited is how long admission blocked before giving up.
	Waited time.Duration
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue full (capacity %d) after waiting %s", e.Capacity, e.Waited)
}

// Is matches ErrQueueFull.
func (e *QueueFullError) Is(target error) bool {
	return target == ErrQueueFull
}

// ErrorKind returns the wire kind for rejected sends.
func (e *QueueFullError) ErrorKind() message.ErrorKind {
	return message.KindQueueFull
}

// TenantMismatchError rejects a send whose declared tenant differs
// from the sender's registered tenant.
type TenantMismatchError struct {
	// AgentID is the sender.
	AgentID string

	// Declared is the tenant named on the message.
	Declared string

	// Registered is the sender's registered tenant.
	Registered string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("agent %s is registered in tenant %q, not %q",
		e.AgentID, e.Registered, e.Declared)
}
