package breaker

import (
	"errors"
	"fmt"
	"time"

	"concordlabs/concord/pkg/message"
)

// ErrOpen is the sentinel matched by errors.Is for any breaker
// rejection.
var ErrOpen = errors.New("circuit breaker open")

// OpenError reports a call rejected by a breaker that is OPEN, or
// HALF_OPEN with its probe budget exhausted.
type OpenError struct {
	// Service is the guarded service name.
	Service string

	// RetryAfter is the time until the next probe window. Zero when the
	// breaker is already probing.
	RetryAfter time.Duration

	// Probing is true when the rejection came from an exhausted
	// HALF_OPEN probe budget rather than a hard OPEN state.
	Probing bool
}

// Error returns the rejection description.
func (e *OpenError) Error() string {
	if e.Probing {
		return fmt.Sprintf("circuit breaker for %s is probing, call rejected", e.Service)
	}
	return fmt.Sprintf("circuit breaker for %s is open, retry in %s", e.Service, e.RetryAfter)
}

// Is matches ErrOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// ErrorKind classifies breaker rejections for the wire error
// vocabulary.
func (e *OpenError) ErrorKind() message.ErrorKind {
	return message.KindCircuitOpen
}
