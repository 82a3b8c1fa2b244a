package deliberation

import (
	"errors"
	"fmt"

	"concordlabs/concord/pkg/message"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrUnknownReview is returned for operations on a review id that
	// is not pending (never submitted, already resolved, or timed out).
	ErrUnknownReview = errors.New("unknown review")

	// ErrFull is the sentinel matched when the pending set is at
	// capacity.
	ErrFull = errors.New("deliberation at capacity")

	// ErrInvalidVote is returned for votes outside the vocabulary.
	ErrInvalidVote = errors.New("invalid vote")
)

// FullError reports a submission rejected by the capacity bound.
type FullError struct {
	// Capacity is the pending review bound.
	Capacity int
}

func (e *FullError) Error() string {
	return fmt.Sprintf("deliberation at capacity (%d pending reviews)", e.Capacity)
}

// Is matches ErrFull.
func (e *FullError) Is(target error) bool {
	return target == ErrFull
}

// ErrorKind maps to the wire vocabulary.
func (e *FullError) ErrorKind() message.ErrorKind {
	return message.KindDeliberationFull
}
