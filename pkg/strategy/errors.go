package strategy

import (
	"errors"
	"fmt"
	"strings"

	"concordlabs/concord/pkg/message"
)

// ErrExhausted is the sentinel matched when every strategy in a
// composite failed or was unavailable.
var ErrExhausted = errors.New("all strategies exhausted")

// ExhaustedError reports a composite with no serving strategy left.
type ExhaustedError struct {
	// Tried lists the strategies that were attempted, in order.
	Tried []string

	// LastErr is the final attempt's error, nil when every strategy
	// was unavailable.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	if len(e.Tried) == 0 {
		return "no strategy available"
	}
	msg := fmt.Sprintf("all strategies exhausted (tried %s)", strings.Join(e.Tried, ", "))
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

// Is matches ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Unwrap exposes the final attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// ErrorKind maps to the wire vocabulary.
func (e *ExhaustedError) ErrorKind() message.ErrorKind {
	return message.KindStrategyUnavailable
}
