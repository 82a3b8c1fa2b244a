package message

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable vocabulary of bus failure categories. Kinds
// appear in decision logs, audit entries, and processing outcomes, so the
// strings are part of the wire contract.
type ErrorKind string

const (
	KindConstitutionalMismatch ErrorKind = "CONSTITUTIONAL_MISMATCH"
	KindRoleViolation          ErrorKind = "ROLE_VIOLATION"
	KindExpired                ErrorKind = "EXPIRED"
	KindNoRoute                ErrorKind = "NO_ROUTE"
	KindQueueFull              ErrorKind = "QUEUE_FULL"
	KindHandlerFailure         ErrorKind = "HANDLER_FAILURE"
	KindStrategyUnavailable    ErrorKind = "STRATEGY_UNAVAILABLE"
	KindCircuitOpen            ErrorKind = "CIRCUIT_OPEN"
	KindDeliberationTimeout    ErrorKind = "DELIBERATION_TIMEOUT"
	KindDeliberationFull       ErrorKind = "DELIBERATION_FULL"
	KindConfigInvalid          ErrorKind = "CONFIG_INVALID"
)

// Kinder is implemented by errors that map to a wire-visible kind.
type Kinder interface {
	ErrorKind() ErrorKind
}

// KindOf extracts the error kind from an error chain. Returns the empty
// kind when no error in the chain carries one.
func KindOf(err error) ErrorKind {
	var k Kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}

// Common model errors checked with errors.Is().
var (
	// ErrUnknownType is returned for message types outside the defined set.
	ErrUnknownType = errors.New("unknown message type")

	// ErrInvalidPriority is returned for priorities outside LOW..CRITICAL.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidTransition is returned for lifecycle transitions outside
	// the status graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidField is returned when a required message field is missing
	// or malformed.
	ErrInvalidField = errors.New("invalid message field")
)

// UnknownTypeError reports a message type outside the defined set.
type UnknownTypeError struct {
	// Value is the offending type string.
	Value string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Value)
}

// Is implements error matching for errors.Is().
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// InvalidPriorityError reports a priority outside the defined range.
type InvalidPriorityError struct {
	// Value is the offending priority representation.
	Value string
}

func (e *InvalidPriorityError) Error() string {
	return fmt.Sprintf("invalid priority %q (valid: LOW, MEDIUM, HIGH, CRITICAL or 0-3)", e.Value)
}

// Is implements error matching for errors.Is().
func (e *InvalidPriorityError) Is(target error) bool {
	return target == ErrInvalidPriority
}

// TransitionError reports a lifecycle transition outside the status graph.
type TransitionError struct {
	From      Status
	To        Status
	MessageID string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("message %s: cannot transition from %s to %s", e.MessageID, e.From, e.To)
}

// Is implements error matching for errors.Is().
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// FieldError reports a missing or malformed message field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("message field %s: %s", e.Field, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}
