package recovery

import (
	"errors"
	"fmt"
)

// Package sentinels.
var (
	// ErrUnknownService reports a control operation for a service with
	// no task.
	ErrUnknownService = errors.New("no recovery task for service")

	// ErrHashMismatch aborts recovery when the configured
	// constitutional hash no longer matches.
	ErrHashMismatch = errors.New("constitutional hash mismatch")
)

// ProbeError wraps a failed recovery probe.
type ProbeError struct {
	// Service is the probed service.
	Service string

	// Attempt is the 1-indexed attempt number.
	Attempt int

	// Err is the probe failure.
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("recovery probe for %s (attempt %d): %v", e.Service, e.Attempt, e.Err)
}

// Unwrap returns the probe failure.
func (e *ProbeError) Unwrap() error {
	return e.Err
}
