package audit

import (
	"errors"
	"fmt"
)

// ErrTrailStopped is returned when recording after Stop.
var ErrTrailStopped = errors.New("audit trail stopped")

// StoreError reports a storage backend failure.
type StoreError struct {
	// Backend names the store ("memory", "sqlite").
	Backend string

	// Op is the failed operation.
	Op string

	// Err is the underlying failure.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("audit store %s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *StoreError) Unwrap() error {
	return e.Err
}
