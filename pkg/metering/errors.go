package metering

import "fmt"

// LedgerError reports a ledger persistence failure.
type LedgerError struct {
	// Op is the failed operation.
	Op string

	// Err is the underlying failure.
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("metering ledger: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *LedgerError) Unwrap() error {
	return e.Err
}
