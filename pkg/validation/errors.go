package validation

import "errors"

// Sentinel errors checked with errors.Is().
var (
	// ErrBadHashFormat is returned when a configured hash is not 16
	// lowercase hex characters.
	ErrBadHashFormat = errors.New("constitutional hash must be 16 lowercase hex characters")
)

// Warning strings attached to validation results. They are part of
// the wire contract; downstream compliance tooling matches on them.
const (
	// WarnContentFlagged marks content that matched an injection
	// pattern. Non-fatal.
	WarnContentFlagged = "CONTENT_FLAGGED"
)
