package security

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrSecretRequired is returned when identity verification is
	// enabled without an HMAC secret.
	ErrSecretRequired = errors.New("identity verification enabled without a jwt secret")

	// ErrIdentityRequired is returned for registrations missing a
	// token while verification is enabled.
	ErrIdentityRequired = errors.New("security context with token required")

	// ErrTokenInvalid is the sentinel matched by any token failure.
	ErrTokenInvalid = errors.New("invalid registration token")
)

// TokenError reports a registration token that failed verification.
// The token itself is never included.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid registration token: %s", e.Reason)
}

// Is matches ErrTokenInvalid.
func (e *TokenError) Is(target error) bool {
	return target == ErrTokenInvalid
}
