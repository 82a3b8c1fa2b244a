package validation

import (
	"context"
	"crypto/subtle"
	"fmt"

	"concordlabs/concord/pkg/message"
)

// ConstitutionalValidator checks that a message carries the active
// constitutional hash. The comparison is constant time so the check
// leaks nothing about how much of a forged hash matched.
type ConstitutionalValidator struct {
	want []byte
}

// NewConstitutionalValidator creates a validator pinned to the given
// hash.
func NewConstitutionalValidator(hash string) (*ConstitutionalValidator, error) {
	if !message.ValidHashFormat(hash) {
		return nil, fmt.Errorf("constitutional hash %s: %w", message.SanitizeHash(hash), ErrBadHashFormat)
	}
	return &ConstitutionalValidator{want: []byte(hash)}, nil
}

// Validate compares the message hash against the pinned one.
func (v *ConstitutionalValidator) Validate(_ context.Context, m *message.Message) (*message.ValidationResult, error) {
	if m.ConstitutionalHash == "" {
		r := message.Invalid("constitutional hash required")
		r.SetMeta("error_kind", string(message.KindConstitutionalMismatch))
		return r, nil
	}

	got := []byte(m.ConstitutionalHash)
	// ConstantTimeCompare returns 0 immediately on length mismatch;
	// padding keeps the comparison length-independent too.
	if len(got) != len(v.want) {
		padded := make([]byte, len(v.want))
		copy(padded, got)
		subtle.ConstantTimeCompare(padded, v.want)
		return v.mismatch(m), nil
	}
	if subtle.ConstantTimeCompare(got, v.want) != 1 {
		return v.mismatch(m), nil
	}

	r := message.OK()
	r.SetMeta("constitutional_validated", true)
	return r, nil
}

func (v *ConstitutionalValidator) mismatch(m *message.Message) *message.ValidationResult {
	r := message.Invalid(fmt.Sprintf(
		"constitutional hash mismatch: got %s, want %s",
		message.SanitizeHash(m.ConstitutionalHash),
		message.SanitizeHash(string(v.want)),
	))
	r.SetMeta("error_kind", string(message.KindConstitutionalMismatch))
	return r
}

// Name identifies the validator in metrics and logs.
func (v *ConstitutionalValidator) Name() string {
	return "constitutional"
}
