package validation

import (
	"context"

	"concordlabs/concord/pkg/message"
)

// Validator decides whether a message may enter processing.
//
// A nil-error return with an invalid result is the normal rejection
// path; an error return means the validator itself failed and the
// caller should treat the message as unvalidated rather than rejected.
// Validators must be safe for concurrent use.
type Validator interface {
	// Validate inspects the message and returns findings.
	Validate(ctx context.Context, m *message.Message) (*message.ValidationResult, error)

	// Name identifies the validator in metrics and logs.
	Name() string
}

// Chain runs validators in order, merging their results. With failFast
// set, the first invalid result stops the chain; later validators are
// not consulted.
type Chain struct {
	validators []Validator
	failFast   bool
}

// NewChain builds a validator chain. The zero-validator chain passes
// everything.
func NewChain(failFast bool, validators ...Validator) *Chain {
	return &Chain{validators: validators, failFast: failFast}
}

// Validate runs the chain.
func (c *Chain) Validate(ctx context.Context, m *message.Message) (*message.ValidationResult, error) {
	result := message.OK()
	for _, v := range c.validators {
		r, err := v.Validate(ctx, m)
		if err != nil {
			return nil, err
		}
		result.Merge(r)
		if c.failFast && !result.Valid {
			break
		}
	}
	return result, nil
}

// Name identifies the chain in metrics and logs.
func (c *Chain) Name() string {
	return "chain"
}
