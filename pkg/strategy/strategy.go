package strategy

import (
	"context"

	"concordlabs/concord/pkg/message"
)

// Dispatcher delivers a message to its target's registered handlers.
// The processing layer supplies the implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, m *message.Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, m *message.Message) error

// Dispatch calls the function.
func (f DispatcherFunc) Dispatch(ctx context.Context, m *message.Message) error {
	return f(ctx, m)
}

// Result is a strategy's verdict on a message. A Result with a FAILED
// status and a nil error is a logical denial, not a strategy failure.
type Result struct {
	// Status is the terminal status the strategy reached.
	Status message.Status `json:"status"`

	// Detail describes the outcome.
	Detail string `json:"detail,omitempty"`

	// Metadata carries strategy-specific outcome attributes.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Strategy processes a message to a terminal status. Implementations
// must be re-entrant: either stateless or internally synchronized.
type Strategy interface {
	// Process runs the message through the strategy. An error reports
	// a strategy failure and triggers composite fallback; a logical
	// denial is a Result with a FAILED status and a nil error.
	Process(ctx context.Context, m *message.Message) (*Result, error)

	// Available reports whether the strategy can currently serve.
	Available() bool

	// Name identifies the strategy in logs and results.
	Name() string
}
