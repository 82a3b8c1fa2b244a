package strategy

import (
	"context"
	"log/slog"

	"concordlabs/concord/pkg/message"
)

// Baseline is the in-process delivery strategy: it moves the message
// to PROCESSING and runs the target's handlers through the dispatcher.
type Baseline struct {
	dispatch Dispatcher
	logger   *slog.Logger
}

// NewBaseline creates the baseline strategy around a dispatcher.
func NewBaseline(dispatch Dispatcher) *Baseline {
	return &Baseline{
		dispatch: dispatch,
		logger:   slog.Default().With("component", "strategy.baseline"),
	}
}

// Process delivers the message in-process. Dispatcher errors pass
// through unwrapped so their wire kind survives.
func (b *Baseline) Process(ctx context.Context, m *message.Message) (*Result, error) {
	if m.Status == message.StatusPending {
		if err := m.TransitionTo(message.StatusProcessing); err != nil {
			return nil, err
		}
	}

	if err := b.dispatch.Dispatch(ctx, m); err != nil {
		return nil, err
	}

	return &Result{
		Status: message.StatusDelivered,
		Detail: "delivered in-process",
		Metadata: map[string]any{
			"strategy": b.Name(),
		},
	}, nil
}

// Available always reports true; in-process delivery has no external
// dependency.
func (b *Baseline) Available() bool {
	return true
}

// Name identifies the strategy.
func (b *Baseline) Name() string {
	return "baseline"
}
