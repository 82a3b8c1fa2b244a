package strategy

import (
	"context"
	"log/slog"

	"concordlabs/concord/pkg/message"
)

// Composite tries its strategies in order until one serves. Strategies
// reporting unavailable are skipped without a call. An error carrying a
// wire kind is a definitive outcome and is returned as-is: only
// kind-less strategy failures hand off to the next strategy. A logical
// denial (FAILED Result, nil error) never triggers fallback.
type Composite struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewComposite creates an ordered fallback over the given strategies.
func NewComposite(strategies ...Strategy) *Composite {
	return &Composite{
		strategies: strategies,
		logger:     slog.Default().With("component", "strategy.composite"),
	}
}

// Process runs the fallback chain.
func (c *Composite) Process(ctx context.Context, m *message.Message) (*Result, error) {
	var tried []string
	var lastErr error

	for _, s := range c.strategies {
		if !s.Available() {
			c.logger.Debug("skipping unavailable strategy",
				"strategy", s.Name(), "message_id", m.ID)
			continue
		}
		tried = append(tried, s.Name())

		result, err := s.Process(ctx, m)
		if err == nil {
			return result, nil
		}
		if message.KindOf(err) != "" {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("strategy failed, falling back",
			"strategy", s.Name(), "message_id", m.ID, "error", err)
	}

	return nil, &ExhaustedError{Tried: tried, LastErr: lastErr}
}

// Available reports whether any strategy in the chain is available.
func (c *Composite) Available() bool {
	for _, s := range c.strategies {
		if s.Available() {
			return true
		}
	}
	return false
}

// Name identifies the strategy.
func (c *Composite) Name() string {
	return "composite"
}
