package policy

import (
	"context"

	"concordlabs/concord/pkg/message"
)

// FallbackAdapter is the last backend in the cascade. It never fails:
// verdicts come from a static rule and scores from the heuristic
// scorer. Every decision is flagged degraded so downstream consumers
// can surface the reduced assurance.
type FallbackAdapter struct {
	scorer *Scorer
}

// NewFallbackAdapter builds the static fallback backend.
func NewFallbackAdapter(scorer *Scorer) *FallbackAdapter {
	return &FallbackAdapter{scorer: scorer}
}

// Evaluate allows the action. Constitutional and role checks run
// before policy evaluation, so the static verdict only relaxes the
// declarative layer, not the governance gates.
func (a *FallbackAdapter) Evaluate(_ context.Context, _ *Input) (*Decision, error) {
	d := &Decision{
		Allowed: true,
		Reasons: []string{"static fallback policy"},
	}
	d.meta("mode", string(ModeFallback))
	d.meta("policy_version", a.Version())
	d.meta("degraded", true)
	return d, nil
}

// Score runs the heuristic scorer.
func (a *FallbackAdapter) Score(_ context.Context, m *message.Message) (float64, error) {
	return a.scorer.Score(m), nil
}

// Mode identifies the backend.
func (a *FallbackAdapter) Mode() Mode {
	return ModeFallback
}

// Version is a fixed marker; the fallback carries no policy document.
func (a *FallbackAdapter) Version() string {
	return "static"
}

// Available always reports true.
func (a *FallbackAdapter) Available() bool {
	return true
}
