package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/chaos"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// Gateway runs the backend cascade. Each backend call rides a named
// circuit breaker ("policy.remote", "policy.embedded") and the chaos
// engine's injection points; a failed or rejected backend hands off to
// the next one. The fallback backend is last and cannot fail, so the
// cascade only errors when chaos deliberately reaches it.
//
// A verdict served by any backend other than the first configured one
// is flagged degraded. Impact scoring cascades only across real
// backends; see Score.
type Gateway struct {
	adapters []Adapter
	breakers *breaker.Manager
	chaos    *chaos.Engine
	gm       *metrics.GovernanceMetrics
	logger   *slog.Logger

	embedded *EmbeddedAdapter
}

// NewGateway builds the cascade for the configured mode. Mode "auto"
// registers every configured backend in preference order; a named mode
// pins that backend, keeping only the static fallback behind it.
// eng and gm may be nil.
func NewGateway(cfg config.PolicyConfig, weights config.ImpactWeights, actions map[message.MessageType]string, breakers *breaker.Manager, eng *chaos.Engine, gm *metrics.GovernanceMetrics) (*Gateway, error) {
	g := &Gateway{
		breakers: breakers,
		chaos:    eng,
		gm:       gm,
		logger:   slog.Default().With("component", "policy.gateway"),
	}
	scorer := NewScorer(weights, actions)

	wantRemote, wantEmbedded := false, false
	switch cfg.Mode {
	case "", "auto":
		wantRemote = cfg.RemoteURL != ""
		wantEmbedded = cfg.RulesetPath != ""
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("policy mode %q requires remote_url", cfg.Mode)
		}
		wantRemote = true
	case "embedded":
		if cfg.RulesetPath == "" {
			return nil, fmt.Errorf("policy mode %q requires ruleset_path", cfg.Mode)
		}
		wantEmbedded = true
	case "fallback":
	default:
		return nil, fmt.Errorf("unknown policy mode %q", cfg.Mode)
	}

	if wantRemote {
		g.adapters = append(g.adapters, NewRemoteAdapter(cfg.RemoteURL, cfg.ExternalTimeout))
	}
	if wantEmbedded {
		embedded, err := NewEmbeddedAdapter(cfg.RulesetPath, scorer)
		if err != nil {
			return nil, err
		}
		g.embedded = embedded
		g.adapters = append(g.adapters, embedded)
	}
	g.adapters = append(g.adapters, NewFallbackAdapter(scorer))

	return g, nil
}

// Evaluate walks the cascade until a backend serves a verdict.
func (g *Gateway) Evaluate(ctx context.Context, in *Input) (*Decision, error) {
	var lastErr error
	for i, a := range g.adapters {
		if !a.Available() {
			continue
		}

		start := time.Now()
		d, err := g.guard(ctx, a, func() (*Decision, error) {
			return a.Evaluate(ctx, in)
		})
		if err != nil {
			lastErr = err
			g.logger.Warn("policy backend failed, cascading",
				"backend", string(a.Mode()), "error", err)
			continue
		}

		if i > 0 {
			d.meta("degraded", true)
		}
		verdict := "deny"
		if d.Allowed {
			verdict = "allow"
		}
		g.gm.RecordPolicyEvaluation(string(a.Mode()), verdict, time.Since(start))
		return d, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, lastErr)
	}
	return nil, ErrNoBackend
}

// Score walks the configured scorer backends until one produces a
// score. Unlike Evaluate, a failed scorer does not hand off to the
// static heuristic: a heuristic guess served while the real scorer is
// down could route a message into deliberation on made-up numbers.
// The fallback scores only when it is the sole configured backend;
// otherwise an open breaker or backend failure surfaces as an error
// and the caller treats the score as unavailable.
func (g *Gateway) Score(ctx context.Context, m *message.Message) (float64, error) {
	var lastErr error
	for _, a := range g.adapters {
		if !a.Available() {
			continue
		}
		if a.Mode() == ModeFallback && lastErr != nil {
			break
		}
		score, err := g.guardScore(ctx, a, m)
		if err != nil {
			lastErr = err
			g.logger.Warn("impact scorer failed, cascading",
				"backend", string(a.Mode()), "error", err)
			continue
		}
		g.gm.RecordImpactScore(score)
		return score, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("impact scorer unavailable: %w", lastErr)
	}
	return 0, ErrNoBackend
}

// Mode reports the backend currently preferred by the cascade.
func (g *Gateway) Mode() Mode {
	for _, a := range g.adapters {
		if a.Available() {
			return a.Mode()
		}
	}
	return ModeFallback
}

// Version reports the preferred backend's policy version.
func (g *Gateway) Version() string {
	for _, a := range g.adapters {
		if a.Available() {
			return a.Version()
		}
	}
	return "static"
}

// Available always reports true; the fallback backend guarantees it.
func (g *Gateway) Available() bool {
	return true
}

// Close stops the embedded ruleset watcher when one is running.
func (g *Gateway) Close() error {
	if g.embedded != nil {
		return g.embedded.Close()
	}
	return nil
}

// guard wraps one backend evaluation with chaos injection and, for
// fallible backends, the backend's circuit breaker.
func (g *Gateway) guard(ctx context.Context, a Adapter, call func() (*Decision, error)) (*Decision, error) {
	service := "policy." + string(a.Mode())

	if err := g.injectChaos(ctx, service); err != nil {
		return nil, err
	}

	if a.Mode() == ModeFallback {
		return call()
	}

	done, err := g.breakers.Get(service).Allow()
	if err != nil {
		return nil, err
	}
	d, err := call()
	done(err == nil)
	return d, err
}

func (g *Gateway) guardScore(ctx context.Context, a Adapter, m *message.Message) (float64, error) {
	service := "policy." + string(a.Mode())

	if err := g.injectChaos(ctx, service); err != nil {
		return 0, err
	}

	if a.Mode() == ModeFallback {
		return a.Score(ctx, m)
	}

	done, err := g.breakers.Get(service).Allow()
	if err != nil {
		return 0, err
	}
	score, err := a.Score(ctx, m)
	done(err == nil)
	return score, err
}

// injectChaos applies active latency and error scenarios targeting the
// service. Latency sleeps honor context cancellation.
func (g *Gateway) injectChaos(ctx context.Context, service string) error {
	if g.chaos == nil {
		return nil
	}
	if delay := g.chaos.LatencyFor(service); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return g.chaos.ShouldError(service)
}
