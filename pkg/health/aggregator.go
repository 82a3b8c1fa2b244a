package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// Status is the aggregate system condition.
type Status string

// Statuses, ordered from best to worst. UNKNOWN means no breaker has
// reported yet.
const (
	StatusHealthy  Status = "HEALTHY"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
	StatusUnknown  Status = "UNKNOWN"
)

// Report is one aggregate health evaluation.
type Report struct {
	// Status is the aggregate condition.
	Status Status `json:"status"`

	// Score is the averaged breaker availability in [0,1].
	Score float64 `json:"score"`

	// Services maps each known service to its breaker state.
	Services map[string]string `json:"services"`

	// WindowAverage is the mean score over the sliding window.
	WindowAverage float64 `json:"window_average"`

	// CheckedAt is when the evaluation ran.
	CheckedAt time.Time `json:"checked_at"`
}

type sample struct {
	score float64
	at    time.Time
}

// Aggregator folds breaker state into the system health score. Safe
// for concurrent use.
type Aggregator struct {
	cfg      config.HealthConfig
	breakers *breaker.Manager
	rm       *metrics.ResilienceMetrics

	mu         sync.Mutex
	history    []sample
	lastStatus Status
	listeners  []func(Report)

	stopped atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	logger *slog.Logger
}

// NewAggregator builds an aggregator subscribed to every breaker the
// manager owns, including breakers created later.
func NewAggregator(cfg config.HealthConfig, breakers *breaker.Manager, rm *metrics.ResilienceMetrics) *Aggregator {
	if cfg.DegradedThreshold <= 0 {
		cfg.DegradedThreshold = 0.9
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = 0.5
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}

	a := &Aggregator{
		cfg:        cfg,
		breakers:   breakers,
		rm:         rm,
		lastStatus: StatusUnknown,
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "health.aggregator"),
	}
	breakers.OnStateChange(func(breaker.StateChange) {
		if !a.stopped.Load() {
			a.Check(context.Background())
		}
	})
	return a
}

// OnChange subscribes to status transitions. Listeners run on the
// evaluating goroutine and must return quickly.
func (a *Aggregator) OnChange(fn func(Report)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Start launches the periodic snapshot loop.
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Check(ctx)
			}
		}
	}()
}

// Stop ends the snapshot loop.
func (a *Aggregator) Stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}
	close(a.done)
	a.wg.Wait()
}

// Check evaluates current breaker state, records the sample, and
// notifies listeners on a status change.
func (a *Aggregator) Check(_ context.Context) Report {
	states := a.breakers.Snapshot()
	now := time.Now().UTC()

	score := 1.0
	status := StatusUnknown
	services := make(map[string]string, len(states))
	if len(states) > 0 {
		total := 0.0
		for service, state := range states {
			services[service] = state.String()
			total += stateScore(state)
		}
		score = total / float64(len(states))
		switch {
		case score >= a.cfg.DegradedThreshold:
			status = StatusHealthy
		case score >= a.cfg.CriticalThreshold:
			status = StatusDegraded
		default:
			status = StatusCritical
		}
	}

	a.mu.Lock()
	a.history = append(a.history, sample{score: score, at: now})
	cutoff := now.Add(-a.cfg.Window)
	for len(a.history) > 0 && a.history[0].at.Before(cutoff) {
		a.history = a.history[1:]
	}
	avg := 0.0
	for _, s := range a.history {
		avg += s.score
	}
	avg /= float64(len(a.history))

	changed := status != a.lastStatus
	a.lastStatus = status
	listeners := append(([]func(Report))(nil), a.listeners...)
	a.mu.Unlock()

	report := Report{
		Status:        status,
		Score:         score,
		Services:      services,
		WindowAverage: avg,
		CheckedAt:     now,
	}
	a.rm.SetHealthScore(score)

	if changed {
		a.logger.Info("health status changed",
			"status", string(status), "score", score)
		for _, fn := range listeners {
			fn(report)
		}
	}
	return report
}

// Status returns the most recent aggregate status.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStatus
}

func stateScore(s breaker.State) float64 {
	switch s {
	case breaker.StateClosed:
		return 1.0
	case breaker.StateHalfOpen:
		return 0.5
	default:
		return 0.0
	}
}
