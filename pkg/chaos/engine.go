package chaos

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// scenarioSet is an immutable snapshot of active scenarios. Hot-path
// checks read it through an atomic pointer; every mutation installs a
// fresh copy.
type scenarioSet struct {
	byName map[string]*Scenario
}

var emptySet = &scenarioSet{byName: map[string]*Scenario{}}

// Engine activates, tracks, and cleans up chaos scenarios.
type Engine struct {
	enabled     bool
	hash        string
	maxDuration time.Duration

	active atomic.Pointer[scenarioSet]

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	breakers *breaker.Manager
	rm       *metrics.ResilienceMetrics
	logger   *slog.Logger

	obsMu    sync.RWMutex
	observer func(event string, sc Scenario)

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewEngine creates a chaos engine. breakers may be nil when no
// CIRCUIT_OPEN scenarios will run; rm may be nil.
func NewEngine(cfg config.ChaosConfig, hash string, breakers *breaker.Manager, rm *metrics.ResilienceMetrics) *Engine {
	maxDur := cfg.MaxDuration
	if maxDur <= 0 || maxDur > MaxDuration {
		maxDur = MaxDuration
	}

	e := &Engine{
		enabled:     cfg.Enabled,
		hash:        hash,
		maxDuration: maxDur,
		timers:      make(map[string]*time.Timer),
		breakers:    breakers,
		rm:          rm,
		logger:      slog.Default().With("component", "chaos.engine"),
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.active.Store(emptySet)
	return e
}

var (
	defaultMu     sync.RWMutex
	defaultEngine = NewEngine(config.ChaosConfig{}, "", nil, nil)
)

// Default returns the process-wide engine handle. It starts disabled;
// the bus replaces it at construction with a configured engine via
// SetDefault.
func Default() *Engine {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEngine
}

// SetDefault installs the configured engine as the process-wide
// handle. Called once at bus construction.
func SetDefault(e *Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}

// Scenario lifecycle events passed to the observer.
const (
	EventActivated = "activated"
	EventStopped   = "stopped"
)

// SetObserver installs a lifecycle callback, invoked fire-and-forget on
// every activation and deactivation. One observer at a time.
func (e *Engine) SetObserver(fn func(event string, sc Scenario)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observer = fn
}

// notify dispatches a lifecycle event without holding the mutation lock.
func (e *Engine) notify(event string, sc Scenario) {
	e.obsMu.RLock()
	fn := e.observer
	e.obsMu.RUnlock()
	if fn != nil {
		go fn(event, sc)
	}
}

// Activate validates and activates a scenario. The scenario
// self-deactivates when its duration elapses.
func (e *Engine) Activate(sc *Scenario) error {
	if !e.enabled {
		return ErrDisabled
	}
	if err := sc.validate(e.hash); err != nil {
		return err
	}
	if sc.Duration > e.maxDuration {
		return &ScenarioError{Scenario: sc.Name, Field: "duration", Reason: "exceeds the configured ceiling"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEmergencyStopped
	}
	current := e.active.Load()
	if _, exists := current.byName[sc.Name]; exists {
		return ErrScenarioExists
	}

	activated := *sc
	activated.ActivatedAt = time.Now().UTC()
	e.install(current, &activated)

	if activated.Kind == KindCircuitOpen && e.breakers != nil {
		e.breakers.Get(activated.Target).ForceOpen("chaos scenario " + activated.Name)
	}

	name := activated.Name
	e.timers[name] = time.AfterFunc(activated.Duration, func() {
		e.Deactivate(name)
	})

	e.logger.Info("chaos scenario activated",
		"scenario", activated.Name,
		"kind", activated.Kind,
		"target", activated.Target,
		"duration", activated.Duration,
	)
	e.rm.SetChaosActive(len(e.active.Load().byName))
	e.notify(EventActivated, activated)
	return nil
}

// Deactivate removes a scenario, cancels its timer, and releases any
// forced breaker. Reports whether the scenario was active.
func (e *Engine) Deactivate(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deactivateLocked(name)
}

func (e *Engine) deactivateLocked(name string) bool {
	current := e.active.Load()
	sc, exists := current.byName[name]
	if !exists {
		return false
	}

	if t, ok := e.timers[name]; ok {
		t.Stop()
		delete(e.timers, name)
	}
	e.remove(current, name)

	if sc.Kind == KindCircuitOpen && e.breakers != nil {
		e.breakers.Get(sc.Target).ForceClose("chaos scenario " + name + " ended")
	}

	e.logger.Info("chaos scenario deactivated", "scenario", name)
	e.rm.SetChaosActive(len(e.active.Load().byName))
	e.notify(EventStopped, *sc)
	return true
}

// EmergencyStop deactivates every scenario, cancels all timers, and
// blocks new activations until Reset. Idempotent.
func (e *Engine) EmergencyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0)
	for name := range e.active.Load().byName {
		names = append(names, name)
	}
	for _, name := range names {
		e.deactivateLocked(name)
	}
	if !e.stopped {
		e.stopped = true
		e.logger.Warn("chaos emergency stop engaged", "deactivated", len(names))
	}
}

// Reset lifts an emergency stop, permitting activations again.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		e.stopped = false
		e.logger.Info("chaos emergency stop lifted")
	}
}

// Stopped reports whether the emergency stop is engaged.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Active returns a snapshot of the active scenarios.
func (e *Engine) Active() []Scenario {
	set := e.active.Load()
	out := make([]Scenario, 0, len(set.byName))
	for _, sc := range set.byName {
		out = append(out, *sc)
	}
	return out
}

// LatencyFor returns the delay to inject before a call to the service,
// zero when no latency scenario covers it. Lock-free.
func (e *Engine) LatencyFor(service string) time.Duration {
	set := e.active.Load()
	var max time.Duration
	for _, sc := range set.byName {
		if sc.Kind == KindLatency && sc.applies(service) && sc.Latency > max {
			max = sc.Latency
		}
	}
	if max > 0 {
		e.rm.RecordChaosInjection(string(KindLatency))
	}
	return max
}

// ShouldError rolls the error rate of any ERROR scenario covering the
// service and returns the injected error on a hit. Lock-free apart
// from the rate roll.
func (e *Engine) ShouldError(service string) error {
	set := e.active.Load()
	for _, sc := range set.byName {
		if sc.Kind != KindError || !sc.applies(service) {
			continue
		}
		e.randMu.Lock()
		roll := e.rand.Float64()
		e.randMu.Unlock()
		if roll < sc.ErrorRate {
			e.rm.RecordChaosInjection(string(KindError))
			kind := sc.ErrorKind
			if kind == "" {
				kind = "generic"
			}
			return &InjectedError{Scenario: sc.Name, Service: service, Kind: kind}
		}
	}
	return nil
}

// ResourceLevel returns the highest exhaustion level any RESOURCE
// scenario imposes on the service, zero when none apply. Lock-free.
func (e *Engine) ResourceLevel(service string) float64 {
	set := e.active.Load()
	var max float64
	for _, sc := range set.byName {
		if sc.Kind == KindResource && sc.applies(service) && sc.ResourceLevel > max {
			max = sc.ResourceLevel
		}
	}
	return max
}

// install publishes a new snapshot with the scenario added. Callers
// hold the mutation lock.
func (e *Engine) install(current *scenarioSet, sc *Scenario) {
	next := &scenarioSet{byName: make(map[string]*Scenario, len(current.byName)+1)}
	for k, v := range current.byName {
		next.byName[k] = v
	}
	next.byName[sc.Name] = sc
	e.active.Store(next)
}

// remove publishes a new snapshot with the scenario removed. Callers
// hold the mutation lock.
func (e *Engine) remove(current *scenarioSet, name string) {
	next := &scenarioSet{byName: make(map[string]*Scenario, len(current.byName))}
	for k, v := range current.byName {
		if k != name {
			next.byName[k] = v
		}
	}
	e.active.Store(next)
}
