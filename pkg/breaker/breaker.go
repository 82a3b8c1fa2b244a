package breaker

import (
	"sync"
	"time"

	"concordlabs/concord/pkg/config"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed admits all calls.
	StateClosed State = iota
	// StateHalfOpen admits a bounded number of probe calls.
	StateHalfOpen
	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen
)

// String returns the state name used in logs, metrics, and events.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker is a circuit breaker guarding one downstream service.
//
// CLOSED counts failures over a sliding window; reaching the threshold
// opens the breaker. OPEN rejects calls until the cooldown elapses,
// then admits up to the probe budget of HALF_OPEN calls. A probe
// failure reopens with a fresh cooldown; when probe successes reach
// the budget the breaker closes.
//
// ForceOpen and ForceClose exist for chaos injection and operator
// recovery. A forced transition bumps the generation counter so results
// from calls admitted before it no longer count.
type Breaker struct {
	service string
	cfg     config.BreakerConfig

	mu         sync.Mutex
	state      State
	generation uint64
	failures   []time.Time
	openedAt   time.Time
	probes     int
	probeWins  int
	forced     bool

	onChange []func(StateChange)
	now      func() time.Time
}

// New creates a breaker for the named service.
func New(service string, cfg config.BreakerConfig) *Breaker {
	return &Breaker{
		service: service,
		cfg:     cfg,
		state:   StateClosed,
		now:     time.Now,
	}
}

// Service returns the guarded service name.
func (b *Breaker) Service() string {
	return b.service
}

// State returns the current state, applying the cooldown transition to
// HALF_OPEN if it is due.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(b.now())
	return b.state
}

// Allow reports whether a call may proceed. On success it returns a
// done function the caller must invoke with the call outcome. When the
// breaker rejects the call it returns an OpenError carrying the time
// until the next probe.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()

	now := b.now()
	b.refresh(now)

	switch b.state {
	case StateOpen:
		retry := b.openedAt.Add(b.cfg.Cooldown).Sub(now)
		b.mu.Unlock()
		return nil, &OpenError{Service: b.service, RetryAfter: retry}
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbeBudget {
			b.mu.Unlock()
			return nil, &OpenError{Service: b.service, RetryAfter: 0, Probing: true}
		}
		b.probes++
	}

	gen := b.generation
	b.mu.Unlock()

	return func(success bool) {
		if success {
			b.recordSuccess(gen)
		} else {
			b.recordFailure(gen)
		}
	}, nil
}

// Execute runs fn under the breaker, mapping its error to the outcome.
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err == nil)
	return err
}

// ForceOpen opens the breaker regardless of call history. Used by the
// chaos engine and by operators isolating a misbehaving dependency.
func (b *Breaker) ForceOpen(reason string) {
	b.mu.Lock()
	b.forced = true
	change, notify := b.transition(StateOpen, reason)
	b.mu.Unlock()
	if notify {
		b.emit(change)
	}
}

// ForceClose closes the breaker and clears call history. Used by the
// recovery orchestrator after a verified manual recovery.
func (b *Breaker) ForceClose(reason string) {
	b.mu.Lock()
	b.forced = false
	b.failures = nil
	change, notify := b.transition(StateClosed, reason)
	b.mu.Unlock()
	if notify {
		b.emit(change)
	}
}

// Probe moves an OPEN breaker to HALF_OPEN immediately, without waiting
// for the cooldown. The recovery orchestrator uses it to schedule
// probes on its own backoff.
func (b *Breaker) Probe(reason string) {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return
	}
	b.forced = false
	change, notify := b.transition(StateHalfOpen, reason)
	b.mu.Unlock()
	if notify {
		b.emit(change)
	}
}

// OnStateChange registers a callback invoked after every state
// transition. Callbacks run outside the breaker lock, in registration
// order.
func (b *Breaker) OnStateChange(fn func(StateChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = append(b.onChange, fn)
}

func (b *Breaker) recordSuccess(gen uint64) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}

	var change StateChange
	notify := false
	if b.state == StateHalfOpen {
		b.probeWins++
		if b.probeWins >= b.cfg.HalfOpenProbeBudget {
			change, notify = b.transition(StateClosed, "probe budget succeeded")
		}
	}
	b.mu.Unlock()
	if notify {
		b.emit(change)
	}
}

func (b *Breaker) recordFailure(gen uint64) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}

	now := b.now()
	var change StateChange
	notify := false

	switch b.state {
	case StateHalfOpen:
		change, notify = b.transition(StateOpen, "probe failed")
	case StateClosed:
		b.failures = append(b.failures, now)
		b.prune(now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			change, notify = b.transition(StateOpen, "failure threshold reached")
		}
	}
	b.mu.Unlock()
	if notify {
		b.emit(change)
	}
}

// refresh applies the cooldown transition. Callers hold the lock.
func (b *Breaker) refresh(now time.Time) {
	if b.state == StateOpen && !b.forced && now.Sub(b.openedAt) >= b.cfg.Cooldown {
		change, notify := b.transition(StateHalfOpen, "cooldown elapsed")
		if notify {
			// Emit without the lock; refresh callers hold it.
			go b.emit(change)
		}
	}
	if b.state == StateClosed {
		b.prune(now)
	}
}

// prune drops failures older than the sliding window. Callers hold the
// lock.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.FailureWindow)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// transition moves to the next state and prepares the change event.
// Callers hold the lock. No event is prepared for self-transitions.
func (b *Breaker) transition(next State, reason string) (StateChange, bool) {
	if b.state == next {
		return StateChange{}, false
	}

	prev := b.state
	b.state = next
	b.generation++

	switch next {
	case StateOpen:
		b.openedAt = b.now()
		b.probes = 0
		b.probeWins = 0
	case StateHalfOpen:
		b.probes = 0
		b.probeWins = 0
	case StateClosed:
		b.failures = nil
	}

	return StateChange{
		Service: b.service,
		From:    prev,
		To:      next,
		Reason:  reason,
		At:      b.now(),
	}, true
}

func (b *Breaker) emit(change StateChange) {
	b.mu.Lock()
	callbacks := make([]func(StateChange), len(b.onChange))
	copy(callbacks, b.onChange)
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn(change)
	}
}
