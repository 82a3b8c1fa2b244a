package recovery

import (
	"container/heap"
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/audit"
	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// Probe verifies a service has actually recovered. A nil probe treats
// the attempt as successful, which blindly closes the breaker; wire a
// real probe for anything that matters.
type Probe func(ctx context.Context, service string) error

// Orchestrator schedules and executes recovery of services whose
// breakers opened. One task exists per service at a time.
type Orchestrator struct {
	cfg      config.RecoveryConfig
	hash     string
	breakers *breaker.Manager
	rm       *metrics.ResilienceMetrics
	trail    *audit.Trail

	mu     sync.Mutex
	tasks  map[string]*Task
	due    taskHeap
	probes map[string]Probe

	stopped atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	logger *slog.Logger
}

// NewOrchestrator builds an orchestrator that reacts to breaker OPEN
// transitions. The constitutional hash is revalidated before every
// attempt.
func NewOrchestrator(cfg config.RecoveryConfig, hash string, breakers *breaker.Manager, rm *metrics.ResilienceMetrics, trail *audit.Trail) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		hash:     hash,
		breakers: breakers,
		rm:       rm,
		trail:    trail,
		tasks:    make(map[string]*Task),
		probes:   make(map[string]Probe),
		logger:   slog.Default().With("component", "recovery.orchestrator"),
	}
	o.done = make(chan struct{})
	breakers.OnStateChange(func(ev breaker.StateChange) {
		if ev.To == breaker.StateOpen && !o.stopped.Load() {
			o.Schedule(ev.Service)
		}
	})
	return o
}

// SetProbe installs the health probe for a service.
func (o *Orchestrator) SetProbe(service string, p Probe) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probes[service] = p
}

// Schedule creates or resets the recovery task for a service. Manual
// strategies park the task until Trigger.
func (o *Orchestrator) Schedule(service string) {
	policy := o.policyFor(service)

	o.mu.Lock()
	defer o.mu.Unlock()

	if t, ok := o.tasks[service]; ok {
		switch t.State {
		case StateScheduled, StateInProgress, StateAwaitingManual:
			// Already being handled.
			return
		}
	}

	t := &Task{
		Service:  service,
		Strategy: policy.Strategy,
		State:    StateScheduled,
		policy:   policy,
		index:    -1,
	}
	o.tasks[service] = t

	if policy.Strategy == StrategyManual {
		t.State = StateAwaitingManual
		o.logger.Info("recovery awaiting manual trigger", "service", service)
		return
	}

	t.NextAttemptAt = time.Now().Add(policy.Delay(1))
	heap.Push(&o.due, t)
	o.logger.Info("recovery scheduled",
		"service", service, "strategy", string(policy.Strategy), "next_attempt_at", t.NextAttemptAt)
}

// Trigger kicks a task manually: parked manual tasks and failed or
// cancelled tasks are rescheduled due immediately.
func (o *Orchestrator) Trigger(service string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks[service]
	if !ok {
		return ErrUnknownService
	}
	switch t.State {
	case StateScheduled, StateInProgress:
		return nil
	}
	t.State = StateScheduled
	t.NextAttemptAt = time.Now()
	if t.index == -1 {
		heap.Push(&o.due, t)
	} else {
		heap.Fix(&o.due, t.index)
	}
	return nil
}

// Cancel stops a pending task. In-progress attempts finish.
func (o *Orchestrator) Cancel(service string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks[service]
	if !ok {
		return ErrUnknownService
	}
	if t.index != -1 {
		heap.Remove(&o.due, t.index)
	}
	t.State = StateCancelled
	t.NextAttemptAt = time.Time{}
	return nil
}

// Status returns a copy of the service's task.
func (o *Orchestrator) Status(service string) (Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[service]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns copies of every task.
func (o *Orchestrator) List() []Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, *t)
	}
	return out
}

// Start launches the scheduler loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-o.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.runDue(ctx)
			}
		}
	}()
}

// Stop ends the scheduler loop.
func (o *Orchestrator) Stop() {
	if !o.stopped.CompareAndSwap(false, true) {
		return
	}
	close(o.done)
	o.wg.Wait()
}

// runDue executes every task whose attempt time has passed.
func (o *Orchestrator) runDue(ctx context.Context) {
	now := time.Now()
	for {
		o.mu.Lock()
		if o.due.Len() == 0 || o.due[0].NextAttemptAt.After(now) {
			o.mu.Unlock()
			return
		}
		t := heap.Pop(&o.due).(*Task)
		t.State = StateInProgress
		t.Attempts++
		attempt := t.Attempts
		probe := o.probes[t.Service]
		o.mu.Unlock()

		o.execute(ctx, t, attempt, probe)
	}
}

// execute runs one recovery attempt: hash check, breaker probe permit,
// optional health probe, then verdict.
func (o *Orchestrator) execute(ctx context.Context, t *Task, attempt int, probe Probe) {
	if subtle.ConstantTimeCompare([]byte(o.hash), []byte(message.DefaultConstitutionalHash)) != 1 {
		o.settle(t, StateFailed, ErrHashMismatch)
		o.logger.Error("recovery aborted", "service", t.Service, "error", ErrHashMismatch)
		return
	}

	b := o.breakers.Get(t.Service)
	b.Probe("recovery attempt")

	var err error
	if probe != nil {
		if perr := probe(ctx, t.Service); perr != nil {
			err = &ProbeError{Service: t.Service, Attempt: attempt, Err: perr}
		}
	}

	if err == nil {
		b.ForceClose("recovery succeeded")
		o.settle(t, StateSucceeded, nil)
		o.rm.RecordRecoveryAttempt(t.Service, "success")
		o.audit(t, attempt, "success")
		o.logger.Info("recovery succeeded", "service", t.Service, "attempts", attempt)
		return
	}

	b.ForceOpen("recovery probe failed")
	o.rm.RecordRecoveryAttempt(t.Service, "failure")
	o.audit(t, attempt, "failure")

	o.mu.Lock()
	t.LastError = err.Error()
	if attempt >= t.policy.MaxAttempts {
		t.State = StateFailed
		t.NextAttemptAt = time.Time{}
		o.mu.Unlock()
		o.logger.Warn("recovery exhausted", "service", t.Service, "attempts", attempt, "error", err)
		return
	}
	t.State = StateScheduled
	t.NextAttemptAt = time.Now().Add(t.policy.Delay(attempt + 1))
	heap.Push(&o.due, t)
	next := t.NextAttemptAt
	o.mu.Unlock()

	o.logger.Info("recovery attempt failed, rescheduled",
		"service", t.Service, "attempt", attempt, "next_attempt_at", next, "error", err)
}

func (o *Orchestrator) settle(t *Task, state TaskState, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t.State = state
	t.NextAttemptAt = time.Time{}
	if err != nil {
		t.LastError = err.Error()
	}
}

func (o *Orchestrator) audit(t *Task, attempt int, outcome string) {
	if o.trail == nil {
		return
	}
	decision := message.NewDecisionLog("recovery", "", message.DecisionAllow)
	if outcome != "success" {
		decision.Decision = message.DecisionDeny
	}
	decision.Metadata = map[string]any{
		"service":  t.Service,
		"attempt":  attempt,
		"outcome":  outcome,
		"strategy": string(t.Strategy),
	}
	if err := o.trail.Record(context.Background(), audit.NewEntry(audit.EventRecoveryAttempt, *decision)); err != nil {
		o.logger.Debug("recovery audit dropped", "service", t.Service, "error", err)
	}
}

// policyFor resolves the per-service policy, falling back to the
// default.
func (o *Orchestrator) policyFor(service string) Policy {
	if cfg, ok := o.cfg.PerService[service]; ok {
		return policyFromConfig(cfg)
	}
	return policyFromConfig(o.cfg.Default)
}
