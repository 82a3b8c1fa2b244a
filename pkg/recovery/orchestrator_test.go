package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
)

func TestPolicyDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "exponential first attempt",
			policy:  Policy{Strategy: StrategyExponential, InitialDelay: 100 * time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Second},
			attempt: 1,
			want:    100 * time.Millisecond,
		},
		{
			name:    "exponential third attempt",
			policy:  Policy{Strategy: StrategyExponential, InitialDelay: 100 * time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Second},
			attempt: 3,
			want:    400 * time.Millisecond,
		},
		{
			name:    "exponential capped",
			policy:  Policy{Strategy: StrategyExponential, InitialDelay: 100 * time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Second},
			attempt: 10,
			want:    time.Second,
		},
		{
			name:    "linear grows by attempt",
			policy:  Policy{Strategy: StrategyLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt: 3,
			want:    300 * time.Millisecond,
		},
		{
			name:    "linear capped",
			policy:  Policy{Strategy: StrategyLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond},
			attempt: 5,
			want:    250 * time.Millisecond,
		},
		{
			name:    "immediate",
			policy:  Policy{Strategy: StrategyImmediate, InitialDelay: time.Second},
			attempt: 2,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.attempt); got != tt.want {
				t.Fatalf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestPolicyFromConfigDefaults(t *testing.T) {
	p := policyFromConfig(config.RecoveryPolicyConfig{})
	if p.Strategy != StrategyExponential {
		t.Fatalf("strategy = %s, want EXPONENTIAL", p.Strategy)
	}
	if p.MaxAttempts != 5 || p.InitialDelay != time.Second || p.BackoffMultiplier != 2.0 || p.MaxDelay != 60*time.Second {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	p = policyFromConfig(config.RecoveryPolicyConfig{Strategy: "manual"})
	if p.Strategy != StrategyManual {
		t.Fatalf("strategy = %s, want MANUAL", p.Strategy)
	}
}

func testRecoveryConfig(strategy string) config.RecoveryConfig {
	return config.RecoveryConfig{
		Default: config.RecoveryPolicyConfig{
			Strategy:          strategy,
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 2,
			MaxDelay:          10 * time.Millisecond,
		},
	}
}

func newTestOrchestrator(strategy string) (*Orchestrator, *breaker.Manager) {
	manager := breaker.NewManager(config.BreakerConfig{
		FailureThreshold:    2,
		FailureWindow:       time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbeBudget: 1,
	})
	o := NewOrchestrator(testRecoveryConfig(strategy), message.DefaultConstitutionalHash, manager, nil, nil)
	return o, manager
}

// drive runs due tasks until the service task leaves SCHEDULED and
// IN_PROGRESS or the deadline passes.
func drive(t *testing.T, o *Orchestrator, service string) Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		o.runDue(context.Background())
		task, ok := o.Status(service)
		if ok && task.State != StateScheduled && task.State != StateInProgress {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	task, _ := o.Status(service)
	t.Fatalf("task for %s did not settle, state %s", service, task.State)
	return Task{}
}

func TestBreakerOpenSchedulesTask(t *testing.T) {
	o, manager := newTestOrchestrator("manual")
	defer o.Stop()

	manager.Get("policy.remote").ForceOpen("test")

	task, ok := o.Status("policy.remote")
	if !ok {
		t.Fatal("expected a task after the breaker opened")
	}
	if task.State != StateAwaitingManual {
		t.Fatalf("state = %s, want AWAITING_MANUAL", task.State)
	}
}

func TestRecoverySucceedsAfterRetries(t *testing.T) {
	o, manager := newTestOrchestrator("exponential")
	defer o.Stop()

	attempts := 0
	o.SetProbe("svc", func(context.Context, string) error {
		attempts++
		if attempts < 3 {
			return errors.New("still down")
		}
		return nil
	})

	manager.Get("svc").ForceOpen("test")
	task := drive(t, o, "svc")

	if task.State != StateSucceeded {
		t.Fatalf("state = %s, want SUCCEEDED", task.State)
	}
	if task.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", task.Attempts)
	}
	if manager.Get("svc").State() != breaker.StateClosed {
		t.Fatalf("breaker = %s, want CLOSED", manager.Get("svc").State())
	}
}

func TestRecoveryExhaustsAttempts(t *testing.T) {
	o, manager := newTestOrchestrator("immediate")
	defer o.Stop()

	o.SetProbe("svc", func(context.Context, string) error {
		return errors.New("still down")
	})

	manager.Get("svc").ForceOpen("test")
	task := drive(t, o, "svc")

	if task.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", task.State)
	}
	if task.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", task.Attempts)
	}
	if task.LastError == "" {
		t.Fatal("expected LastError to be recorded")
	}
	if manager.Get("svc").State() != breaker.StateOpen {
		t.Fatalf("breaker = %s, want OPEN", manager.Get("svc").State())
	}
}

func TestManualTrigger(t *testing.T) {
	o, manager := newTestOrchestrator("manual")
	defer o.Stop()

	manager.Get("svc").ForceOpen("test")

	// Parked tasks never run on their own.
	o.runDue(context.Background())
	task, _ := o.Status("svc")
	if task.State != StateAwaitingManual {
		t.Fatalf("state = %s, want AWAITING_MANUAL", task.State)
	}

	if err := o.Trigger("svc"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	task = drive(t, o, "svc")
	if task.State != StateSucceeded {
		t.Fatalf("state = %s, want SUCCEEDED", task.State)
	}
	if manager.Get("svc").State() != breaker.StateClosed {
		t.Fatalf("breaker = %s, want CLOSED", manager.Get("svc").State())
	}
}

func TestCancel(t *testing.T) {
	o, manager := newTestOrchestrator("exponential")
	defer o.Stop()

	manager.Get("svc").ForceOpen("test")
	if err := o.Cancel("svc"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	task, _ := o.Status("svc")
	if task.State != StateCancelled {
		t.Fatalf("state = %s, want CANCELLED", task.State)
	}

	o.runDue(context.Background())
	task, _ = o.Status("svc")
	if task.Attempts != 0 {
		t.Fatal("cancelled task must not run")
	}
}

func TestTriggerUnknownService(t *testing.T) {
	o, _ := newTestOrchestrator("exponential")
	defer o.Stop()

	if err := o.Trigger("ghost"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("Trigger = %v, want ErrUnknownService", err)
	}
}

func TestRecoveryAbortsOnHashMismatch(t *testing.T) {
	manager := breaker.NewManager(config.BreakerConfig{
		FailureThreshold:    2,
		FailureWindow:       time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbeBudget: 1,
	})
	o := NewOrchestrator(testRecoveryConfig("immediate"), "0000000000000000", manager, nil, nil)
	defer o.Stop()

	manager.Get("svc").ForceOpen("test")
	task := drive(t, o, "svc")

	if task.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", task.State)
	}
	if task.LastError != ErrHashMismatch.Error() {
		t.Fatalf("LastError = %q, want hash mismatch", task.LastError)
	}
	if manager.Get("svc").State() != breaker.StateOpen {
		t.Fatal("breaker must stay OPEN when the hash check fails")
	}
}
