package chaos

import (
	"errors"
	"testing"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
)

const testHash = "cdd01ef066bc6cf2"

func testEngine() *Engine {
	return NewEngine(config.ChaosConfig{Enabled: true, MaxDuration: MaxDuration}, testHash, nil, nil)
}

func latencyScenario(name string) *Scenario {
	return &Scenario{
		Name:               name,
		Kind:               KindLatency,
		Target:             "policy.remote",
		Latency:            50 * time.Millisecond,
		Duration:           10 * time.Second,
		ConstitutionalHash: testHash,
	}
}

func TestActivateValidation(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name     string
		mutate   func(*Scenario)
		wantErr  error
		wantKind bool
	}{
		{name: "valid", mutate: func(s *Scenario) {}},
		{name: "missing name", mutate: func(s *Scenario) { s.Name = "" }, wantErr: ErrScenarioInvalid},
		{name: "unknown kind", mutate: func(s *Scenario) { s.Kind = "EXPLOSION" }, wantErr: ErrScenarioInvalid},
		{name: "missing target", mutate: func(s *Scenario) { s.Target = "" }, wantErr: ErrScenarioInvalid},
		{name: "wrong hash", mutate: func(s *Scenario) { s.ConstitutionalHash = "0000000000000000" }, wantErr: ErrScenarioInvalid},
		{name: "zero duration", mutate: func(s *Scenario) { s.Duration = 0 }, wantErr: ErrScenarioInvalid},
		{name: "duration over ceiling", mutate: func(s *Scenario) { s.Duration = MaxDuration + time.Second }, wantErr: ErrScenarioInvalid},
		{name: "latency over ceiling", mutate: func(s *Scenario) { s.Latency = 10 * time.Second }, wantErr: ErrScenarioInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := latencyScenario("t-" + tt.name)
			tt.mutate(sc)
			err := e.Activate(sc)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Activate() error = %v", err)
				}
				e.Deactivate(sc.Name)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Activate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestActivateDisabled(t *testing.T) {
	e := NewEngine(config.ChaosConfig{Enabled: false}, testHash, nil, nil)
	if err := e.Activate(latencyScenario("s")); !errors.Is(err, ErrDisabled) {
		t.Errorf("Activate() on disabled engine error = %v, want ErrDisabled", err)
	}
}

func TestDuplicateName(t *testing.T) {
	e := testEngine()
	if err := e.Activate(latencyScenario("dup")); err != nil {
		t.Fatal(err)
	}
	if err := e.Activate(latencyScenario("dup")); !errors.Is(err, ErrScenarioExists) {
		t.Errorf("duplicate Activate() error = %v, want ErrScenarioExists", err)
	}
}

func TestLatencyInjection(t *testing.T) {
	e := testEngine()

	sc := latencyScenario("lat")
	sc.BlastRadius = []string{"policy.remote", "scorer"}
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}

	if d := e.LatencyFor("policy.remote"); d != 50*time.Millisecond {
		t.Errorf("LatencyFor(target) = %v, want 50ms", d)
	}
	if d := e.LatencyFor("scorer"); d != 50*time.Millisecond {
		t.Errorf("LatencyFor(blast radius member) = %v, want 50ms", d)
	}
	// Outside the blast radius, checks return the no-op value.
	if d := e.LatencyFor("audit.sink"); d != 0 {
		t.Errorf("LatencyFor(outside radius) = %v, want 0", d)
	}

	e.Deactivate("lat")
	if d := e.LatencyFor("policy.remote"); d != 0 {
		t.Errorf("LatencyFor after deactivation = %v, want 0", d)
	}
}

func TestBlastRadiusDefaultsToTarget(t *testing.T) {
	e := testEngine()
	if err := e.Activate(latencyScenario("lat")); err != nil {
		t.Fatal(err)
	}
	if d := e.LatencyFor("policy.remote"); d == 0 {
		t.Error("scenario does not apply to its own target")
	}
	if d := e.LatencyFor("other"); d != 0 {
		t.Error("scenario leaked outside its target")
	}
}

func TestErrorInjection(t *testing.T) {
	e := testEngine()

	sc := &Scenario{
		Name:               "err",
		Kind:               KindError,
		Target:             "scorer",
		ErrorRate:          1.0,
		ErrorKind:          "timeout",
		Duration:           10 * time.Second,
		ConstitutionalHash: testHash,
	}
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}

	err := e.ShouldError("scorer")
	var injected *InjectedError
	if !errors.As(err, &injected) {
		t.Fatalf("ShouldError() = %v, want InjectedError at rate 1.0", err)
	}
	if injected.Kind != "timeout" {
		t.Errorf("injected kind = %q, want timeout", injected.Kind)
	}

	if err := e.ShouldError("elsewhere"); err != nil {
		t.Errorf("ShouldError(outside radius) = %v, want nil", err)
	}

	// Rate zero never fires.
	e.Deactivate("err")
	sc.Name = "err0"
	sc.ErrorRate = 0
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if err := e.ShouldError("scorer"); err != nil {
			t.Fatalf("ShouldError() fired at rate 0: %v", err)
		}
	}
}

func TestCircuitOpenScenario(t *testing.T) {
	breakers := breaker.NewManager(config.BreakerConfig{
		FailureThreshold:    5,
		FailureWindow:       time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbeBudget: 1,
	})
	e := NewEngine(config.ChaosConfig{Enabled: true, MaxDuration: MaxDuration}, testHash, breakers, nil)

	sc := &Scenario{
		Name:               "trip",
		Kind:               KindCircuitOpen,
		Target:             "policy.remote",
		Duration:           10 * time.Second,
		ConstitutionalHash: testHash,
	}
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}
	if breakers.Get("policy.remote").State() != breaker.StateOpen {
		t.Error("CIRCUIT_OPEN scenario did not force the breaker open")
	}

	e.Deactivate("trip")
	if breakers.Get("policy.remote").State() != breaker.StateClosed {
		t.Error("deactivation did not restore the breaker")
	}
}

func TestSelfDeactivation(t *testing.T) {
	e := testEngine()

	sc := latencyScenario("short")
	sc.Duration = 30 * time.Millisecond
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}
	if len(e.Active()) != 1 {
		t.Fatal("scenario not active")
	}

	deadline := time.Now().Add(time.Second)
	for len(e.Active()) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(e.Active()) != 0 {
		t.Error("scenario did not self-deactivate at its duration")
	}
}

func TestEmergencyStop(t *testing.T) {
	e := testEngine()

	if err := e.Activate(latencyScenario("a")); err != nil {
		t.Fatal(err)
	}
	sc := latencyScenario("b")
	sc.Target = "other"
	if err := e.Activate(sc); err != nil {
		t.Fatal(err)
	}

	e.EmergencyStop()
	if len(e.Active()) != 0 {
		t.Error("emergency stop left scenarios active")
	}
	if err := e.Activate(latencyScenario("c")); !errors.Is(err, ErrEmergencyStopped) {
		t.Errorf("Activate() after emergency stop error = %v, want ErrEmergencyStopped", err)
	}

	// Idempotent: a second stop changes nothing.
	e.EmergencyStop()
	if !e.Stopped() {
		t.Error("Stopped() = false after emergency stop")
	}

	e.Reset()
	if err := e.Activate(latencyScenario("c")); err != nil {
		t.Errorf("Activate() after Reset error = %v", err)
	}
}

func TestDefaultEngine(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	replacement := testEngine()
	SetDefault(replacement)
	if Default() != replacement {
		t.Error("SetDefault did not install the engine")
	}
}

func TestObserverSeesLifecycle(t *testing.T) {
	e := testEngine()

	type event struct {
		kind     string
		scenario string
	}
	events := make(chan event, 4)
	e.SetObserver(func(kind string, sc Scenario) {
		events <- event{kind: kind, scenario: sc.Name}
	})

	if err := e.Activate(latencyScenario("obs")); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	e.Deactivate("obs")

	for _, want := range []event{{EventActivated, "obs"}, {EventStopped, "obs"}} {
		select {
		case got := <-events:
			if got != want {
				t.Fatalf("event = %+v, want %+v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", want.kind)
		}
	}
}
