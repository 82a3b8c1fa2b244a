package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"concordlabs/concord/pkg/config"
)

func testConfig() config.BreakerConfig {
	return config.BreakerConfig{
		FailureThreshold:    3,
		FailureWindow:       time.Minute,
		Cooldown:            time.Second,
		HalfOpenProbeBudget: 2,
	}
}

// clockBreaker returns a breaker driven by a controllable clock.
func clockBreaker(cfg config.BreakerConfig) (*Breaker, *time.Time) {
	now := time.Now()
	b := New("svc", cfg)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(t *testing.T, b *Breaker) {
	t.Helper()
	done, err := b.Allow()
	if err != nil {
		t.Fatalf("Allow() rejected while expecting admission: %v", err)
	}
	done(false)
}

func succeed(t *testing.T, b *Breaker) {
	t.Helper()
	done, err := b.Allow()
	if err != nil {
		t.Fatalf("Allow() rejected while expecting admission: %v", err)
	}
	done(true)
}

func TestOpensAtThreshold(t *testing.T) {
	b, _ := clockBreaker(testConfig())

	fail(t, b)
	fail(t, b)
	if b.State() != StateClosed {
		t.Fatal("breaker opened below the failure threshold")
	}

	fail(t, b)
	if b.State() != StateOpen {
		t.Fatal("breaker did not open at the failure threshold")
	}

	_, err := b.Allow()
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Allow() while open error = %v, want OpenError", err)
	}
	if !errors.Is(err, ErrOpen) {
		t.Error("OpenError does not match ErrOpen")
	}
}

func TestWindowExpiresFailures(t *testing.T) {
	b, now := clockBreaker(testConfig())

	fail(t, b)
	fail(t, b)

	// Old failures leave the window before the third arrives.
	*now = now.Add(2 * time.Minute)
	fail(t, b)

	if b.State() != StateClosed {
		t.Fatal("breaker counted failures outside the sliding window")
	}
}

func TestCooldownToHalfOpen(t *testing.T) {
	b, now := clockBreaker(testConfig())

	for i := 0; i < 3; i++ {
		fail(t, b)
	}
	if b.State() != StateOpen {
		t.Fatal("breaker not open")
	}

	*now = now.Add(2 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after cooldown = %v, want HALF_OPEN", b.State())
	}
}

func TestHalfOpenProbeSuccessCloses(t *testing.T) {
	b, now := clockBreaker(testConfig())

	for i := 0; i < 3; i++ {
		fail(t, b)
	}
	*now = now.Add(2 * time.Second)

	// Budget is 2: both probes must succeed.
	succeed(t, b)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after first probe = %v, want HALF_OPEN", b.State())
	}
	succeed(t, b)
	if b.State() != StateClosed {
		t.Fatalf("state after probe budget succeeded = %v, want CLOSED", b.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b, now := clockBreaker(testConfig())

	for i := 0; i < 3; i++ {
		fail(t, b)
	}
	*now = now.Add(2 * time.Second)

	fail(t, b)
	if b.State() != StateOpen {
		t.Fatalf("state after probe failure = %v, want OPEN", b.State())
	}

	// Fresh cooldown applies.
	*now = now.Add(500 * time.Millisecond)
	if b.State() != StateOpen {
		t.Fatal("reopened breaker honored a stale cooldown")
	}
}

func TestHalfOpenProbeBudgetEnforced(t *testing.T) {
	b, now := clockBreaker(testConfig())

	for i := 0; i < 3; i++ {
		fail(t, b)
	}
	*now = now.Add(2 * time.Second)

	d1, err := b.Allow()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := b.Allow()
	if err != nil {
		t.Fatal(err)
	}

	// Third concurrent probe exceeds the budget.
	if _, err := b.Allow(); err == nil {
		t.Fatal("Allow() admitted a probe beyond the budget")
	}

	d1(true)
	d2(true)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want CLOSED", b.State())
	}
}

func TestForceOpenAndClose(t *testing.T) {
	b, now := clockBreaker(testConfig())

	b.ForceOpen("chaos scenario")
	if b.State() != StateOpen {
		t.Fatal("ForceOpen did not open the breaker")
	}

	// A forced-open breaker ignores the cooldown.
	*now = now.Add(time.Hour)
	if b.State() != StateOpen {
		t.Fatal("forced-open breaker transitioned on cooldown")
	}

	b.ForceClose("scenario ended")
	if b.State() != StateClosed {
		t.Fatal("ForceClose did not close the breaker")
	}
}

func TestProbe(t *testing.T) {
	b, _ := clockBreaker(testConfig())

	// Probe on a closed breaker is a no-op.
	b.Probe("recovery")
	if b.State() != StateClosed {
		t.Fatal("Probe transitioned a closed breaker")
	}

	b.ForceOpen("test")
	b.Probe("recovery")
	if b.State() != StateHalfOpen {
		t.Fatalf("state after Probe = %v, want HALF_OPEN", b.State())
	}
}

func TestStaleResultsIgnored(t *testing.T) {
	b, _ := clockBreaker(testConfig())

	done, err := b.Allow()
	if err != nil {
		t.Fatal(err)
	}

	// The breaker is forced open while the call is in flight; its
	// result belongs to a previous generation and must not count.
	b.ForceOpen("chaos")
	b.ForceClose("chaos over")
	done(false)
	done(false)
	done(false)

	if b.State() != StateClosed {
		t.Fatalf("stale failures moved the breaker to %v", b.State())
	}
}

func TestStateChangeEvents(t *testing.T) {
	b, now := clockBreaker(testConfig())

	var mu sync.Mutex
	var events []StateChange
	b.OnStateChange(func(c StateChange) {
		mu.Lock()
		events = append(events, c)
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		fail(t, b)
	}
	*now = now.Add(2 * time.Second)
	succeed(t, b)
	succeed(t, b)

	// refresh emits the cooldown transition asynchronously.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	want := []struct{ from, to State }{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	for i, w := range want {
		if events[i].From != w.from || events[i].To != w.to {
			t.Errorf("event %d = %s→%s, want %s→%s", i, events[i].From, events[i].To, w.from, w.to)
		}
		if events[i].Service != "svc" {
			t.Errorf("event %d service = %q", i, events[i].Service)
		}
	}
}

func TestExecute(t *testing.T) {
	b, _ := clockBreaker(testConfig())

	wantErr := errors.New("downstream broke")
	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return wantErr }); !errors.Is(err, wantErr) {
			t.Fatalf("Execute() error = %v, want %v", err, wantErr)
		}
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("Execute() while open error = %v, want ErrOpen", err)
	}
}

func TestManager(t *testing.T) {
	m := NewManager(testConfig())

	a := m.Get("policy.remote")
	if m.Get("policy.remote") != a {
		t.Error("Get returned a different breaker for the same service")
	}
	if m.Get("scorer") == a {
		t.Error("Get returned the same breaker for a different service")
	}

	var mu sync.Mutex
	var seen []string
	m.OnStateChange(func(c StateChange) {
		mu.Lock()
		seen = append(seen, c.Service)
		mu.Unlock()
	})

	// Subscription covers breakers created before and after.
	a.ForceOpen("test")
	m.Get("audit.sink").ForceOpen("test")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("subscriber saw %d events, want 2: %v", len(seen), seen)
	}

	snap := m.Snapshot()
	if len(snap) != 3 {
		t.Errorf("Snapshot() has %d services, want 3", len(snap))
	}
	if snap["policy.remote"] != StateOpen || snap["audit.sink"] != StateOpen || snap["scorer"] != StateClosed {
		t.Errorf("Snapshot() = %v", snap)
	}
}
