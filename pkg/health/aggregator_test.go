package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/config"
)

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		FailureThreshold:    2,
		FailureWindow:       time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbeBudget: 1,
	}
}

func newTestAggregator(manager *breaker.Manager) *Aggregator {
	return NewAggregator(config.HealthConfig{
		DegradedThreshold: 0.9,
		CriticalThreshold: 0.5,
		SnapshotInterval:  time.Hour, // tests drive Check directly
		Window:            time.Minute,
	}, manager, nil)
}

func TestCheckNoData(t *testing.T) {
	manager := breaker.NewManager(testBreakerConfig())
	a := newTestAggregator(manager)
	defer a.Stop()

	report := a.Check(context.Background())
	if report.Status != StatusUnknown {
		t.Fatalf("status = %s, want UNKNOWN", report.Status)
	}
	if report.Score != 1.0 {
		t.Fatalf("score = %f, want 1.0", report.Score)
	}
}

func TestCheckScores(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*breaker.Manager)
		wantScore  float64
		wantStatus Status
	}{
		{
			name: "all closed",
			setup: func(m *breaker.Manager) {
				m.Get("a")
				m.Get("b")
			},
			wantScore:  1.0,
			wantStatus: StatusHealthy,
		},
		{
			name: "one of two open",
			setup: func(m *breaker.Manager) {
				m.Get("a")
				m.Get("b").ForceOpen("test")
			},
			wantScore:  0.5,
			wantStatus: StatusDegraded,
		},
		{
			name: "all open",
			setup: func(m *breaker.Manager) {
				m.Get("a").ForceOpen("test")
				m.Get("b").ForceOpen("test")
			},
			wantScore:  0.0,
			wantStatus: StatusCritical,
		},
		{
			name: "half open counts half",
			setup: func(m *breaker.Manager) {
				m.Get("a").ForceOpen("test")
				m.Get("a").Probe("test")
			},
			wantScore:  0.5,
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := breaker.NewManager(testBreakerConfig())
			a := newTestAggregator(manager)
			defer a.Stop()
			tt.setup(manager)

			report := a.Check(context.Background())
			if report.Score != tt.wantScore {
				t.Fatalf("score = %f, want %f", report.Score, tt.wantScore)
			}
			if report.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", report.Status, tt.wantStatus)
			}
		})
	}
}

func TestTransitionTriggersListener(t *testing.T) {
	manager := breaker.NewManager(testBreakerConfig())
	a := newTestAggregator(manager)
	defer a.Stop()

	manager.Get("svc")
	a.Check(context.Background()) // settle on HEALTHY

	var mu sync.Mutex
	var seen []Status
	a.OnChange(func(r Report) {
		mu.Lock()
		seen = append(seen, r.Status)
		mu.Unlock()
	})

	// The breaker transition recomputes health without an explicit
	// Check call.
	manager.Get("svc").ForceOpen("test")

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 || seen[0] != StatusCritical {
		t.Fatalf("listener saw %v, want [CRITICAL]", seen)
	}
	if a.Status() != StatusCritical {
		t.Fatalf("Status() = %s, want CRITICAL", a.Status())
	}
}

func TestWindowAverage(t *testing.T) {
	manager := breaker.NewManager(testBreakerConfig())
	a := newTestAggregator(manager)
	defer a.Stop()

	manager.Get("svc")
	a.Check(context.Background())
	manager.Get("svc").ForceOpen("test")
	report := a.Check(context.Background())

	if report.WindowAverage >= 1.0 || report.WindowAverage <= 0.0 {
		t.Fatalf("window average = %f, want between 0 and 1", report.WindowAverage)
	}
}
