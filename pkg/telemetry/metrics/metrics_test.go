package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"concordlabs/concord/pkg/config"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Namespace: "test",
		Subsystem: "bus",
	}
}

func TestNewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector == nil {
		t.Fatal("expected non-nil collector")
	}
	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}
	if collector.Bus() == nil {
		t.Error("expected bus metrics enabled by default")
	}
}

func TestCollector_Disabled(t *testing.T) {
	off := false
	cfg := testConfig()
	cfg.Enabled = &off

	collector := NewCollector(cfg, nil)

	if collector.Bus() != nil {
		t.Error("expected nil bus metrics when disabled")
	}

	// Recording through nil group accessors must not panic.
	collector.Bus().RecordMessage("COMMAND", "HIGH", "DELIVERED", time.Millisecond)
	collector.Governance().RecordValidation("constitutional", "valid")
	collector.Resilience().SetHealthScore(1.0)
	collector.Sinks().RecordAuditDrop()
}

func TestBusMetrics_RecordMessage(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.Bus().RecordMessage("COMMAND", "HIGH", "DELIVERED", 3*time.Millisecond)
	collector.Bus().RecordMessage("COMMAND", "HIGH", "DELIVERED", 5*time.Millisecond)
	collector.Bus().RecordMessage("QUERY", "LOW", "FAILED", time.Millisecond)

	got := testutil.ToFloat64(
		collector.busMetrics.messagesTotal.WithLabelValues("COMMAND", "HIGH", "DELIVERED"),
	)
	if got != 2 {
		t.Errorf("expected 2 delivered commands, got %g", got)
	}

	got = testutil.ToFloat64(
		collector.busMetrics.messagesTotal.WithLabelValues("QUERY", "LOW", "FAILED"),
	)
	if got != 1 {
		t.Errorf("expected 1 failed query, got %g", got)
	}
}

func TestBusMetrics_QueuePressure(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.Bus().SetQueueDepth(42)
	collector.Bus().RecordQueueFull()
	collector.Bus().RecordQueueFull()

	if got := testutil.ToFloat64(collector.busMetrics.queueDepth); got != 42 {
		t.Errorf("expected queue depth 42, got %g", got)
	}
	if got := testutil.ToFloat64(collector.busMetrics.queueFullTotal); got != 2 {
		t.Errorf("expected 2 queue full rejections, got %g", got)
	}
}

func TestGovernanceMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.Governance().RecordPolicyEvaluation("remote", "ALLOW", 2*time.Millisecond)
	collector.Governance().RecordPolicyCache("memory", "hit")
	collector.Governance().RecordPolicyCache("memory", "miss")
	collector.Governance().SetPendingReviews(3)
	collector.Governance().RecordDeliberation("APPROVED")

	got := testutil.ToFloat64(
		collector.governanceMetrics.policyEvaluations.WithLabelValues("remote", "ALLOW"),
	)
	if got != 1 {
		t.Errorf("expected 1 remote allow, got %g", got)
	}
	got = testutil.ToFloat64(
		collector.governanceMetrics.policyCache.WithLabelValues("memory", "hit"),
	)
	if got != 1 {
		t.Errorf("expected 1 memory cache hit, got %g", got)
	}
	if got := testutil.ToFloat64(collector.governanceMetrics.pendingReviews); got != 3 {
		t.Errorf("expected 3 pending reviews, got %g", got)
	}
}

func TestResilienceMetrics_BreakerLifecycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.Resilience().SetBreakerState("policy_engine", 2)
	collector.Resilience().RecordBreakerTransition("policy_engine", "CLOSED", "OPEN")
	collector.Resilience().RecordBreakerRejection("policy_engine")
	collector.Resilience().SetHealthScore(0.5)

	got := testutil.ToFloat64(
		collector.resilienceMetrics.breakerState.WithLabelValues("policy_engine"),
	)
	if got != 2 {
		t.Errorf("expected open state 2, got %g", got)
	}
	got = testutil.ToFloat64(
		collector.resilienceMetrics.breakerTransitions.WithLabelValues("policy_engine", "CLOSED", "OPEN"),
	)
	if got != 1 {
		t.Errorf("expected 1 transition, got %g", got)
	}
	if got := testutil.ToFloat64(collector.resilienceMetrics.healthScore); got != 0.5 {
		t.Errorf("expected health score 0.5, got %g", got)
	}
}

func TestSinkMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.Sinks().RecordAuditEntry("MESSAGE_DELIVERED")
	collector.Sinks().RecordAuditEntry("MESSAGE_DELIVERED")
	collector.Sinks().RecordAuditDrop()
	collector.Sinks().RecordMeteringEvent()

	got := testutil.ToFloat64(
		collector.sinkMetrics.auditEntries.WithLabelValues("MESSAGE_DELIVERED"),
	)
	if got != 2 {
		t.Errorf("expected 2 audit entries, got %g", got)
	}
	if got := testutil.ToFloat64(collector.sinkMetrics.auditDropped); got != 1 {
		t.Errorf("expected 1 dropped entry, got %g", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(2)

	if !limiter.Allow("a") {
		t.Error("first label set should be allowed")
	}
	if !limiter.Allow("b") {
		t.Error("second label set should be allowed")
	}
	if limiter.Allow("c") {
		t.Error("third label set should be rejected at limit 2")
	}
	if !limiter.Allow("a") {
		t.Error("existing label set should stay allowed")
	}
	if limiter.Count() != 2 {
		t.Errorf("expected cardinality 2, got %d", limiter.Count())
	}
}
