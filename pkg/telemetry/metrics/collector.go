package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"concordlabs/concord/pkg/config"
)

// Collector is the main orchestrator for all Prometheus metrics in the
// Concord agent bus. It manages metric registration and provides a
// unified interface for recording metrics across all components.
//
// The collector is designed for minimal overhead on the message path:
//   - Pre-allocated metric instances
//   - Cardinality limits on agent-labeled metrics
//   - No-op recording when metrics are disabled
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	enabled  bool

	// Bus pipeline metrics
	busMetrics *BusMetrics

	// Validation, policy, and deliberation metrics
	governanceMetrics *GovernanceMetrics

	// Breaker, health, recovery, and chaos metrics
	resilienceMetrics *ResilienceMetrics

	// Audit and metering sink metrics
	sinkMetrics *SinkMetrics

	// Cardinality tracking for agent-labeled metrics
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultSubsystem
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		enabled:            cfg.IsEnabled(),
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.busMetrics = NewBusMetrics(cfg, registry)
	c.governanceMetrics = NewGovernanceMetrics(cfg, registry)
	c.resilienceMetrics = NewResilienceMetrics(cfg, registry)
	c.sinkMetrics = NewSinkMetrics(cfg, registry)

	return c
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Bus returns the bus pipeline metrics, or nil when disabled. All
// recording methods tolerate a nil receiver, so call sites need no
// enabled checks.
func (c *Collector) Bus() *BusMetrics {
	if !c.enabled {
		return nil
	}
	return c.busMetrics
}

// Governance returns the validation, policy, and deliberation metrics,
// or nil when disabled.
func (c *Collector) Governance() *GovernanceMetrics {
	if !c.enabled {
		return nil
	}
	return c.governanceMetrics
}

// Resilience returns the breaker, health, recovery, and chaos metrics,
// or nil when disabled.
func (c *Collector) Resilience() *ResilienceMetrics {
	if !c.enabled {
		return nil
	}
	return c.resilienceMetrics
}

// Sinks returns the audit and metering metrics, or nil when disabled.
func (c *Collector) Sinks() *SinkMetrics {
	if !c.enabled {
		return nil
	}
	return c.sinkMetrics
}

// AllowAgentLabel reports whether an agent-labeled series may be
// created. Past the cardinality ceiling, callers substitute "other".
func (c *Collector) AllowAgentLabel(metric, agentID string) bool {
	return c.cardinalityLimiter.Allow(fmt.Sprintf("%s:%s", metric, agentID))
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the
// specified maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if the cardinality limit has not been reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
