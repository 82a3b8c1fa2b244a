package config

import "time"

// Config is the root configuration structure for the Concord agent bus
// runtime. It covers the bus itself, governance validation, deliberation,
// policy evaluation, resilience (breakers, health, recovery, chaos), audit
// and metering sinks, identity verification, and telemetry.
type Config struct {
	// ConstitutionalHash is the hash of the active constitution. Every
	// message is validated against it in constant time.
	// Must be exactly 16 lowercase hex characters.
	// Default: "cdd01ef066bc6cf2"
	ConstitutionalHash string `yaml:"constitutional_hash"`

	// Bus contains queue and worker settings.
	Bus BusConfig `yaml:"bus"`

	// Validation contains message validation settings.
	Validation ValidationConfig `yaml:"validation"`

	// Deliberation contains the human/agent review gate settings.
	Deliberation DeliberationConfig `yaml:"deliberation"`

	// ImpactWeights are the factor weights of the impact scorer.
	// Must sum to 1.0.
	ImpactWeights ImpactWeights `yaml:"impact_weights"`

	// Policy contains the policy adapter layer settings.
	Policy PolicyConfig `yaml:"policy"`

	// Breaker contains the default circuit breaker settings.
	Breaker BreakerConfig `yaml:"breaker"`

	// Registry contains agent registry settings.
	Registry RegistryConfig `yaml:"registry"`

	// Health contains health aggregation settings.
	Health HealthConfig `yaml:"health"`

	// Recovery contains the recovery orchestrator settings.
	Recovery RecoveryConfig `yaml:"recovery"`

	// Chaos contains the chaos engine settings.
	Chaos ChaosConfig `yaml:"chaos"`

	// Audit contains the audit trail settings.
	Audit AuditConfig `yaml:"audit"`

	// Metering contains the usage metering settings.
	Metering MeteringConfig `yaml:"metering"`

	// Identity contains agent identity verification settings.
	Identity IdentityConfig `yaml:"identity"`

	// Telemetry contains logging, metrics, and tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BusConfig contains queue and worker settings for the bus facade.
type BusConfig struct {
	// WorkerCount is the number of concurrent message workers.
	// Minimum 1. Default: 4
	WorkerCount int `yaml:"worker_count"`

	// QueueCapacity bounds the number of admitted, not-yet-processed
	// messages. Send blocks (up to its timeout) when the queue is full.
	// Minimum 1. Default: 1024
	QueueCapacity int `yaml:"queue_capacity"`

	// DefaultSendTimeout bounds queue admission when the caller supplies
	// no deadline of its own. Default: 5s
	DefaultSendTimeout time.Duration `yaml:"default_send_timeout"`

	// ShutdownDeadline bounds graceful drain on Stop. Messages still
	// queued after the deadline are abandoned. Default: 30s
	ShutdownDeadline time.Duration `yaml:"shutdown_deadline"`

	// InboxCapacity bounds each agent's delivery inbox. Default: 256
	InboxCapacity int `yaml:"inbox_capacity"`
}

// ValidationConfig contains message validation settings.
type ValidationConfig struct {
	// RoleStrictMode makes role violations fatal. When false, violations
	// are logged as warnings and processing continues.
	// Default: true
	RoleStrictMode *bool `yaml:"role_strict_mode"`

	// ContentScreenEnabled turns on prompt-injection screening of
	// message content. Findings are warnings, never fatal.
	// Default: true
	ContentScreenEnabled *bool `yaml:"content_screen_enabled"`

	// Cache configures the validation result cache.
	Cache CacheConfig `yaml:"cache"`
}

// StrictRoles reports whether role violations are fatal. Unset means true.
func (v ValidationConfig) StrictRoles() bool {
	return v.RoleStrictMode == nil || *v.RoleStrictMode
}

// ScreenContent reports whether content screening runs. Unset means true.
func (v ValidationConfig) ScreenContent() bool {
	return v.ContentScreenEnabled == nil || *v.ContentScreenEnabled
}

// CacheConfig is shared by the validation cache and the policy decision
// cache.
type CacheConfig struct {
	// InMemorySize is the LRU entry capacity. Default: 1024
	InMemorySize int `yaml:"in_memory_size"`

	// DistributedURL, when set, enables the shared second-tier cache
	// (redis URL, e.g. "redis://localhost:6379/0").
	DistributedURL string `yaml:"distributed_url"`

	// TTL bounds entry lifetime. Default: 300s
	TTL time.Duration `yaml:"ttl"`
}

// DeliberationConfig contains the review gate settings.
type DeliberationConfig struct {
	// Threshold is the impact score at or above which a message is
	// diverted to deliberation. Range (0,1]. Default: 0.8
	Threshold float64 `yaml:"threshold"`

	// Timeout bounds how long a message may wait for review before it is
	// denied with DELIBERATION_TIMEOUT. Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// Capacity bounds concurrently pending reviews. Default: 256
	Capacity int `yaml:"capacity"`

	// RequiredVotes is the minimum number of agent votes before
	// consensus can resolve a review. Default: 3
	RequiredVotes int `yaml:"required_votes"`

	// ConsensusThreshold is the approval fraction required for
	// vote-based resolution. Range (0,1]. Default: 0.66
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
}

// ImpactWeights are the factor weights of the heuristic impact scorer.
// The weights must sum to 1.0.
type ImpactWeights struct {
	// Semantic weighs risk keywords in content. Default: 0.30
	Semantic float64 `yaml:"semantic"`

	// Permission weighs privileged actions. Default: 0.20
	Permission float64 `yaml:"permission"`

	// Drift weighs behavioral drift signals. Default: 0.15
	Drift float64 `yaml:"drift"`

	// Volume weighs payload size. Default: 0.10
	Volume float64 `yaml:"volume"`

	// Context weighs conversation context signals. Default: 0.10
	Context float64 `yaml:"context"`

	// Priority weighs the message priority. Default: 0.10
	Priority float64 `yaml:"priority"`

	// Type weighs governance-sensitive message types. Default: 0.05
	Type float64 `yaml:"type"`
}

// Sum returns the total of all weights.
func (w ImpactWeights) Sum() float64 {
	return w.Semantic + w.Permission + w.Drift + w.Volume + w.Context + w.Priority + w.Type
}

// PolicyConfig contains the policy adapter layer settings.
type PolicyConfig struct {
	// Mode selects the adapter: "auto", "remote", "embedded", "fallback".
	// Auto prefers remote, then embedded, then fallback.
	// Default: "auto"
	Mode string `yaml:"mode"`

	// RemoteURL is the external policy decision point endpoint
	// (OPA-compatible data API). Required for mode "remote".
	RemoteURL string `yaml:"remote_url"`

	// RulesetPath is the embedded ruleset file. Required for mode
	// "embedded". The file is watched and hot-reloaded on change.
	RulesetPath string `yaml:"ruleset_path"`

	// ExternalTimeout bounds remote evaluation calls. Default: 5s
	ExternalTimeout time.Duration `yaml:"external_timeout"`

	// Cache configures the two-tier decision cache.
	Cache CacheConfig `yaml:"cache"`
}

// BreakerConfig contains circuit breaker settings.
type BreakerConfig struct {
	// FailureThreshold is the number of failures within the window that
	// opens the breaker. Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// FailureWindow is the sliding window over which failures are
	// counted. Default: 30s
	FailureWindow time.Duration `yaml:"failure_window"`

	// Cooldown is how long an open breaker rejects calls before
	// admitting half-open probes. Default: 15s
	Cooldown time.Duration `yaml:"cooldown"`

	// HalfOpenProbeBudget is the number of probe calls admitted in
	// HALF_OPEN before a verdict. Default: 1
	HalfOpenProbeBudget int `yaml:"half_open_probe_budget"`
}

// RegistryConfig contains agent registry settings.
type RegistryConfig struct {
	// RedisURL, when set, backs the registry with redis so multiple bus
	// instances share agent records. Empty keeps the in-memory registry.
	RedisURL string `yaml:"redis_url"`

	// HeartbeatTTL is how long a distributed registry entry survives
	// without a heartbeat. Default: 90s
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl"`
}

// HealthConfig contains health aggregation settings.
type HealthConfig struct {
	// DegradedThreshold is the score below which the system is DEGRADED.
	// Default: 0.9
	DegradedThreshold float64 `yaml:"degraded_threshold"`

	// CriticalThreshold is the score below which the system is CRITICAL.
	// Default: 0.5
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// SnapshotInterval is the period of the background snapshot loop.
	// Default: 1s
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// Window bounds the retained snapshot history. Default: 5m
	Window time.Duration `yaml:"window"`
}

// RecoveryConfig contains recovery orchestrator settings.
type RecoveryConfig struct {
	// Default is the policy applied to services without a specific one.
	Default RecoveryPolicyConfig `yaml:"default"`

	// PerService overrides the default policy for named services.
	PerService map[string]RecoveryPolicyConfig `yaml:"per_service"`
}

// RecoveryPolicyConfig describes one recovery policy.
type RecoveryPolicyConfig struct {
	// Strategy is one of "exponential", "linear", "immediate", "manual".
	// Default: "exponential"
	Strategy string `yaml:"strategy"`

	// MaxAttempts bounds recovery attempts before giving up. Default: 5
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the first retry delay. Default: 1s
	InitialDelay time.Duration `yaml:"initial_delay"`

	// BackoffMultiplier grows the delay for the exponential strategy.
	// Must be >= 1. Default: 2.0
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxDelay caps the delay for growing strategies. Default: 60s
	MaxDelay time.Duration `yaml:"max_delay"`
}

// ChaosConfig contains chaos engine settings.
type ChaosConfig struct {
	// Enabled permits scenario activation. Chaos is always compiled in
	// but refuses to activate when disabled. Default: false
	Enabled bool `yaml:"enabled"`

	// MaxDuration caps scenario duration. Hard ceiling 300s; higher
	// values are rejected at validation. Default: 300s
	MaxDuration time.Duration `yaml:"max_duration"`
}

// AuditConfig contains audit trail settings.
type AuditConfig struct {
	// Backend selects storage: "memory" or "sqlite". Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// QueueSize bounds the async entry queue; overflow drops the oldest
	// entry and increments the dropped counter. Default: 1024
	QueueSize int `yaml:"queue_size"`

	// Retention configures pruning of aged entries.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures audit retention pruning.
type RetentionConfig struct {
	// Days is the entry age ceiling. Zero disables pruning. Default: 30
	Days int `yaml:"days"`

	// Schedule is the cron expression of the prune job.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`
}

// MeteringConfig contains usage metering settings.
type MeteringConfig struct {
	// Enabled turns metering on. Default: true
	Enabled *bool `yaml:"enabled"`

	// QueueSize bounds the async event queue; overflow drops the oldest
	// event and increments the dropped counter. Default: 1024
	QueueSize int `yaml:"queue_size"`

	// LedgerPath, when set, persists aggregated usage to a sqlite ledger.
	LedgerPath string `yaml:"ledger_path"`

	// FlushInterval is the ledger persistence period. Default: 30s
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// IsEnabled reports whether metering runs. Unset means true.
func (m MeteringConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// IdentityConfig contains agent identity verification settings.
type IdentityConfig struct {
	// Enabled requires a verifiable security context on registration.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// JWTSecret is the HMAC secret used to verify registration tokens.
	// Required when Enabled is true.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer, when set, must match the token "iss" claim.
	Issuer string `yaml:"issuer"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`

	// Redact masks bearer tokens and full constitutional hashes in log
	// attributes. Default: true
	Redact *bool `yaml:"redact"`
}

// RedactEnabled reports whether sensitive attributes are masked.
// Unset means true.
func (l LoggingConfig) RedactEnabled() bool {
	return l.Redact == nil || *l.Redact
}

// MetricsConfig contains prometheus metrics settings.
type MetricsConfig struct {
	// Enabled turns metric collection on. Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace is the metric namespace. Default: "concord"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem. Default: "bus"
	Subsystem string `yaml:"subsystem"`

	// ListenAddress is the ops HTTP listener serving /metrics and the
	// health endpoints. Empty disables the listener.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`
}

// IsEnabled reports whether metric collection runs. Unset means true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	// Enabled turns span export on. Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the trace sampling ratio in [0,1]. Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName identifies this process in traces. Default: "concord"
	ServiceName string `yaml:"service_name"`
}
