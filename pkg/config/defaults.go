package config

import (
	"time"

	"concordlabs/concord/pkg/message"
)

// Default values applied by ApplyDefaults. Kept as named constants so
// tests and documentation reference one source of truth.
const (
	DefaultWorkerCount     = 4
	DefaultQueueCapacity   = 1024
	DefaultSendTimeout     = 5 * time.Second
	DefaultShutdownGrace   = 30 * time.Second
	DefaultInboxCapacity   = 256
	DefaultCacheSize       = 1024
	DefaultCacheTTL        = 300 * time.Second
	DefaultDeliberation    = 0.8
	DefaultDeliberationTTL = 300 * time.Second
	DefaultReviewCapacity  = 256
	DefaultRequiredVotes   = 3
	DefaultConsensus       = 0.66
	DefaultExternalTimeout = 5 * time.Second
	DefaultFailureLimit    = 5
	DefaultFailureWindow   = 30 * time.Second
	DefaultCooldown        = 15 * time.Second
	DefaultProbeBudget     = 1
	DefaultHeartbeatTTL    = 90 * time.Second
	DefaultDegradedScore   = 0.9
	DefaultCriticalScore   = 0.5
	DefaultSnapshotEvery   = 1 * time.Second
	DefaultHealthWindow    = 5 * time.Minute
	DefaultMaxAttempts     = 5
	DefaultInitialDelay    = 1 * time.Second
	DefaultBackoffFactor   = 2.0
	DefaultMaxDelay        = 60 * time.Second
	DefaultChaosCeiling    = 300 * time.Second
	DefaultAuditQueue      = 1024
	DefaultRetentionDays   = 30
	DefaultCronSchedule    = "0 3 * * *"
	DefaultMeterQueue      = 1024
	DefaultFlushInterval   = 30 * time.Second
	DefaultSQLitePath      = "data/audit.db"
	DefaultPolicyMode      = "auto"
	DefaultAuditBackend    = "memory"
	DefaultStrategy        = "exponential"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultNamespace       = "concord"
	DefaultSubsystem       = "bus"
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultServiceName     = "concord"
	DefaultSampleRatio     = 1.0
)

// DefaultImpactWeights returns the factor weights used when none are
// configured. They sum to exactly 1.0.
func DefaultImpactWeights() ImpactWeights {
	return ImpactWeights{
		Semantic:   0.30,
		Permission: 0.20,
		Drift:      0.15,
		Volume:     0.10,
		Context:    0.10,
		Priority:   0.10,
		Type:       0.05,
	}
}

// ApplyDefaults fills zero-valued fields with defaults. It is called by
// Load after unmarshaling, and may be called directly on hand-built
// configs before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg.ConstitutionalHash == "" {
		cfg.ConstitutionalHash = message.DefaultConstitutionalHash
	}

	if cfg.Bus.WorkerCount == 0 {
		cfg.Bus.WorkerCount = DefaultWorkerCount
	}
	if cfg.Bus.QueueCapacity == 0 {
		cfg.Bus.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Bus.DefaultSendTimeout == 0 {
		cfg.Bus.DefaultSendTimeout = DefaultSendTimeout
	}
	if cfg.Bus.ShutdownDeadline == 0 {
		cfg.Bus.ShutdownDeadline = DefaultShutdownGrace
	}
	if cfg.Bus.InboxCapacity == 0 {
		cfg.Bus.InboxCapacity = DefaultInboxCapacity
	}

	if cfg.Validation.RoleStrictMode == nil {
		cfg.Validation.RoleStrictMode = boolPtr(true)
	}
	if cfg.Validation.ContentScreenEnabled == nil {
		cfg.Validation.ContentScreenEnabled = boolPtr(true)
	}
	applyCacheDefaults(&cfg.Validation.Cache)

	if cfg.Deliberation.Threshold == 0 {
		cfg.Deliberation.Threshold = DefaultDeliberation
	}
	if cfg.Deliberation.Timeout == 0 {
		cfg.Deliberation.Timeout = DefaultDeliberationTTL
	}
	if cfg.Deliberation.Capacity == 0 {
		cfg.Deliberation.Capacity = DefaultReviewCapacity
	}
	if cfg.Deliberation.RequiredVotes == 0 {
		cfg.Deliberation.RequiredVotes = DefaultRequiredVotes
	}
	if cfg.Deliberation.ConsensusThreshold == 0 {
		cfg.Deliberation.ConsensusThreshold = DefaultConsensus
	}

	if cfg.ImpactWeights.Sum() == 0 {
		cfg.ImpactWeights = DefaultImpactWeights()
	}

	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = DefaultPolicyMode
	}
	if cfg.Policy.ExternalTimeout == 0 {
		cfg.Policy.ExternalTimeout = DefaultExternalTimeout
	}
	applyCacheDefaults(&cfg.Policy.Cache)

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = DefaultFailureLimit
	}
	if cfg.Breaker.FailureWindow == 0 {
		cfg.Breaker.FailureWindow = DefaultFailureWindow
	}
	if cfg.Breaker.Cooldown == 0 {
		cfg.Breaker.Cooldown = DefaultCooldown
	}
	if cfg.Breaker.HalfOpenProbeBudget == 0 {
		cfg.Breaker.HalfOpenProbeBudget = DefaultProbeBudget
	}

	if cfg.Registry.HeartbeatTTL == 0 {
		cfg.Registry.HeartbeatTTL = DefaultHeartbeatTTL
	}

	if cfg.Health.DegradedThreshold == 0 {
		cfg.Health.DegradedThreshold = DefaultDegradedScore
	}
	if cfg.Health.CriticalThreshold == 0 {
		cfg.Health.CriticalThreshold = DefaultCriticalScore
	}
	if cfg.Health.SnapshotInterval == 0 {
		cfg.Health.SnapshotInterval = DefaultSnapshotEvery
	}
	if cfg.Health.Window == 0 {
		cfg.Health.Window = DefaultHealthWindow
	}

	applyRecoveryPolicyDefaults(&cfg.Recovery.Default)
	for name, policy := range cfg.Recovery.PerService {
		applyRecoveryPolicyDefaults(&policy)
		cfg.Recovery.PerService[name] = policy
	}

	if cfg.Chaos.MaxDuration == 0 {
		cfg.Chaos.MaxDuration = DefaultChaosCeiling
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultSQLitePath
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = DefaultAuditQueue
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = DefaultRetentionDays
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultCronSchedule
	}

	if cfg.Metering.Enabled == nil {
		cfg.Metering.Enabled = boolPtr(true)
	}
	if cfg.Metering.QueueSize == 0 {
		cfg.Metering.QueueSize = DefaultMeterQueue
	}
	if cfg.Metering.FlushInterval == 0 {
		cfg.Metering.FlushInterval = DefaultFlushInterval
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Logging.Redact == nil {
		cfg.Telemetry.Logging.Redact = boolPtr(true)
	}

	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultSubsystem
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultListenAddress
	}

	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultOTLPEndpoint
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.InMemorySize == 0 {
		c.InMemorySize = DefaultCacheSize
	}
	if c.TTL == 0 {
		c.TTL = DefaultCacheTTL
	}
}

func applyRecoveryPolicyDefaults(p *RecoveryPolicyConfig) {
	if p.Strategy == "" {
		p.Strategy = DefaultStrategy
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = DefaultBackoffFactor
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = DefaultMaxDelay
	}
}

// Default returns a configuration with every default applied. Useful as
// a starting point for tests and the validate command.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func boolPtr(v bool) *bool { return &v }
