package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"concordlabs/concord/pkg/message"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "bus.worker_count").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ErrorKind classifies configuration failures for callers that map
// errors to wire codes.
func (e ValidationError) ErrorKind() message.ErrorKind {
	return message.KindConfigInvalid
}

// weightTolerance absorbs float accumulation error when checking that
// impact weights sum to 1.0.
const weightTolerance = 1e-9

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if !message.ValidHashFormat(cfg.ConstitutionalHash) {
		errs = append(errs, FieldError{
			Field:   "constitutional_hash",
			Message: "must be exactly 16 lowercase hex characters",
		})
	}

	errs = append(errs, validateBus(&cfg.Bus)...)
	errs = append(errs, validateCache("validation.cache", &cfg.Validation.Cache)...)
	errs = append(errs, validateDeliberation(&cfg.Deliberation)...)
	errs = append(errs, validateWeights(&cfg.ImpactWeights)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateHealth(&cfg.Health)...)
	errs = append(errs, validateRecovery(&cfg.Recovery)...)
	errs = append(errs, validateChaos(&cfg.Chaos)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateMetering(&cfg.Metering)...)
	errs = append(errs, validateIdentity(&cfg.Identity)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateBus(cfg *BusConfig) []FieldError {
	var errs []FieldError

	if cfg.WorkerCount < 1 {
		errs = append(errs, FieldError{
			Field:   "bus.worker_count",
			Message: "must be at least 1",
		})
	}
	if cfg.QueueCapacity < 1 {
		errs = append(errs, FieldError{
			Field:   "bus.queue_capacity",
			Message: "must be at least 1",
		})
	}
	if cfg.InboxCapacity < 1 {
		errs = append(errs, FieldError{
			Field:   "bus.inbox_capacity",
			Message: "must be at least 1",
		})
	}
	if cfg.DefaultSendTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "bus.default_send_timeout",
			Message: "must be non-negative",
		})
	}
	if cfg.ShutdownDeadline <= 0 {
		errs = append(errs, FieldError{
			Field:   "bus.shutdown_deadline",
			Message: "must be positive",
		})
	}

	return errs
}

func validateCache(prefix string, cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.InMemorySize < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".in_memory_size",
			Message: "must be at least 1",
		})
	}
	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".ttl",
			Message: "must be positive",
		})
	}
	if cfg.DistributedURL != "" {
		if err := validateRedisURL(cfg.DistributedURL); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".distributed_url",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func validateDeliberation(cfg *DeliberationConfig) []FieldError {
	var errs []FieldError

	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		errs = append(errs, FieldError{
			Field:   "deliberation.threshold",
			Message: "must be in (0, 1]",
		})
	}
	if cfg.ConsensusThreshold <= 0 || cfg.ConsensusThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "deliberation.consensus_threshold",
			Message: "must be in (0, 1]",
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "deliberation.timeout",
			Message: "must be positive",
		})
	}
	if cfg.Capacity < 1 {
		errs = append(errs, FieldError{
			Field:   "deliberation.capacity",
			Message: "must be at least 1",
		})
	}
	if cfg.RequiredVotes < 1 {
		errs = append(errs, FieldError{
			Field:   "deliberation.required_votes",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateWeights(w *ImpactWeights) []FieldError {
	var errs []FieldError

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"semantic", w.Semantic},
		{"permission", w.Permission},
		{"drift", w.Drift},
		{"volume", w.Volume},
		{"context", w.Context},
		{"priority", w.Priority},
		{"type", w.Type},
	} {
		if f.value < 0 {
			errs = append(errs, FieldError{
				Field:   "impact_weights." + f.name,
				Message: "must be non-negative",
			})
		}
	}

	if math.Abs(w.Sum()-1.0) > weightTolerance {
		errs = append(errs, FieldError{
			Field:   "impact_weights",
			Message: fmt.Sprintf("weights must sum to 1.0, got %g", w.Sum()),
		})
	}

	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "auto", "remote", "embedded", "fallback":
	default:
		errs = append(errs, FieldError{
			Field:   "policy.mode",
			Message: fmt.Sprintf("invalid mode %q, must be one of: auto, remote, embedded, fallback", cfg.Mode),
		})
	}

	if cfg.Mode == "remote" && cfg.RemoteURL == "" {
		errs = append(errs, FieldError{
			Field:   "policy.remote_url",
			Message: "required when mode is \"remote\"",
		})
	}
	if cfg.Mode == "embedded" && cfg.RulesetPath == "" {
		errs = append(errs, FieldError{
			Field:   "policy.ruleset_path",
			Message: "required when mode is \"embedded\"",
		})
	}

	if cfg.RemoteURL != "" {
		u, err := url.Parse(cfg.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "policy.remote_url",
				Message: "must be a valid http or https URL",
			})
		}
	}

	if cfg.ExternalTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.external_timeout",
			Message: "must be positive",
		})
	}

	errs = append(errs, validateCache("policy.cache", &cfg.Cache)...)

	return errs
}

func validateBreaker(cfg *BreakerConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_threshold",
			Message: "must be at least 1",
		})
	}
	if cfg.FailureWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_window",
			Message: "must be positive",
		})
	}
	if cfg.Cooldown <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.cooldown",
			Message: "must be positive",
		})
	}
	if cfg.HalfOpenProbeBudget < 1 {
		errs = append(errs, FieldError{
			Field:   "breaker.half_open_probe_budget",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	if cfg.RedisURL != "" {
		if err := validateRedisURL(cfg.RedisURL); err != nil {
			errs = append(errs, FieldError{
				Field:   "registry.redis_url",
				Message: err.Error(),
			})
		}
	}
	if cfg.HeartbeatTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "registry.heartbeat_ttl",
			Message: "must be positive",
		})
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if cfg.DegradedThreshold <= 0 || cfg.DegradedThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "health.degraded_threshold",
			Message: "must be in (0, 1]",
		})
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "health.critical_threshold",
			Message: "must be in (0, 1]",
		})
	}
	if cfg.CriticalThreshold >= cfg.DegradedThreshold {
		errs = append(errs, FieldError{
			Field:   "health.critical_threshold",
			Message: "must be below degraded_threshold",
		})
	}
	if cfg.SnapshotInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.snapshot_interval",
			Message: "must be positive",
		})
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.window",
			Message: "must be positive",
		})
	}

	return errs
}

func validateRecovery(cfg *RecoveryConfig) []FieldError {
	errs := validateRecoveryPolicy("recovery.default", &cfg.Default)
	for name, policy := range cfg.PerService {
		p := policy
		errs = append(errs, validateRecoveryPolicy("recovery.per_service."+name, &p)...)
	}
	return errs
}

func validateRecoveryPolicy(prefix string, cfg *RecoveryPolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Strategy {
	case "exponential", "linear", "immediate", "manual":
	default:
		errs = append(errs, FieldError{
			Field:   prefix + ".strategy",
			Message: fmt.Sprintf("invalid strategy %q, must be one of: exponential, linear, immediate, manual", cfg.Strategy),
		})
	}

	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".max_attempts",
			Message: "must be at least 1",
		})
	}
	if cfg.InitialDelay <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".initial_delay",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMultiplier < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".backoff_multiplier",
			Message: "must be at least 1",
		})
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		errs = append(errs, FieldError{
			Field:   prefix + ".max_delay",
			Message: "must be at least initial_delay",
		})
	}

	return errs
}

func validateChaos(cfg *ChaosConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxDuration <= 0 {
		errs = append(errs, FieldError{
			Field:   "chaos.max_duration",
			Message: "must be positive",
		})
	}
	if cfg.MaxDuration > DefaultChaosCeiling {
		errs = append(errs, FieldError{
			Field:   "chaos.max_duration",
			Message: "must not exceed 300s",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q, must be one of: memory, sqlite", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite_path",
			Message: "required when backend is \"sqlite\"",
		})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.queue_size",
			Message: "must be at least 1",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "must be non-negative",
		})
	}
	if cfg.Retention.Days > 0 {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateMetering(cfg *MeteringConfig) []FieldError {
	var errs []FieldError

	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "metering.queue_size",
			Message: "must be at least 1",
		})
	}
	if cfg.FlushInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "metering.flush_interval",
			Message: "must be positive",
		})
	}

	return errs
}

func validateIdentity(cfg *IdentityConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.JWTSecret == "" {
		errs = append(errs, FieldError{
			Field:   "identity.jwt_secret",
			Message: "required when identity verification is enabled",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q, must be one of: json, text", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be in [0, 1]",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "required when tracing is enabled",
		})
	}

	return errs
}

// validateRedisURL checks that a distributed cache or registry URL uses
// a scheme go-redis can dial.
func validateRedisURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %v", err)
	}
	switch u.Scheme {
	case "redis", "rediss", "unix":
		return nil
	default:
		return fmt.Errorf("unsupported scheme %q, must be redis, rediss, or unix", u.Scheme)
	}
}
