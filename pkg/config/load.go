package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file at the specified path. It
// applies default values, validates the configuration, and returns any
// errors. The configuration is not modified by environment variables;
// use LoadWithEnvOverrides for that functionality.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the
// naming convention CONCORD_SECTION_FIELD (e.g., CONCORD_BUS_WORKER_COUNT).
// Environment variables always take precedence over file-based
// configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format CONCORD_SECTION_FIELD.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CONCORD_CONSTITUTIONAL_HASH"); val != "" {
		cfg.ConstitutionalHash = val
	}

	// Bus overrides
	if val := os.Getenv("CONCORD_BUS_WORKER_COUNT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Bus.WorkerCount = i
		}
	}
	if val := os.Getenv("CONCORD_BUS_QUEUE_CAPACITY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Bus.QueueCapacity = i
		}
	}
	if val := os.Getenv("CONCORD_BUS_DEFAULT_SEND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Bus.DefaultSendTimeout = d
		}
	}
	if val := os.Getenv("CONCORD_BUS_SHUTDOWN_DEADLINE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Bus.ShutdownDeadline = d
		}
	}

	// Validation overrides
	if val := os.Getenv("CONCORD_VALIDATION_ROLE_STRICT_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Validation.RoleStrictMode = boolPtr(b)
		}
	}
	if val := os.Getenv("CONCORD_VALIDATION_CONTENT_SCREEN_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Validation.ContentScreenEnabled = boolPtr(b)
		}
	}
	if val := os.Getenv("CONCORD_VALIDATION_CACHE_DISTRIBUTED_URL"); val != "" {
		cfg.Validation.Cache.DistributedURL = val
	}

	// Deliberation overrides
	if val := os.Getenv("CONCORD_DELIBERATION_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Deliberation.Threshold = f
		}
	}
	if val := os.Getenv("CONCORD_DELIBERATION_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Deliberation.Timeout = d
		}
	}

	// Policy overrides
	if val := os.Getenv("CONCORD_POLICY_MODE"); val != "" {
		cfg.Policy.Mode = val
	}
	if val := os.Getenv("CONCORD_POLICY_REMOTE_URL"); val != "" {
		cfg.Policy.RemoteURL = val
	}
	if val := os.Getenv("CONCORD_POLICY_RULESET_PATH"); val != "" {
		cfg.Policy.RulesetPath = val
	}
	if val := os.Getenv("CONCORD_POLICY_EXTERNAL_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Policy.ExternalTimeout = d
		}
	}
	if val := os.Getenv("CONCORD_POLICY_CACHE_DISTRIBUTED_URL"); val != "" {
		cfg.Policy.Cache.DistributedURL = val
	}

	// Registry overrides
	if val := os.Getenv("CONCORD_REGISTRY_REDIS_URL"); val != "" {
		cfg.Registry.RedisURL = val
	}

	// Chaos overrides
	if val := os.Getenv("CONCORD_CHAOS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Chaos.Enabled = b
		}
	}

	// Audit overrides
	if val := os.Getenv("CONCORD_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("CONCORD_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLitePath = val
	}

	// Metering overrides
	if val := os.Getenv("CONCORD_METERING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metering.Enabled = boolPtr(b)
		}
	}
	if val := os.Getenv("CONCORD_METERING_LEDGER_PATH"); val != "" {
		cfg.Metering.LedgerPath = val
	}

	// Identity overrides
	if val := os.Getenv("CONCORD_IDENTITY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Identity.Enabled = b
		}
	}
	if val := os.Getenv("CONCORD_IDENTITY_JWT_SECRET"); val != "" {
		cfg.Identity.JWTSecret = val
	}
	if val := os.Getenv("CONCORD_IDENTITY_ISSUER"); val != "" {
		cfg.Identity.Issuer = val
	}

	// Telemetry overrides
	if val := os.Getenv("CONCORD_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CONCORD_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CONCORD_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = boolPtr(b)
		}
	}
	if val := os.Getenv("CONCORD_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv("CONCORD_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("CONCORD_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("CONCORD_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
