// Package config provides configuration management for the Concord agent bus.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.Load("concord.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadWithEnvOverrides("concord.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CONCORD_SECTION_FIELD.
// For example:
//
//   - CONCORD_BUS_WORKER_COUNT overrides bus.worker_count
//   - CONCORD_POLICY_REMOTE_URL overrides policy.remote_url
//   - CONCORD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Format checks (e.g., the constitutional hash must be 16 lowercase hex characters)
//   - Range validation (e.g., deliberation.threshold must be in (0, 1])
//   - Cross-field rules (e.g., health.critical_threshold must be below degraded_threshold)
//   - Invariant checks (e.g., impact weights must sum to 1.0, chaos.max_duration
//     must not exceed 300s)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - constitutional_hash: must be exactly 16 lowercase hex characters
//	  - deliberation.threshold: must be in (0, 1]
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	constitutional_hash: "cdd01ef066bc6cf2"
//
//	bus:
//	  worker_count: 4
//	  queue_capacity: 1024
//
//	policy:
//	  mode: "embedded"
//	  ruleset_path: "./rules.yaml"
//
//	audit:
//	  backend: "sqlite"
//	  sqlite_path: "data/audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// For testing, prefer config.Default() plus explicit field overrides rather
// than loading fixture files.
package config
