package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "concord.yaml")

	configContent := `
constitutional_hash: "cdd01ef066bc6cf2"

bus:
  worker_count: 8
  queue_capacity: 2048
  default_send_timeout: "10s"

validation:
  role_strict_mode: false

deliberation:
  threshold: 0.75
  timeout: "120s"

policy:
  mode: "embedded"
  ruleset_path: "./rules.yaml"

audit:
  backend: "sqlite"
  sqlite_path: "./test-audit.db"

telemetry:
  logging:
    level: "debug"
    format: "text"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Bus.WorkerCount != 8 {
		t.Errorf("expected worker count 8, got %d", cfg.Bus.WorkerCount)
	}
	if cfg.Bus.QueueCapacity != 2048 {
		t.Errorf("expected queue capacity 2048, got %d", cfg.Bus.QueueCapacity)
	}
	if cfg.Bus.DefaultSendTimeout != 10*time.Second {
		t.Errorf("expected send timeout %v, got %v", 10*time.Second, cfg.Bus.DefaultSendTimeout)
	}
	if cfg.Validation.StrictRoles() {
		t.Error("expected strict mode disabled by explicit false")
	}
	if !cfg.Validation.ScreenContent() {
		t.Error("expected content screening to default to true when absent")
	}
	if cfg.Deliberation.Threshold != 0.75 {
		t.Errorf("expected deliberation threshold 0.75, got %g", cfg.Deliberation.Threshold)
	}
	if cfg.Policy.Mode != "embedded" {
		t.Errorf("expected policy mode %q, got %q", "embedded", cfg.Policy.Mode)
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("expected audit backend %q, got %q", "sqlite", cfg.Audit.Backend)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}

	// Fields absent from the file pick up defaults.
	if cfg.Bus.InboxCapacity != DefaultInboxCapacity {
		t.Errorf("expected default inbox capacity %d, got %d", DefaultInboxCapacity, cfg.Bus.InboxCapacity)
	}
	if cfg.ImpactWeights.Sum() != 1.0 {
		t.Errorf("expected default impact weights to sum to 1.0, got %g", cfg.ImpactWeights.Sum())
	}
	if cfg.Breaker.FailureThreshold != DefaultFailureLimit {
		t.Errorf("expected default failure threshold %d, got %d", DefaultFailureLimit, cfg.Breaker.FailureThreshold)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/concord.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("expected read failure error, got: %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "concord.yaml")

	malformedContent := `
bus:
  worker_count: 4
  invalid yaml here: [
`

	if err := os.WriteFile(configPath, []byte(malformedContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse configuration file") {
		t.Errorf("expected parse failure error, got: %v", err)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "concord.yaml")

	configContent := `
constitutional_hash: "NOT-A-HASH"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "constitutional_hash") {
		t.Errorf("expected constitutional_hash in error, got: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "concord.yaml")

	configContent := `
bus:
  worker_count: 4

telemetry:
  logging:
    level: "info"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONCORD_BUS_WORKER_COUNT", "16")
	t.Setenv("CONCORD_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("CONCORD_METERING_ENABLED", "false")
	t.Setenv("CONCORD_POLICY_MODE", "fallback")

	cfg, err := LoadWithEnvOverrides(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Bus.WorkerCount != 16 {
		t.Errorf("expected env override worker count 16, got %d", cfg.Bus.WorkerCount)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected env override level %q, got %q", "warn", cfg.Telemetry.Logging.Level)
	}
	if cfg.Metering.IsEnabled() {
		t.Error("expected metering disabled by env override")
	}
	if cfg.Policy.Mode != "fallback" {
		t.Errorf("expected env override policy mode %q, got %q", "fallback", cfg.Policy.Mode)
	}
}

func TestLoadWithEnvOverrides_InvalidOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "concord.yaml")

	if err := os.WriteFile(configPath, []byte("bus:\n  worker_count: 4\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// An override that breaks validation fails the load.
	t.Setenv("CONCORD_POLICY_MODE", "oracle")

	_, err := LoadWithEnvOverrides(configPath)
	if err == nil {
		t.Fatal("expected validation error after env override")
	}
	if !strings.Contains(err.Error(), "policy.mode") {
		t.Errorf("expected policy.mode in error, got: %v", err)
	}
}
