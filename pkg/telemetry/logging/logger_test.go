package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(Config{Format: "logfmt"})
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "invalid log format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Component("bus").Info("message accepted", "message_id", "m-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "message accepted" {
		t.Errorf("expected msg %q, got %v", "message accepted", entry["msg"])
	}
	if entry["component"] != "bus" {
		t.Errorf("expected component %q, got %v", "bus", entry["component"])
	}
	if entry["message_id"] != "m-1" {
		t.Errorf("expected message_id %q, got %v", "m-1", entry["message_id"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got: %s", buf.String())
	}

	logger.Warn("audible")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Redact: true, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("agent registered", "auth_token", "super-secret-value-123")

	out := buf.String()
	if strings.Contains(out, "super-secret-value-123") {
		t.Errorf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "supe***") {
		t.Errorf("expected masked value prefix, got: %s", out)
	}
}

func TestLogger_TrimsConstitutionalHash(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Redact: true, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("validation failed", "expected_hash", "cdd01ef066bc6cf2")

	out := buf.String()
	if strings.Contains(out, "cdd01ef066bc6cf2") {
		t.Errorf("full hash leaked into log output: %s", out)
	}
	if !strings.Contains(out, "cdd01ef0…") {
		t.Errorf("expected sanitized hash prefix, got: %s", out)
	}
}

func TestLogger_RedactionSurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Redact: true, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	derived := logger.With("hash", "cdd01ef066bc6cf2")
	derived.Info("derived logger")

	out := buf.String()
	if strings.Contains(out, "cdd01ef066bc6cf2") {
		t.Errorf("full hash leaked through derived logger: %s", out)
	}
}
