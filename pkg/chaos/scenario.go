package chaos

import (
	"time"

	"concordlabs/concord/pkg/message"
)

// Kind is the fault family a scenario injects.
type Kind string

const (
	// KindLatency delays calls to the target.
	KindLatency Kind = "LATENCY"
	// KindError fails a fraction of calls to the target.
	KindError Kind = "ERROR"
	// KindCircuitOpen forces the target's breaker open.
	KindCircuitOpen Kind = "CIRCUIT_OPEN"
	// KindResource simulates resource exhaustion at the target.
	KindResource Kind = "RESOURCE_EXHAUSTION"
)

// Valid reports whether k is a known scenario kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLatency, KindError, KindCircuitOpen, KindResource:
		return true
	}
	return false
}

// Duration and latency ceilings. MaxDuration is a hard bound: no
// configuration can raise it.
const (
	MaxDuration = 300 * time.Second
	MaxLatency  = 5 * time.Second
)

// Scenario describes one fault injection. Scenarios are immutable
// after activation; self-cleanup is driven by a timer.
type Scenario struct {
	// Name uniquely identifies the scenario among active ones.
	Name string `json:"name"`

	// Kind is the fault family.
	Kind Kind `json:"kind"`

	// Target is the service the fault applies to.
	Target string `json:"target"`

	// BlastRadius is the set of services the scenario may touch.
	// Empty defaults to {Target}. Injection never applies outside it.
	BlastRadius []string `json:"blast_radius,omitempty"`

	// Latency is the injected delay for LATENCY scenarios. Capped at
	// MaxLatency.
	Latency time.Duration `json:"latency,omitempty"`

	// ErrorRate is the failure fraction for ERROR scenarios, in [0,1].
	ErrorRate float64 `json:"error_rate,omitempty"`

	// ErrorKind names the injected error for ERROR scenarios.
	ErrorKind string `json:"error_kind,omitempty"`

	// ResourceLevel is the exhaustion level for RESOURCE scenarios,
	// in [0,1].
	ResourceLevel float64 `json:"resource_level,omitempty"`

	// Duration bounds how long the scenario stays active. Capped at
	// MaxDuration.
	Duration time.Duration `json:"duration"`

	// ConstitutionalHash must match the engine's hash.
	ConstitutionalHash string `json:"constitutional_hash"`

	// ActivatedAt is set by the engine on activation.
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// validate checks scenario parameters against the engine's hash.
func (s *Scenario) validate(hash string) error {
	if s.Name == "" {
		return &ScenarioError{Field: "name", Reason: "required"}
	}
	if !s.Kind.Valid() {
		return &ScenarioError{Scenario: s.Name, Field: "kind", Reason: "unknown kind " + string(s.Kind)}
	}
	if s.Target == "" {
		return &ScenarioError{Scenario: s.Name, Field: "target", Reason: "required"}
	}
	if s.ConstitutionalHash != hash {
		return &ScenarioError{Scenario: s.Name, Field: "constitutional_hash",
			Reason: "got " + message.SanitizeHash(s.ConstitutionalHash) + ", want " + message.SanitizeHash(hash)}
	}
	if s.Duration <= 0 {
		return &ScenarioError{Scenario: s.Name, Field: "duration", Reason: "must be positive"}
	}
	if s.Duration > MaxDuration {
		return &ScenarioError{Scenario: s.Name, Field: "duration", Reason: "exceeds the 300s ceiling"}
	}

	switch s.Kind {
	case KindLatency:
		if s.Latency <= 0 {
			return &ScenarioError{Scenario: s.Name, Field: "latency", Reason: "must be positive"}
		}
		if s.Latency > MaxLatency {
			return &ScenarioError{Scenario: s.Name, Field: "latency", Reason: "exceeds the 5s ceiling"}
		}
	case KindError:
		if s.ErrorRate < 0 || s.ErrorRate > 1 {
			return &ScenarioError{Scenario: s.Name, Field: "error_rate", Reason: "must be in [0,1]"}
		}
	case KindResource:
		if s.ResourceLevel < 0 || s.ResourceLevel > 1 {
			return &ScenarioError{Scenario: s.Name, Field: "resource_level", Reason: "must be in [0,1]"}
		}
	}
	return nil
}

// applies reports whether the scenario may inject at the service,
// honoring the blast radius.
func (s *Scenario) applies(service string) bool {
	if len(s.BlastRadius) == 0 {
		return service == s.Target
	}
	for _, allowed := range s.BlastRadius {
		if allowed == service {
			return true
		}
	}
	return false
}
