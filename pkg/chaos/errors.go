package chaos

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrDisabled is returned when activating a scenario while the
	// chaos engine is disabled by configuration.
	ErrDisabled = errors.New("chaos engine disabled")

	// ErrEmergencyStopped is returned when activating a scenario after
	// an emergency stop, before Reset.
	ErrEmergencyStopped = errors.New("chaos engine emergency-stopped")

	// ErrScenarioExists is returned when an active scenario already
	// holds the name.
	ErrScenarioExists = errors.New("scenario already active")

	// ErrScenarioInvalid is the sentinel matched by any scenario
	// parameter failure.
	ErrScenarioInvalid = errors.New("invalid chaos scenario")
)

// ScenarioError reports an invalid scenario parameter.
type ScenarioError struct {
	Scenario string
	Field    string
	Reason   string
}

func (e *ScenarioError) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("chaos scenario %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("chaos scenario %s: %s: %s", e.Scenario, e.Field, e.Reason)
}

// Is matches ErrScenarioInvalid.
func (e *ScenarioError) Is(target error) bool {
	return target == ErrScenarioInvalid
}

// InjectedError is the error produced by an ERROR scenario.
type InjectedError struct {
	Scenario string
	Service  string
	Kind     string
}

func (e *InjectedError) Error() string {
	return fmt.Sprintf("chaos-injected %s error at %s (scenario %s)", e.Kind, e.Service, e.Scenario)
}
