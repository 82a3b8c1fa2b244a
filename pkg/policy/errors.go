package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrNoBackend is returned when every backend in the cascade
	// failed. With the fallback registered this cannot happen outside
	// chaos experiments.
	ErrNoBackend = errors.New("no policy backend available")

	// ErrRulesetInvalid is the sentinel matched by ruleset load
	// failures.
	ErrRulesetInvalid = errors.New("invalid policy ruleset")
)

// RemoteError reports a failed call to the remote decision point.
type RemoteError struct {
	// Endpoint is the decision point URL.
	Endpoint string

	// StatusCode is the HTTP status, zero on transport failure.
	StatusCode int

	// Reason describes the failure.
	Reason string
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("policy decision point %s returned %d: %s", e.Endpoint, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("policy decision point %s unreachable: %s", e.Endpoint, e.Reason)
}

// RulesetError reports a ruleset that failed to load or parse.
type RulesetError struct {
	Path   string
	Reason string
}

func (e *RulesetError) Error() string {
	return fmt.Sprintf("policy ruleset %s: %s", e.Path, e.Reason)
}

// Is matches ErrRulesetInvalid.
func (e *RulesetError) Is(target error) bool {
	return target == ErrRulesetInvalid
}
