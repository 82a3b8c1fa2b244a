package breaker

import "time"

// StateChange describes one breaker transition. Subscribers receive
// changes in the order they occur for a given breaker.
type StateChange struct {
	// Service is the guarded service name.
	Service string `json:"service"`

	// From is the state before the transition.
	From State `json:"from"`

	// To is the state after the transition.
	To State `json:"to"`

	// Reason explains the transition ("failure threshold reached",
	// "cooldown elapsed", "probe failed", or a forced-transition reason).
	Reason string `json:"reason"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}
