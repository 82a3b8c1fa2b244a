// Package breaker implements the circuit breakers guarding the bus's
// external collaborators.
//
// Each breaker is a three-state machine. CLOSED admits calls and
// counts failures over a sliding window; crossing the threshold opens
// it. OPEN rejects calls fast until the cooldown elapses, then admits
// a bounded budget of HALF_OPEN probes. All probes succeeding closes
// the breaker; any failure reopens it with a fresh cooldown.
//
// Breakers emit a StateChange event on every transition. The health
// aggregator derives the system health score from these events, and
// the recovery orchestrator schedules probe attempts from them. The
// chaos engine and the orchestrator drive transitions directly through
// ForceOpen, ForceClose, and Probe.
package breaker
