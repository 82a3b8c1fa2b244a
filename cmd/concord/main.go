// Concord is a governed message bus for multi-agent systems.
//
// Every message crossing the bus is validated against the active
// constitution, checked against the sender's governance role, scored
// for impact, and routed through deliberation when the score demands
// review. The runtime carries circuit breakers, health aggregation,
// recovery orchestration, a chaos engine, and an append-only audit
// trail.
//
// Usage:
//
//	# Start the bus with default configuration
//	concord run
//
//	# Start with a configuration file
//	concord run --config /etc/concord/config.yaml
//
//	# Validate a configuration file without starting
//	concord validate --config /etc/concord/config.yaml
//
//	# Show version information
//	concord version
package main

func main() {
	Execute()
}
