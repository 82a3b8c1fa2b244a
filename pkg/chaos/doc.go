// Package chaos injects controlled faults into the bus for resilience
// testing.
//
// A scenario targets one service, carries a blast radius limiting
// which services it may touch, and self-deactivates when its duration
// elapses. Duration is hard-capped at five minutes regardless of
// configuration. Every scenario revalidates the constitutional hash at
// construction so chaos tooling cannot run against the wrong
// constitution.
//
// Hot-path checks (LatencyFor, ShouldError) are lock-free: the active
// scenario set is an immutable snapshot swapped atomically on every
// mutation. EmergencyStop deactivates everything at once and refuses
// new activations until Reset.
package chaos
