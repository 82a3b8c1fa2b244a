// Package policy adapts external policy engines to the bus.
//
// Three backends implement the same Adapter contract: a remote HTTP
// decision point (OPA-compatible wire shape), an embedded declarative
// YAML ruleset with hot reload, and a static fallback that is always
// available. The Gateway cascades across them in order (remote, then
// embedded, then fallback), guarding each with its own circuit breaker, and
// marks any non-primary verdict as degraded so callers can detect it.
//
// Decisions are cached in two tiers: an in-memory LRU and an optional
// shared redis tier. Cache keys incorporate the constitutional hash,
// so a constitution change never serves stale verdicts. Concurrent
// misses for the same key collapse into one backend call.
package policy
