// Package health aggregates circuit breaker state into one system
// score: CLOSED counts 1.0, HALF_OPEN 0.5, OPEN 0.0, averaged over
// every known service. The aggregator recomputes on each breaker
// transition and on a periodic snapshot loop, keeps a sliding window
// of recent scores, and notifies subscribers when the status changes.
package health
