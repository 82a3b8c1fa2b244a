// Package recovery brings opened circuit breakers back: a breaker OPEN
// transition schedules a task whose attempts follow the service's
// backoff policy (exponential, linear, immediate, or manual). Each due
// attempt moves the breaker to HALF_OPEN, runs the service's health
// probe, and either force-closes the breaker or reschedules until the
// attempt budget runs out.
package recovery
