package audit

import (
	"time"

	"github.com/google/uuid"

	"concordlabs/concord/pkg/message"
)

// Audit event names.
const (
	EventMessageProcessed     = "message_processed"
	EventDeliberationResolved = "deliberation_resolved"
	EventBreakerTransition    = "breaker_transition"
	EventChaosActivated       = "chaos_activated"
	EventChaosStopped         = "chaos_stopped"
	EventRecoveryAttempt      = "recovery_attempt"
)

// Entry is one immutable audit record. Field names are consumed by
// compliance tooling; treat them as frozen.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Event names what happened (message_processed,
	// deliberation_resolved, breaker_transition, ...).
	Event string `json:"event"`

	// Kind is the wire error kind when the event records a failure.
	Kind message.ErrorKind `json:"kind,omitempty"`

	// Decision is the governance record behind the event.
	Decision message.DecisionLog `json:"decision"`

	// OccurredAt is when the event happened, UTC.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEntry builds an entry with a fresh id, stamped with the current
// UTC time.
func NewEntry(event string, decision message.DecisionLog) *Entry {
	return &Entry{
		ID:         uuid.NewString(),
		Event:      event,
		Decision:   decision,
		OccurredAt: time.Now().UTC(),
	}
}

// Query filters stored entries. Zero-valued fields match everything.
type Query struct {
	// TenantID filters by the decision's tenant.
	TenantID string

	// AgentID filters by the decision's agent.
	AgentID string

	// Decision filters by verdict (ALLOW, DENY, REVIEW).
	Decision message.Decision

	// Since bounds occurred_at from below (inclusive).
	Since time.Time

	// Until bounds occurred_at from above (exclusive).
	Until time.Time

	// Limit bounds the result count; zero means no bound.
	Limit int
}

// matches reports whether an entry satisfies the query.
func (q Query) matches(e *Entry) bool {
	if q.TenantID != "" && e.Decision.TenantID != q.TenantID {
		return false
	}
	if q.AgentID != "" && e.Decision.AgentID != q.AgentID {
		return false
	}
	if q.Decision != "" && e.Decision.Decision != q.Decision {
		return false
	}
	if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.OccurredAt.Before(q.Until) {
		return false
	}
	return true
}
