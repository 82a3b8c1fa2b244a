package message

import (
	"time"

	"github.com/google/uuid"
)

// Message is the unit of work on the bus. Field names form the stable wire
// contract; do not rename JSON tags.
type Message struct {
	// ID uniquely identifies the message (UUID v4 by default).
	ID string `json:"message_id"`

	// ConversationID groups related messages. Messages sharing a
	// conversation are processed in FIFO order relative to each other.
	ConversationID string `json:"conversation_id,omitempty"`

	// FromAgent is the sending agent. Required.
	FromAgent string `json:"from_agent"`

	// ToAgent is the destination agent. Empty only for broadcasts.
	ToAgent string `json:"to_agent,omitempty"`

	// TenantID scopes the message to a tenant. Broadcasts never cross
	// tenant boundaries.
	TenantID string `json:"tenant_id,omitempty"`

	// Type categorizes the message intent.
	Type MessageType `json:"type"`

	// Priority orders queue drain. Defaults to MEDIUM.
	Priority Priority `json:"priority"`

	// Status is the lifecycle state. New messages start PENDING.
	Status Status `json:"status"`

	// Content is the human-readable body, screened for risk markers.
	Content string `json:"content,omitempty"`

	// Payload carries structured data. Unknown keys survive round-trips.
	Payload map[string]any `json:"payload,omitempty"`

	// Headers carry transport metadata.
	Headers map[string]string `json:"headers,omitempty"`

	// ConstitutionalHash is the hash this message claims compliance with.
	// Validated in constant time against the configured hash.
	ConstitutionalHash string `json:"constitutional_hash"`

	// Security identifies the sender principal, when identity
	// verification is enabled.
	Security *SecurityContext `json:"security_context,omitempty"`

	// Routing carries delivery parameters.
	Routing RoutingContext `json:"routing"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ExpiresAt, when set, is the instant after which the message must
	// not be processed. Nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New creates a message with generated ID, PENDING status, MEDIUM priority,
// the default constitutional hash, and current timestamps.
func New(from, to string, t MessageType) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:                 uuid.New().String(),
		FromAgent:          from,
		ToAgent:            to,
		Type:               t,
		Priority:           PriorityMedium,
		Status:             StatusPending,
		ConstitutionalHash: DefaultConstitutionalHash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Validate checks the structural fields required for any message to enter
// the bus. Destination presence is checked by the bus because broadcasts
// legitimately omit it.
func (m *Message) Validate() error {
	if m.ID == "" {
		return &FieldError{Field: "message_id", Reason: "required"}
	}
	if m.FromAgent == "" {
		return &FieldError{Field: "from_agent", Reason: "required"}
	}
	if !m.Type.Valid() {
		return &UnknownTypeError{Value: string(m.Type)}
	}
	if !m.Priority.Valid() {
		return &InvalidPriorityError{Value: m.Priority.String()}
	}
	if !m.Status.Valid() {
		return &FieldError{Field: "status", Reason: "unknown status " + string(m.Status)}
	}
	return nil
}

// Expired reports whether the message expiry has passed at the given
// instant. Messages without an expiry never expire.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// TransitionTo moves the message to the next lifecycle status, enforcing
// the status graph. UpdatedAt is bumped on success.
func (m *Message) TransitionTo(next Status) error {
	if !m.Status.CanTransition(next) {
		return &TransitionError{From: m.Status, To: next, MessageID: m.ID}
	}
	m.Status = next
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy. Broadcast fan-out clones per target so
// handlers cannot mutate a shared payload.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Payload != nil {
		cp.Payload = clonePayload(m.Payload)
	}
	if m.Headers != nil {
		cp.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			cp.Headers[k] = v
		}
	}
	if m.Security != nil {
		sec := m.Security.clone()
		cp.Security = sec
	}
	if m.Routing.Tags != nil {
		cp.Routing.Tags = append([]string(nil), m.Routing.Tags...)
	}
	if m.ExpiresAt != nil {
		exp := *m.ExpiresAt
		cp.ExpiresAt = &exp
	}
	return &cp
}

// DeriveResponse builds a RESPONSE message answering m: fresh ID, swapped
// endpoints, same conversation and tenant, PENDING status.
func (m *Message) DeriveResponse() *Message {
	resp := New(m.ToAgent, m.FromAgent, TypeResponse)
	resp.ConversationID = m.ConversationID
	resp.TenantID = m.TenantID
	resp.Priority = m.Priority
	resp.ConstitutionalHash = m.ConstitutionalHash
	resp.Headers = map[string]string{"in_reply_to": m.ID}
	return resp
}

// clonePayload copies one level of nesting for the common container types.
// Deeper structures are shared, which is acceptable because handlers treat
// payloads as read-only below the first level.
func clonePayload(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case map[string]any:
			inner := make(map[string]any, len(t))
			for ik, iv := range t {
				inner[ik] = iv
			}
			dst[k] = inner
		case []any:
			dst[k] = append([]any(nil), t...)
		default:
			dst[k] = v
		}
	}
	return dst
}
