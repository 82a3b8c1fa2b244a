package tracing

import (
	"go.opentelemetry.io/otel/attribute"

	"concordlabs/concord/pkg/message"
)

// Attribute keys for bus spans.
const (
	AttrMessageID      = "concord.message_id"
	AttrConversationID = "concord.conversation_id"
	AttrFromAgent      = "concord.from_agent"
	AttrToAgent        = "concord.to_agent"
	AttrTenantID       = "concord.tenant_id"
	AttrMessageType    = "concord.message_type"
	AttrPriority       = "concord.priority"
	AttrStatus         = "concord.status"
	AttrHash           = "concord.constitutional_hash"
	AttrDecision       = "concord.decision"
	AttrImpactScore    = "concord.impact_score"
)

// MessageAttributes returns the span attributes for a message. The
// constitutional hash is recorded in sanitized form only.
func MessageAttributes(m *message.Message) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMessageID, m.ID),
		attribute.String(AttrFromAgent, m.FromAgent),
		attribute.String(AttrMessageType, string(m.Type)),
		attribute.String(AttrPriority, m.Priority.String()),
		attribute.String(AttrHash, message.SanitizeHash(m.ConstitutionalHash)),
	}
	if m.ToAgent != "" {
		attrs = append(attrs, attribute.String(AttrToAgent, m.ToAgent))
	}
	if m.ConversationID != "" {
		attrs = append(attrs, attribute.String(AttrConversationID, m.ConversationID))
	}
	if m.TenantID != "" {
		attrs = append(attrs, attribute.String(AttrTenantID, m.TenantID))
	}
	return attrs
}

// DecisionAttributes returns the span attributes for a governance
// decision.
func DecisionAttributes(decision string, impactScore float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDecision, decision),
		attribute.Float64(AttrImpactScore, impactScore),
	}
}
