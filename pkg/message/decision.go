package message

import "time"

// DecisionLog is the governance record emitted for every processed message.
// Field names are consumed by audit storage and external compliance
// tooling; treat them as frozen.
type DecisionLog struct {
	TraceID            string         `json:"trace_id"`
	SpanID             string         `json:"span_id"`
	AgentID            string         `json:"agent_id"`
	TenantID           string         `json:"tenant_id"`
	PolicyVersion      string         `json:"policy_version"`
	RiskScore          float64        `json:"risk_score"`
	Decision           Decision       `json:"decision"`
	ConstitutionalHash string         `json:"constitutional_hash"`
	Timestamp          time.Time      `json:"timestamp"`
	ComplianceTags     []string       `json:"compliance_tags"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// NewDecisionLog builds a decision log stamped with the current UTC time.
// Trace and span IDs are filled by the processor from the active span.
func NewDecisionLog(agentID, tenantID string, decision Decision) *DecisionLog {
	return &DecisionLog{
		AgentID:            agentID,
		TenantID:           tenantID,
		Decision:           decision,
		ConstitutionalHash: DefaultConstitutionalHash,
		Timestamp:          time.Now().UTC(),
		ComplianceTags:     []string{},
	}
}

// Tag appends a compliance tag if not already present.
func (d *DecisionLog) Tag(tag string) {
	for _, t := range d.ComplianceTags {
		if t == tag {
			return
		}
	}
	d.ComplianceTags = append(d.ComplianceTags, tag)
}
