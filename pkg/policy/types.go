package policy

import (
	"context"

	"concordlabs/concord/pkg/message"
)

// Mode identifies a policy backend.
type Mode string

const (
	// ModeRemote evaluates against an external policy decision point
	// over HTTP.
	ModeRemote Mode = "remote"
	// ModeEmbedded evaluates a declarative ruleset in-process.
	ModeEmbedded Mode = "embedded"
	// ModeFallback is the always-available static evaluator.
	ModeFallback Mode = "fallback"
)

// Input is the evaluation request handed to a policy backend.
type Input struct {
	// TenantID scopes the request.
	TenantID string `json:"tenant_id,omitempty"`

	// AgentID is the acting agent.
	AgentID string `json:"agent_id"`

	// Action is the governed action derived from the message type.
	Action string `json:"action"`

	// MessageType is the originating message type.
	MessageType message.MessageType `json:"message_type"`

	// Priority is the originating message priority.
	Priority message.Priority `json:"priority"`

	// Content is the message content under evaluation.
	Content string `json:"content,omitempty"`

	// ConstitutionalHash is the hash the message claims.
	ConstitutionalHash string `json:"constitutional_hash"`
}

// InputFromMessage builds an evaluation input for a message and its
// derived action.
func InputFromMessage(m *message.Message, action string) *Input {
	return &Input{
		TenantID:           m.TenantID,
		AgentID:            m.FromAgent,
		Action:             action,
		MessageType:        m.Type,
		Priority:           m.Priority,
		Content:            m.Content,
		ConstitutionalHash: m.ConstitutionalHash,
	}
}

// Decision is a policy verdict.
type Decision struct {
	// Allowed reports whether the action may proceed.
	Allowed bool `json:"allowed"`

	// Reasons explain the verdict.
	Reasons []string `json:"reasons,omitempty"`

	// Metadata carries backend details: policy_version, mode, and a
	// degraded flag when a fallback produced the verdict.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// meta records a metadata key, allocating the map lazily.
func (d *Decision) meta(key string, value any) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	d.Metadata[key] = value
}

// Degraded reports whether the decision came from a degraded backend.
func (d *Decision) Degraded() bool {
	v, _ := d.Metadata["degraded"].(bool)
	return v
}

// Adapter is one policy backend. Adapters must be safe for concurrent
// use.
type Adapter interface {
	// Evaluate returns the backend's verdict for the input.
	Evaluate(ctx context.Context, in *Input) (*Decision, error)

	// Score returns the impact score for a message, in [0,1].
	Score(ctx context.Context, m *message.Message) (float64, error)

	// Mode identifies the backend.
	Mode() Mode

	// Version is the active policy version, for decision logs.
	Version() string

	// Available reports whether the backend can currently serve.
	Available() bool
}
