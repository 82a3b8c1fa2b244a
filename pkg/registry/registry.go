package registry

import (
	"context"
	"strings"
	"time"

	"concordlabs/concord/pkg/roles"
)

// AgentRecord describes one registered agent.
type AgentRecord struct {
	// AgentID uniquely identifies the agent on the bus.
	AgentID string `json:"agent_id"`

	// TenantID scopes the agent. Normalized to lowercase on
	// registration; empty means the default tenant.
	TenantID string `json:"tenant_id,omitempty"`

	// Capabilities are the message capabilities the agent advertises.
	Capabilities []string `json:"capabilities,omitempty"`

	// Role is the agent's governance role, when it holds one.
	Role roles.Role `json:"role,omitempty"`

	// Metadata carries free-form agent attributes.
	Metadata map[string]string `json:"metadata,omitempty"`

	// RegisteredAt is when the agent joined.
	RegisteredAt time.Time `json:"registered_at"`

	// LastSeen is the most recent heartbeat.
	LastSeen time.Time `json:"last_seen"`
}

// clone returns a deep copy of the record.
func (r *AgentRecord) clone() *AgentRecord {
	cp := *r
	if r.Capabilities != nil {
		cp.Capabilities = append([]string(nil), r.Capabilities...)
	}
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// HasCapability reports whether the agent advertises the capability.
func (r *AgentRecord) HasCapability(cap string) bool {
	for _, c := range r.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// NormalizeTenant canonicalizes a tenant id: trimmed and lowercased.
func NormalizeTenant(tenant string) string {
	return strings.ToLower(strings.TrimSpace(tenant))
}

// Registry is the agent record store. Both backends preserve the same
// contract: Register rejects duplicates atomically, reads return
// copies, and List is a point-in-time snapshot.
type Registry interface {
	// Register adds a new agent. Returns ErrAgentExists when the id is
	// already taken.
	Register(ctx context.Context, rec *AgentRecord) error

	// Unregister removes an agent. Returns ErrAgentNotFound when the
	// id is unknown.
	Unregister(ctx context.Context, agentID string) error

	// Get returns a copy of the agent's record.
	Get(ctx context.Context, agentID string) (*AgentRecord, error)

	// Exists reports whether the agent is registered.
	Exists(ctx context.Context, agentID string) (bool, error)

	// List returns a snapshot of registered agents, filtered by tenant
	// when tenant is non-empty.
	List(ctx context.Context, tenant string) ([]*AgentRecord, error)

	// UpdateMetadata replaces the agent's metadata.
	UpdateMetadata(ctx context.Context, agentID string, metadata map[string]string) error

	// Heartbeat records agent liveness.
	Heartbeat(ctx context.Context, agentID string, at time.Time) error

	// Len returns the number of registered agents.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
