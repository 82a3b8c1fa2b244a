package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry is the default in-process backend: a map guarded by a
// reader-writer mutex. Reads are concurrent; mutation is exclusive.
type MemoryRegistry struct {
	mu     sync.RWMutex
	agents map[string]*AgentRecord
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		agents: make(map[string]*AgentRecord),
	}
}

// Register adds a new agent atomically.
func (r *MemoryRegistry) Register(_ context.Context, rec *AgentRecord) error {
	if rec == nil || rec.AgentID == "" {
		return ErrInvalidRecord
	}

	stored := rec.clone()
	stored.TenantID = NormalizeTenant(stored.TenantID)
	now := time.Now().UTC()
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = now
	}
	if stored.LastSeen.IsZero() {
		stored.LastSeen = stored.RegisteredAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[stored.AgentID]; exists {
		return &ExistsError{AgentID: stored.AgentID}
	}
	r.agents[stored.AgentID] = stored
	return nil
}

// Unregister removes an agent.
func (r *MemoryRegistry) Unregister(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; !exists {
		return &NotFoundError{AgentID: agentID}
	}
	delete(r.agents, agentID)
	return nil
}

// Get returns a copy of the agent's record.
func (r *MemoryRegistry) Get(_ context.Context, agentID string) (*AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.agents[agentID]
	if !exists {
		return nil, &NotFoundError{AgentID: agentID}
	}
	return rec.clone(), nil
}

// Exists reports whether the agent is registered.
func (r *MemoryRegistry) Exists(_ context.Context, agentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.agents[agentID]
	return exists, nil
}

// List returns a snapshot of registered agents. The caller may iterate
// freely; no lock is held on the returned slice.
func (r *MemoryRegistry) List(_ context.Context, tenant string) ([]*AgentRecord, error) {
	tenant = NormalizeTenant(tenant)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		if tenant != "" && rec.TenantID != tenant {
			continue
		}
		out = append(out, rec.clone())
	}
	return out, nil
}

// UpdateMetadata replaces the agent's metadata.
func (r *MemoryRegistry) UpdateMetadata(_ context.Context, agentID string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.agents[agentID]
	if !exists {
		return &NotFoundError{AgentID: agentID}
	}
	rec.Metadata = make(map[string]string, len(metadata))
	for k, v := range metadata {
		rec.Metadata[k] = v
	}
	return nil
}

// Heartbeat records agent liveness.
func (r *MemoryRegistry) Heartbeat(_ context.Context, agentID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.agents[agentID]
	if !exists {
		return &NotFoundError{AgentID: agentID}
	}
	if at.After(rec.LastSeen) {
		rec.LastSeen = at
	}
	return nil
}

// Len returns the number of registered agents.
func (r *MemoryRegistry) Len(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents), nil
}

// Close is a no-op for the in-memory backend.
func (r *MemoryRegistry) Close() error {
	return nil
}
