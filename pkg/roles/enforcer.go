package roles

import (
	"log/slog"
	"sync"

	"concordlabs/concord/pkg/message"
)

// maxTrackedOutputs bounds the output ownership table. The oldest
// entries are evicted first; validating very old outputs then falls
// back to the target-agent role check.
const maxTrackedOutputs = 4096

// Enforcer assigns roles to agents and authorizes governed actions
// against the fixed whitelists. All methods are safe for concurrent
// use.
type Enforcer struct {
	mu          sync.RWMutex
	assignments map[string]Role
	table       map[message.MessageType]Action

	// outputs maps output ids to the agent that produced them, used
	// for the anti-self-validation check. order drives FIFO eviction.
	outputs map[string]string
	order   []string

	logger *slog.Logger
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithActionTable replaces the default message-type-to-action table.
// Types missing from the table derive QUERY.
func WithActionTable(table map[message.MessageType]Action) Option {
	return func(e *Enforcer) {
		if len(table) > 0 {
			e.table = table
		}
	}
}

// NewEnforcer creates an enforcer with the default action table.
func NewEnforcer(opts ...Option) *Enforcer {
	e := &Enforcer{
		assignments: make(map[string]Role),
		table:       DefaultActionTable(),
		outputs:     make(map[string]string),
		logger:      slog.Default().With("component", "roles.enforcer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assign gives an agent its role. An agent holds at most one role;
// reassignment is rejected so a compromised agent cannot switch
// branches.
func (e *Enforcer) Assign(agentID string, r Role) error {
	if !r.Valid() {
		return &ViolationError{AgentID: agentID, Role: r, Reason: "unknown role"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.assignments[agentID]; ok {
		if existing == r {
			return nil
		}
		return ErrAlreadyAssigned
	}
	e.assignments[agentID] = r
	return nil
}

// Unassign removes an agent's role, typically on unregistration.
func (e *Enforcer) Unassign(agentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.assignments, agentID)
}

// RoleOf returns the agent's role, if assigned.
func (e *Enforcer) RoleOf(agentID string) (Role, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.assignments[agentID]
	return r, ok
}

// ActionFor derives the governed action for a message type. Types
// missing from the table derive QUERY.
func (e *Enforcer) ActionFor(t message.MessageType) Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if a, ok := e.table[t]; ok {
		return a
	}
	return ActionQuery
}

// RecordOutput remembers which agent produced an output, so a later
// VALIDATE of that output can be checked against its producer.
func (e *Enforcer) RecordOutput(agentID, outputID string) {
	if agentID == "" || outputID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.outputs[outputID]; !ok {
		e.order = append(e.order, outputID)
		if len(e.order) > maxTrackedOutputs {
			evict := e.order[0]
			e.order = e.order[1:]
			delete(e.outputs, evict)
		}
	}
	e.outputs[outputID] = agentID
}

// ProducerOf returns the agent that produced an output, if tracked.
func (e *Enforcer) ProducerOf(outputID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.outputs[outputID]
	return p, ok
}

// Authorize checks an action for an agent. target names the agent whose
// output is being acted on; it matters only for VALIDATE. A returned
// error is always a *ViolationError; the caller decides whether strict
// mode makes it fatal.
func (e *Enforcer) Authorize(agentID string, action Action, target string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	role, ok := e.assignments[agentID]
	if !ok {
		return &ViolationError{AgentID: agentID, Action: action, Reason: "no role assigned"}
	}
	if !role.Allows(action) {
		return &ViolationError{AgentID: agentID, Role: role, Action: action, Reason: "action not in role whitelist"}
	}

	if action == ActionValidate {
		return e.checkValidationTarget(agentID, role, target)
	}
	return nil
}

// AuthorizeMessage derives the action from the message type and
// authorizes the sender. For validations, the logical target is the
// producer of the referenced output when the payload names one
// (payload key "output_id"), otherwise the destination agent.
func (e *Enforcer) AuthorizeMessage(m *message.Message) error {
	action := e.ActionFor(m.Type)

	target := m.ToAgent
	if action == ActionValidate {
		if outputID, ok := m.Payload["output_id"].(string); ok {
			if producer, found := e.ProducerOf(outputID); found {
				target = producer
			}
		}
	}
	return e.Authorize(m.FromAgent, action, target)
}

// checkValidationTarget enforces the anti-self-validation invariant.
// Callers hold at least the read lock.
func (e *Enforcer) checkValidationTarget(agentID string, role Role, target string) error {
	if target == "" {
		return nil
	}
	if target == agentID {
		return &ViolationError{AgentID: agentID, Role: role, Action: ActionValidate,
			Reason: "agents cannot validate their own output"}
	}

	targetRole, known := e.assignments[target]
	if !known {
		if len(e.assignments) > 0 {
			// Fail closed: an unknown validation target could be a
			// self-validation through an alias.
			return &ViolationError{AgentID: agentID, Role: role, Action: ActionValidate,
				Reason: "validation target " + target + " holds no role"}
		}
		return nil
	}
	if targetRole == Judicial {
		return &ViolationError{AgentID: agentID, Role: role, Action: ActionValidate,
			Reason: "judicial output is not subject to judicial validation"}
	}
	return nil
}
