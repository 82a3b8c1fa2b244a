package routing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/registry"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// droppable marks message types that may be shed when an inbox is
// full. Everything else surfaces an InboxFullError instead.
var droppable = map[message.MessageType]bool{
	message.TypeEvent:        true,
	message.TypeNotification: true,
	message.TypeHeartbeat:    true,
}

// LocalRouter resolves destinations against the agent registry and
// delivers into per-agent bounded inboxes it owns. Inboxes open on
// agent registration and close on unregistration.
type LocalRouter struct {
	registry registry.Registry
	capacity int

	mu      sync.RWMutex
	inboxes map[string]chan *message.Message

	bm     *metrics.BusMetrics
	logger *slog.Logger
}

// NewLocalRouter creates a router over the registry with the given
// per-agent inbox capacity. bm may be nil.
func NewLocalRouter(reg registry.Registry, inboxCapacity int, bm *metrics.BusMetrics) *LocalRouter {
	return &LocalRouter{
		registry: reg,
		capacity: inboxCapacity,
		inboxes:  make(map[string]chan *message.Message),
		bm:       bm,
		logger:   slog.Default().With("component", "routing.local"),
	}
}

// Open creates the agent's inbox. Opening an already-open inbox is a
// no-op.
func (r *LocalRouter) Open(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inboxes[agentID]; !ok {
		r.inboxes[agentID] = make(chan *message.Message, r.capacity)
	}
}

// Close discards the agent's inbox and any queued messages.
func (r *LocalRouter) Close(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inboxes, agentID)
}

// Route resolves the message's destination without delivering.
func (r *LocalRouter) Route(ctx context.Context, m *message.Message) (*Delivery, error) {
	if m.IsBroadcast() {
		targets, err := r.broadcastTargets(ctx, m)
		if err != nil {
			return nil, err
		}
		return &Delivery{Targets: targets, Broadcast: true}, nil
	}

	target := m.Routing.Target
	if target == "" {
		target = m.ToAgent
	}
	if target == "" {
		return nil, &RouteNotFoundError{TenantID: m.TenantID}
	}

	rec, err := r.registry.Get(ctx, target)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return nil, &RouteNotFoundError{AgentID: target, TenantID: m.TenantID}
		}
		return nil, err
	}
	// Tenant isolation: a message never crosses into another tenant.
	if m.TenantID != "" && rec.TenantID != registry.NormalizeTenant(m.TenantID) {
		return nil, &RouteNotFoundError{AgentID: target, TenantID: m.TenantID}
	}

	return &Delivery{Targets: []string{target}}, nil
}

// Targets returns the resolved agent ids.
func (r *LocalRouter) Targets(ctx context.Context, m *message.Message) ([]string, error) {
	d, err := r.Route(ctx, m)
	if err != nil {
		return nil, err
	}
	return d.Targets, nil
}

// Deliver resolves the destination and places the message into each
// target inbox. Fan-out delivers an addressed clone per target; a
// single-target delivery hands over the message itself.
func (r *LocalRouter) Deliver(ctx context.Context, m *message.Message) error {
	d, err := r.Route(ctx, m)
	if err != nil {
		return err
	}

	if !d.Broadcast {
		target := d.Targets[0]
		return r.push(target, m)
	}

	for _, target := range d.Targets {
		cp := m.Clone()
		cp.ToAgent = target
		if err := r.push(target, cp); err != nil {
			// Fan-out is best-effort per target: one congested or
			// departed agent never blocks the rest.
			r.bm.RecordBroadcast("dropped")
			r.logger.Warn("broadcast delivery dropped",
				"message_id", m.ID, "target", target, "error", err)
			continue
		}
		r.bm.RecordBroadcast("delivered")
	}
	return nil
}

// Receive pops the next message from the agent's inbox, waiting up to
// timeout. A zero timeout waits until the context ends.
func (r *LocalRouter) Receive(ctx context.Context, agentID string, timeout time.Duration) (*message.Message, error) {
	r.mu.RLock()
	ch, ok := r.inboxes[agentID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrInboxClosed
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case m := <-ch:
		return m, nil
	case <-expired:
		return nil, ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InboxDepth returns the number of queued messages for an agent.
func (r *LocalRouter) InboxDepth(agentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.inboxes[agentID])
}

// broadcastTargets lists the sender's tenant peers, never the sender.
func (r *LocalRouter) broadcastTargets(ctx context.Context, m *message.Message) ([]string, error) {
	records, err := r.registry.List(ctx, registry.NormalizeTenant(m.TenantID))
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.AgentID == m.FromAgent {
			continue
		}
		targets = append(targets, rec.AgentID)
	}
	return targets, nil
}

// push places a message into one inbox. Full inboxes shed the oldest
// queued message for droppable types and reject everything else.
func (r *LocalRouter) push(agentID string, m *message.Message) error {
	r.mu.RLock()
	ch, ok := r.inboxes[agentID]
	r.mu.RUnlock()
	if !ok {
		return &RouteNotFoundError{AgentID: agentID, TenantID: m.TenantID}
	}

	select {
	case ch <- m:
		return nil
	default:
	}

	if !droppable[m.Type] {
		return &InboxFullError{AgentID: agentID, Capacity: r.capacity}
	}

	// Shed the oldest entry, then retry once. A concurrent receiver
	// may have already made room.
	select {
	case dropped := <-ch:
		r.logger.Warn("inbox full, oldest message dropped",
			"agent_id", agentID, "dropped_message_id", dropped.ID)
	default:
	}
	select {
	case ch <- m:
		return nil
	default:
		return &InboxFullError{AgentID: agentID, Capacity: r.capacity}
	}
}
