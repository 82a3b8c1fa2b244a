package bus

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/audit"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/deliberation"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/metering"
	"concordlabs/concord/pkg/policy"
	"concordlabs/concord/pkg/processing"
	"concordlabs/concord/pkg/registry"
	"concordlabs/concord/pkg/roles"
	"concordlabs/concord/pkg/routing"
	"concordlabs/concord/pkg/security"
	"concordlabs/concord/pkg/strategy"
	"concordlabs/concord/pkg/telemetry/metrics"
	"concordlabs/concord/pkg/telemetry/tracing"
	"concordlabs/concord/pkg/validation"
)

// Options wire the bus facade. Registry, Enforcer, Validator, and
// Policy are required.
type Options struct {
	Config   config.BusConfig
	Registry registry.Registry
	Enforcer *roles.Enforcer

	// Verifier checks registration identity tokens. Nil or disabled
	// skips verification.
	Verifier *security.Verifier

	Validator validation.Validator
	Policy    policy.Adapter

	// Reviews enables the deliberation gate. The bus installs itself
	// as the resolver.
	Reviews *deliberation.Router

	// Extra strategies tried before the in-process baseline.
	Extra []strategy.Strategy

	Trail  *audit.Trail
	Meter  *metering.Meter
	Tracer *tracing.Tracer

	Bus        *metrics.BusMetrics
	Governance *metrics.GovernanceMetrics

	// Threshold is the deliberation gate score. Zero means default.
	Threshold float64

	// StrictRoles makes role violations fatal.
	StrictRoles bool

	// ConstitutionalHash backs the degraded-mode static check. Empty
	// means the built-in default.
	ConstitutionalHash string
}

// Bus is the agent-facing facade: registration, send, broadcast,
// receive, and handler registration, with a worker pool draining the
// admission queue through the governance pipeline.
type Bus struct {
	cfg       config.BusConfig
	registry  registry.Registry
	enforcer  *roles.Enforcer
	verifier  *security.Verifier
	router    *routing.LocalRouter
	processor *processing.Processor
	reviews   *deliberation.Router
	trail     *audit.Trail
	meter     *metering.Meter
	bm        *metrics.BusMetrics
	queue     *queue
	hash      string

	started  atomic.Bool
	stopped  atomic.Bool
	degraded atomic.Bool
	inflight atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// quit unblocks senders waiting on messages abandoned at shutdown.
	quit chan struct{}

	logger *slog.Logger
}

// Stats is a point-in-time view of bus load.
type Stats struct {
	// Queued counts admitted, not yet picked up messages.
	Queued int `json:"queued"`

	// InFlight counts messages currently held by workers.
	InFlight int64 `json:"in_flight"`

	// Processed counts terminal pipeline passes.
	Processed int64 `json:"processed"`

	// Failed counts failed or expired passes.
	Failed int64 `json:"failed"`

	// PerPriority breaks the queued count down by priority.
	PerPriority map[string]int `json:"per_priority"`

	// Degraded reports whether the static fallback path is active.
	Degraded bool `json:"degraded"`
}

// New builds the bus and its internal pipeline.
func New(opts Options) (*Bus, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", processing.ErrMissingCollaborator)
	}

	cfg := opts.Config
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 1024
	}
	if cfg.DefaultSendTimeout <= 0 {
		cfg.DefaultSendTimeout = 5 * time.Second
	}
	if cfg.ShutdownDeadline <= 0 {
		cfg.ShutdownDeadline = 30 * time.Second
	}
	if cfg.InboxCapacity < 1 {
		cfg.InboxCapacity = 256
	}

	hash := opts.ConstitutionalHash
	if hash == "" {
		hash = message.DefaultConstitutionalHash
	}

	b := &Bus{
		cfg:      cfg,
		registry: opts.Registry,
		enforcer: opts.Enforcer,
		verifier: opts.Verifier,
		reviews:  opts.Reviews,
		trail:    opts.Trail,
		meter:    opts.Meter,
		bm:       opts.Bus,
		hash:     hash,
		quit:     make(chan struct{}),
		logger:   slog.Default().With("component", "bus"),
	}
	b.router = routing.NewLocalRouter(opts.Registry, cfg.InboxCapacity, opts.Bus)
	b.queue = newQueue(cfg.QueueCapacity, opts.Bus)

	proc, err := processing.New(processing.Options{
		Validator:   opts.Validator,
		Enforcer:    opts.Enforcer,
		Policy:      opts.Policy,
		Reviews:     opts.Reviews,
		Extra:       opts.Extra,
		Deliver:     b.router.Deliver,
		Respond:     b.resend,
		Trail:       opts.Trail,
		Meter:       opts.Meter,
		Tracer:      opts.Tracer,
		Bus:         opts.Bus,
		Governance:  opts.Governance,
		Threshold:   opts.Threshold,
		StrictRoles: opts.StrictRoles,
	})
	if err != nil {
		return nil, err
	}
	b.processor = proc

	if opts.Reviews != nil {
		opts.Reviews.SetResolver(b.onResolution)
	}
	return b, nil
}

// Register adds an agent: identity check, registry entry, role
// assignment, inbox. A failed role assignment rolls the registry
// entry back so the two stores never diverge.
func (b *Bus) Register(ctx context.Context, rec *registry.AgentRecord, sc *message.SecurityContext) error {
	if b.verifier != nil && b.verifier.Enabled() {
		identity, err := b.verifier.Verify(sc)
		if err != nil {
			return fmt.Errorf("register %s: %w", rec.AgentID, err)
		}
		if identity.Principal != "" && identity.Principal != rec.AgentID {
			return fmt.Errorf("register %s: %w", rec.AgentID,
				&security.TokenError{Reason: "token subject does not match agent id"})
		}
	}

	if err := b.registry.Register(ctx, rec); err != nil {
		return err
	}
	if rec.Role != "" && b.enforcer != nil {
		if err := b.enforcer.Assign(rec.AgentID, rec.Role); err != nil {
			_ = b.registry.Unregister(ctx, rec.AgentID)
			return err
		}
	}
	b.router.Open(rec.AgentID)

	b.logger.Info("agent registered",
		"agent_id", rec.AgentID, "tenant_id", rec.TenantID, "role", string(rec.Role))
	return nil
}

// Unregister removes an agent and closes its inbox.
func (b *Bus) Unregister(ctx context.Context, agentID string) error {
	b.router.Close(agentID)
	if b.enforcer != nil {
		b.enforcer.Unassign(agentID)
	}
	if err := b.registry.Unregister(ctx, agentID); err != nil {
		return err
	}
	b.logger.Info("agent unregistered", "agent_id", agentID)
	return nil
}

// Send runs a message through the governance pipeline and returns the
// processed outcome: the terminal status, decision, and validation
// findings, with the message itself carrying its final status. Send
// blocks until the pipeline settles; admission waits up to the
// caller's deadline (or the default send timeout) when the queue is
// full. A non-nil outcome with a FAILED status is not an error: the
// verdict is the caller's to inspect.
func (b *Bus) Send(ctx context.Context, m *message.Message) (*processing.Outcome, error) {
	done := make(chan *processing.Outcome, 1)
	if err := b.admit(ctx, m, done); err != nil {
		return nil, err
	}

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.quit:
		return nil, ErrStopped
	}
}

// admit checks and enqueues a message. A nil done channel makes the
// pass fire-and-forget.
func (b *Bus) admit(ctx context.Context, m *message.Message, done chan *processing.Outcome) error {
	if !b.started.Load() {
		return ErrNotStarted
	}
	if b.stopped.Load() {
		return ErrStopped
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ToAgent == "" && !m.IsBroadcast() {
		return &message.FieldError{Field: "to_agent", Reason: "required"}
	}

	sender, err := b.registry.Get(ctx, m.FromAgent)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSenderUnknown, m.FromAgent)
	}
	if m.TenantID == "" {
		m.TenantID = sender.TenantID
	} else if registry.NormalizeTenant(m.TenantID) != sender.TenantID {
		return &TenantMismatchError{
			AgentID:    m.FromAgent,
			Declared:   m.TenantID,
			Registered: sender.TenantID,
		}
	}

	timeout := b.cfg.DefaultSendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := b.queue.push(ctx, m, timeout, done); err != nil {
		if _, ok := err.(*QueueFullError); ok {
			b.bm.RecordQueueFull()
		}
		return err
	}
	return nil
}

// Broadcast fans a message out to every same-tenant agent except the
// sender. The outcome covers the single broadcast pass; delivery to
// each recipient is a routing clone.
func (b *Bus) Broadcast(ctx context.Context, m *message.Message) (*processing.Outcome, error) {
	m.ToAgent = ""
	m.Routing.Key = message.BroadcastKey
	return b.Send(ctx, m)
}

// Receive pops the next delivered message for an agent, waiting up to
// timeout. A zero timeout waits until the context ends.
func (b *Bus) Receive(ctx context.Context, agentID string, timeout time.Duration) (*message.Message, error) {
	return b.router.Receive(ctx, agentID, timeout)
}

// OnMessage registers a handler for an agent. Handlers run in
// registration order on delivery.
func (b *Bus) OnMessage(agentID string, h processing.Handler) {
	b.processor.OnMessage(agentID, h)
}

// Start launches the worker pool. Idempotent.
func (b *Bus) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	for i := 0; i < b.cfg.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(runCtx)
	}
	b.logger.Info("bus started", "workers", b.cfg.WorkerCount, "queue_capacity", b.cfg.QueueCapacity)
	return nil
}

// Stop closes intake, drains the queue until the shutdown deadline,
// then cancels the workers and flushes the audit and metering sinks.
func (b *Bus) Stop(ctx context.Context) error {
	if !b.stopped.CompareAndSwap(false, true) {
		return nil
	}
	b.queue.close()

	deadline := time.Now().Add(b.cfg.ShutdownDeadline)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if b.queue.depth() == 0 && b.inflight.Load() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			deadline = time.Now()
		case <-ticker.C:
		}
	}
	if abandoned := b.queue.depth(); abandoned > 0 {
		b.logger.Warn("shutdown deadline reached", "abandoned", abandoned)
	}

	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	close(b.quit)

	if b.trail != nil {
		if err := b.trail.Stop(ctx); err != nil {
			b.logger.Warn("audit trail stop failed", "error", err)
		}
	}
	if b.meter != nil {
		if err := b.meter.Stop(ctx); err != nil {
			b.logger.Warn("meter stop failed", "error", err)
		}
	}
	b.logger.Info("bus stopped")
	return nil
}

// Stats snapshots bus load.
func (b *Bus) Stats() Stats {
	return Stats{
		Queued:      b.queue.depth(),
		InFlight:    b.inflight.Load(),
		Processed:   b.processor.Processed(),
		Failed:      b.processor.Failed(),
		PerPriority: b.queue.perPriority(),
		Degraded:    b.degraded.Load(),
	}
}

// Degraded reports whether the static fallback path has engaged.
func (b *Bus) Degraded() bool {
	return b.degraded.Load()
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		it, l, err := b.queue.pop(ctx)
		if err != nil {
			return
		}
		b.bm.RecordQueueWait(time.Since(it.enqueued))
		b.inflight.Add(1)
		out := b.process(ctx, it.msg)
		b.inflight.Add(-1)
		if it.done != nil {
			it.done <- out
		}
		l.release()
	}
}

// process runs one message through the pipeline, falling back to
// static validation when the pipeline itself breaks.
func (b *Bus) process(ctx context.Context, m *message.Message) (out *processing.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("processor panic", "message_id", m.ID, "panic", r)
			out = b.fallback(ctx, m)
		}
	}()

	out, err := b.processor.Process(ctx, m)
	if err != nil {
		b.logger.Error("processor failed", "message_id", m.ID, "error", err)
		out = b.fallback(ctx, m)
	}
	return out
}

// fallback is the degraded path: a static constitutional check and
// best-effort delivery. The fallback reason is redacted; internal
// pipeline errors never reach agents.
func (b *Bus) fallback(ctx context.Context, m *message.Message) *processing.Outcome {
	if b.degraded.CompareAndSwap(false, true) {
		b.logger.Warn("governance pipeline unavailable, entering degraded mode")
	}

	out := &processing.Outcome{
		Message:    m,
		Decision:   message.DecisionAllow,
		Validation: message.OK(),
	}
	out.Validation.AddWarning("DEGRADED")

	if subtle.ConstantTimeCompare([]byte(m.ConstitutionalHash), []byte(b.hash)) != 1 {
		if m.Status.CanTransition(message.StatusFailed) {
			_ = m.TransitionTo(message.StatusFailed)
		}
		out.Status = message.StatusFailed
		out.Decision = message.DecisionDeny
		out.Kind = message.KindConstitutionalMismatch
		out.Validation.AddError(
			"constitutional hash mismatch: got " + message.SanitizeHash(m.ConstitutionalHash))
		b.logger.Warn("degraded validation rejected message",
			"message_id", m.ID, "hash", message.SanitizeHash(m.ConstitutionalHash))
		return out
	}

	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers["governance_mode"] = "DEGRADED"
	m.Headers["degraded_reason"] = "governance pipeline unavailable"

	if m.Status == message.StatusPending {
		_ = m.TransitionTo(message.StatusProcessing)
	}
	if err := b.router.Deliver(ctx, m); err != nil {
		b.logger.Warn("degraded delivery failed", "message_id", m.ID, "error", err)
		out.Status = m.Status
		return out
	}
	if m.Status.CanTransition(message.StatusDelivered) {
		_ = m.TransitionTo(message.StatusDelivered)
	}
	out.Status = m.Status
	return out
}

// resend pushes a handler response back through the pipeline without
// waiting for it to settle; a synchronous wait here could deadlock a
// response onto the conversation its request still holds.
func (b *Bus) resend(ctx context.Context, m *message.Message) error {
	return b.admit(ctx, m, nil)
}

// onResolution finishes a deliberated message off the review thread.
func (b *Bus) onResolution(res deliberation.Resolution) {
	go func() {
		if _, err := b.processor.Resume(context.Background(), res); err != nil {
			b.logger.Error("deliberation resume failed",
				"review_id", res.ID, "error", err)
		}
	}()
}
