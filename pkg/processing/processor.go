package processing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"concordlabs/concord/pkg/audit"
	"concordlabs/concord/pkg/deliberation"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/metering"
	"concordlabs/concord/pkg/policy"
	"concordlabs/concord/pkg/roles"
	"concordlabs/concord/pkg/strategy"
	"concordlabs/concord/pkg/telemetry/metrics"
	"concordlabs/concord/pkg/telemetry/tracing"
	"concordlabs/concord/pkg/validation"
)

// DefaultDeliberationThreshold diverts messages scoring at or above it
// to review.
const DefaultDeliberationThreshold = 0.8

// Handler consumes a delivered message. A non-nil response is sent
// back through the bus under a fresh message id.
type Handler func(ctx context.Context, m *message.Message) (*message.Message, error)

// DeliverFunc hands a message to the routing layer.
type DeliverFunc func(ctx context.Context, m *message.Message) error

// RespondFunc forwards a handler response through the bus pipeline.
type RespondFunc func(ctx context.Context, m *message.Message) error

// Options wire a Processor's collaborators. Validator, Enforcer, and
// Policy are required; everything else degrades to a no-op when nil.
type Options struct {
	// Validator is the constitutional validation chain.
	Validator validation.Validator

	// Enforcer authorizes governed actions per role.
	Enforcer *roles.Enforcer

	// Policy evaluates decisions and scores impact.
	Policy policy.Adapter

	// Reviews holds messages diverted to deliberation. Nil disables
	// the gate.
	Reviews *deliberation.Router

	// Extra strategies tried before the in-process baseline.
	Extra []strategy.Strategy

	// Deliver pushes a message into the target inbox.
	Deliver DeliverFunc

	// Respond re-enters a handler response into the bus.
	Respond RespondFunc

	// Trail receives one audit entry per pass.
	Trail *audit.Trail

	// Meter receives usage events per pass.
	Meter *metering.Meter

	// Tracer opens one span per pass.
	Tracer *tracing.Tracer

	Bus        *metrics.BusMetrics
	Governance *metrics.GovernanceMetrics

	// Threshold is the deliberation gate. Zero means the default.
	Threshold float64

	// StrictRoles makes role violations fatal.
	StrictRoles bool
}

// Processor runs the governance pipeline over one message at a time.
// It is safe for concurrent use; the bus runs one Process per worker.
type Processor struct {
	validator validation.Validator
	enforcer  *roles.Enforcer
	policy    policy.Adapter
	reviews   *deliberation.Router
	strategy  strategy.Strategy
	deliver   DeliverFunc
	respond   RespondFunc
	trail     *audit.Trail
	meter     *metering.Meter
	tracer    *tracing.Tracer
	bm        *metrics.BusMetrics
	gm        *metrics.GovernanceMetrics
	threshold float64
	strict    bool

	mu       sync.RWMutex
	handlers map[string][]Handler

	processed atomic.Int64
	failed    atomic.Int64

	logger *slog.Logger
}

// New builds a processor. The strategy chain is the in-process
// baseline, preceded by any extra strategies in composite fallback
// order.
func New(opts Options) (*Processor, error) {
	if opts.Validator == nil {
		return nil, fmt.Errorf("%w: validator", ErrMissingCollaborator)
	}
	if opts.Enforcer == nil {
		return nil, fmt.Errorf("%w: role enforcer", ErrMissingCollaborator)
	}
	if opts.Policy == nil {
		return nil, fmt.Errorf("%w: policy adapter", ErrMissingCollaborator)
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultDeliberationThreshold
	}

	p := &Processor{
		validator: opts.Validator,
		enforcer:  opts.Enforcer,
		policy:    opts.Policy,
		reviews:   opts.Reviews,
		deliver:   opts.Deliver,
		respond:   opts.Respond,
		trail:     opts.Trail,
		meter:     opts.Meter,
		tracer:    opts.Tracer,
		bm:        opts.Bus,
		gm:        opts.Governance,
		threshold: threshold,
		strict:    opts.StrictRoles,
		handlers:  make(map[string][]Handler),
		logger:    slog.Default().With("component", "processing.processor"),
	}

	base := strategy.NewBaseline(strategy.DispatcherFunc(p.dispatch))
	if len(opts.Extra) > 0 {
		p.strategy = strategy.NewComposite(append(append([]strategy.Strategy(nil), opts.Extra...), base)...)
	} else {
		p.strategy = base
	}
	return p, nil
}

// OnMessage registers a handler for an agent. Handlers run in
// registration order when a message is delivered to the agent.
func (p *Processor) OnMessage(agentID string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[agentID] = append(p.handlers[agentID], h)
}

// Process runs the pipeline. Per-message failures are rendered into
// the Outcome; the returned error is reserved for programming errors.
func (p *Processor) Process(ctx context.Context, m *message.Message) (*Outcome, error) {
	start := time.Now()

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "bus.process",
			trace.WithAttributes(tracing.MessageAttributes(m)...))
		defer span.End()
	}

	out := &Outcome{
		Message:    m,
		Decision:   message.DecisionAllow,
		Validation: message.OK(),
	}
	p.run(ctx, m, out)
	p.finish(ctx, m, out, audit.EventMessageProcessed, span, start)
	return out, nil
}

// run executes the pipeline steps against the message, recording the
// verdict in out. Expiry wins over every other failure.
func (p *Processor) run(ctx context.Context, m *message.Message, out *Outcome) {
	// Expiry gate.
	if m.Expired(time.Now().UTC()) {
		if m.Status.CanTransition(message.StatusExpired) {
			_ = m.TransitionTo(message.StatusExpired)
		}
		out.Status = message.StatusExpired
		out.Decision = message.DecisionDeny
		out.Kind = message.KindExpired
		out.Validation.AddError("message expired before processing")
		return
	}

	// Constitutional validation.
	res, err := p.validator.Validate(ctx, m)
	if err != nil {
		p.fail(m, out, message.KindConstitutionalMismatch, "validation error: "+err.Error())
		return
	}
	out.Validation.Merge(res)
	outcome := "valid"
	if !out.Validation.Valid {
		outcome = "invalid"
	}
	p.gm.RecordValidation(p.validator.Name(), outcome)
	if p.meter != nil {
		p.meter.OnValidation(m.TenantID, outcome)
	}
	if !out.Validation.Valid {
		p.fail(m, out, message.KindConstitutionalMismatch, "")
		return
	}

	// Role check.
	if err := p.enforcer.AuthorizeMessage(m); err != nil {
		if p.strict {
			p.fail(m, out, message.KindRoleViolation, err.Error())
			return
		}
		out.Validation.AddWarning("ROLE_VIOLATION_WARNED: " + err.Error())
	}

	// Policy evaluation. Backend failure is survivable; an explicit
	// deny is final.
	action := p.enforcer.ActionFor(m.Type)
	decision, err := p.policy.Evaluate(ctx, policy.InputFromMessage(m, string(action)))
	switch {
	case err != nil:
		out.Validation.AddWarning("POLICY_UNAVAILABLE: " + err.Error())
		p.logger.Warn("policy evaluation unavailable",
			"message_id", m.ID, "error", err)
	case !decision.Allowed:
		reasons := "policy denied"
		for _, r := range decision.Reasons {
			out.Validation.AddWarning(r)
		}
		p.fail(m, out, "", reasons)
		return
	}

	// Impact scoring. Never fatal: unavailability caps the score to
	// zero so the message stays on the fast lane.
	score, err := p.policy.Score(ctx, m)
	if err != nil {
		score = 0
		out.Validation.AddWarning("IMPACT_SCORE_UNAVAILABLE")
		p.logger.Warn("impact scoring unavailable",
			"message_id", m.ID, "kind", string(message.KindOf(err)), "error", err)
	}
	out.Score = score

	// Deliberation gate.
	if p.reviews != nil && score >= p.threshold {
		if err := m.TransitionTo(message.StatusPendingDeliberation); err != nil {
			p.fail(m, out, "", err.Error())
			return
		}
		id, err := p.reviews.Submit(ctx, m, score, out.Validation.Warnings)
		if err != nil {
			p.fail(m, out, message.KindOf(err), err.Error())
			return
		}
		out.Status = message.StatusPendingDeliberation
		out.Decision = message.DecisionReview
		out.ReviewID = id
		return
	}

	if err := m.TransitionTo(message.StatusProcessing); err != nil {
		p.fail(m, out, "", err.Error())
		return
	}

	p.dispatchStrategy(ctx, m, out)
}

// Resume completes a message released from deliberation. Approved
// messages skip re-validation and go straight to strategy dispatch;
// rejections and timeouts fail the message.
func (p *Processor) Resume(ctx context.Context, res deliberation.Resolution) (*Outcome, error) {
	start := time.Now()
	m := res.Message

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "bus.resume",
			trace.WithAttributes(tracing.MessageAttributes(m)...))
		defer span.End()
	}

	out := &Outcome{
		Message:    m,
		Score:      res.Score,
		Validation: message.OK(),
	}

	if res.Approved {
		// The verdict stays REVIEW: delivery was earned through
		// deliberation, not through the fast lane.
		out.Decision = message.DecisionReview
		p.dispatchStrategy(ctx, m, out)
	} else {
		reason := res.Reasoning
		if reason == "" {
			reason = "review rejected"
		}
		p.fail(m, out, res.Kind, reason)
	}

	p.finish(ctx, m, out, audit.EventDeliberationResolved, span, start)
	if out.Log != nil {
		out.Log.Metadata["review_id"] = res.ID
		out.Log.Metadata["review_method"] = res.Method
		if res.Reviewer != "" {
			out.Log.Metadata["reviewer"] = res.Reviewer
		}
	}
	return out, nil
}

// dispatchStrategy runs strategy and handler dispatch and settles the
// terminal status.
func (p *Processor) dispatchStrategy(ctx context.Context, m *message.Message, out *Outcome) {
	result, err := p.strategy.Process(ctx, m)
	if err != nil {
		kind := message.KindOf(err)
		if kind == "" {
			kind = message.KindHandlerFailure
		}
		p.fail(m, out, kind, err.Error())
		return
	}

	if result.Status == message.StatusFailed {
		// Logical denial from a strategy: final, not a fallback
		// trigger.
		p.fail(m, out, "", result.Detail)
		return
	}

	if m.Status != message.StatusDelivered && m.Status.CanTransition(message.StatusDelivered) {
		_ = m.TransitionTo(message.StatusDelivered)
	}
	out.Status = m.Status
	for k, v := range result.Metadata {
		out.Validation.SetMeta(k, v)
	}
}

// dispatch is the baseline strategy's transport: inbox delivery plus
// handler invocation in registration order.
func (p *Processor) dispatch(ctx context.Context, m *message.Message) error {
	if p.deliver != nil {
		if err := p.deliver(ctx, m); err != nil {
			return err
		}
	}

	p.mu.RLock()
	handlers := append([]Handler(nil), p.handlers[m.ToAgent]...)
	p.mu.RUnlock()

	for i, h := range handlers {
		resp, err := p.invoke(ctx, h, m)
		if err != nil {
			return &HandlerError{AgentID: m.ToAgent, Index: i, Err: err}
		}
		if resp == nil || p.respond == nil {
			continue
		}
		if resp.ID == "" || resp.ID == m.ID {
			resp.ID = uuid.NewString()
		}
		if err := p.respond(ctx, resp); err != nil {
			p.logger.Warn("response forwarding failed",
				"message_id", m.ID, "response_id", resp.ID, "error", err)
		}
	}
	return nil
}

// invoke traps handler panics so one misbehaving handler cannot take
// down a worker.
func (p *Processor) invoke(ctx context.Context, h Handler, m *message.Message) (resp *message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, m)
}

// fail settles the message into FAILED with a DENY verdict.
func (p *Processor) fail(m *message.Message, out *Outcome, kind message.ErrorKind, reason string) {
	if m.Status != message.StatusFailed && m.Status.CanTransition(message.StatusFailed) {
		_ = m.TransitionTo(message.StatusFailed)
	}
	out.Status = message.StatusFailed
	out.Decision = message.DecisionDeny
	out.Kind = kind
	if reason != "" {
		out.Validation.AddError(reason)
	}
}

// finish stamps the outcome, updates counters and metrics, and fires
// the audit and metering hooks. Hooks never block or fail the pass.
func (p *Processor) finish(ctx context.Context, m *message.Message, out *Outcome, event string, span trace.Span, start time.Time) {
	out.Duration = time.Since(start)
	out.Log = p.decisionLog(ctx, m, out)

	if out.Status != message.StatusPendingDeliberation {
		total := p.processed.Add(1)
		if out.Failed() {
			p.failed.Add(1)
		}
		p.bm.SetSuccessRate(1 - float64(p.failed.Load())/float64(total))
	}
	p.bm.RecordMessage(string(m.Type), m.Priority.String(), string(out.Status), out.Duration)

	if span != nil {
		span.SetAttributes(tracing.DecisionAttributes(string(out.Decision), out.Score)...)
		if out.Failed() && len(out.Validation.Errors) > 0 {
			tracing.SetError(span, fmt.Errorf("%s", out.Validation.Errors[0]))
		}
	}

	if p.trail != nil {
		entry := audit.NewEntry(event, *out.Log)
		entry.Kind = out.Kind
		if err := p.trail.Record(ctx, entry); err != nil {
			p.logger.Debug("audit record dropped", "message_id", m.ID, "error", err)
		}
	}
	if p.meter != nil {
		p.meter.OnProcessed(m.TenantID, m.Type, out.Status, out.Duration)
	}
}

// decisionLog assembles the governance record for the pass.
func (p *Processor) decisionLog(ctx context.Context, m *message.Message, out *Outcome) *message.DecisionLog {
	log := message.NewDecisionLog(m.FromAgent, m.TenantID, out.Decision)
	log.TraceID = tracing.TraceID(ctx)
	log.SpanID = tracing.SpanID(ctx)
	log.PolicyVersion = p.policy.Version()
	log.RiskScore = out.Score
	log.ConstitutionalHash = message.SanitizeHash(m.ConstitutionalHash)
	log.Metadata = map[string]any{
		"message_id":   m.ID,
		"message_type": string(m.Type),
	}
	if len(out.Validation.Warnings) > 0 {
		log.Metadata["warnings"] = append([]string(nil), out.Validation.Warnings...)
	}

	if out.Validation.Valid || out.Kind != message.KindConstitutionalMismatch {
		if out.Status != message.StatusExpired {
			log.Tag("constitutional_validated")
		}
	}
	switch out.Status {
	case message.StatusDelivered:
		log.Tag("approved")
	case message.StatusFailed, message.StatusExpired:
		log.Tag("rejected")
	}
	if m.Priority == message.PriorityCritical {
		log.Tag("high_priority")
	}
	return log
}

// Processed reports how many passes reached a terminal status.
func (p *Processor) Processed() int64 {
	return p.processed.Load()
}

// Failed reports how many terminal passes failed or expired.
func (p *Processor) Failed() int64 {
	return p.failed.Load()
}
