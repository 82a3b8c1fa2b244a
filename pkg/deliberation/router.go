package deliberation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// Vote is one agent's position on a pending review.
type Vote string

const (
	VoteApprove Vote = "APPROVE"
	VoteReject  Vote = "REJECT"
	VoteAbstain Vote = "ABSTAIN"
)

// AgentVote is a cast vote. A later vote by the same agent replaces
// its earlier one.
type AgentVote struct {
	// Agent is the voting agent.
	Agent string `json:"agent"`

	// Vote is the position.
	Vote Vote `json:"vote"`

	// Reasoning explains the position.
	Reasoning string `json:"reasoning,omitempty"`

	// Confidence is the agent's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence,omitempty"`
}

// ReviewDecision is a reviewer's explicit verdict on a pending review.
type ReviewDecision struct {
	// Approved releases the message for delivery; false fails it.
	Approved bool `json:"approved"`

	// Reviewer identifies who decided.
	Reviewer string `json:"reviewer"`

	// Reasoning explains the verdict.
	Reasoning string `json:"reasoning,omitempty"`
}

// Resolution methods.
const (
	MethodReviewer  = "reviewer"
	MethodConsensus = "consensus"
	MethodTimeout   = "timeout"
)

// Resolution is the terminal outcome of a review, handed to the
// resolver callback.
type Resolution struct {
	// ID is the review's correlation id.
	ID string

	// Message is the held message.
	Message *message.Message

	// Score is the impact score that diverted the message.
	Score float64

	// Approved releases the message; false fails it.
	Approved bool

	// Method records how the review resolved (reviewer, consensus,
	// timeout).
	Method string

	// Reviewer is set for reviewer resolutions.
	Reviewer string

	// Reasoning explains the outcome.
	Reasoning string

	// Kind is DELIBERATION_TIMEOUT for timeout denials, empty
	// otherwise.
	Kind message.ErrorKind

	// Votes are the votes cast before resolution.
	Votes []AgentVote

	// ResolvedAt is when the review resolved, UTC.
	ResolvedAt time.Time
}

// pendingReview is one held message awaiting a verdict.
type pendingReview struct {
	id       string
	msg      *message.Message
	score    float64
	reasons  []string
	deadline time.Time
	timer    *time.Timer
	votes    map[string]AgentVote
	order    []string
}

// Router holds high-impact messages for review. A review resolves by
// explicit reviewer decision, by vote consensus, or by deadline
// timeout (denied with DELIBERATION_TIMEOUT). The resolver callback
// receives every resolution exactly once, outside the router lock.
type Router struct {
	cfg config.DeliberationConfig

	mu      sync.Mutex
	pending map[string]*pendingReview

	resolver func(Resolution)

	gm     *metrics.GovernanceMetrics
	logger *slog.Logger
}

// NewRouter creates a deliberation router. gm may be nil.
func NewRouter(cfg config.DeliberationConfig, gm *metrics.GovernanceMetrics) *Router {
	return &Router{
		cfg:     cfg,
		pending: make(map[string]*pendingReview),
		gm:      gm,
		logger:  slog.Default().With("component", "deliberation.router"),
	}
}

// SetResolver installs the resolution callback. Must be called before
// the first Submit.
func (r *Router) SetResolver(fn func(Resolution)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = fn
}

// Submit holds a message for review and returns its correlation id.
func (r *Router) Submit(_ context.Context, m *message.Message, score float64, reasons []string) (string, error) {
	r.mu.Lock()
	if len(r.pending) >= r.cfg.Capacity {
		r.mu.Unlock()
		return "", &FullError{Capacity: r.cfg.Capacity}
	}

	p := &pendingReview{
		id:       uuid.NewString(),
		msg:      m,
		score:    score,
		reasons:  reasons,
		deadline: time.Now().UTC().Add(r.cfg.Timeout),
		votes:    make(map[string]AgentVote),
	}
	p.timer = time.AfterFunc(r.cfg.Timeout, func() { r.expire(p.id) })
	r.pending[p.id] = p
	depth := len(r.pending)
	r.mu.Unlock()

	r.gm.SetPendingReviews(depth)
	r.logger.Info("message held for deliberation",
		"review_id", p.id, "message_id", m.ID, "score", score)
	return p.id, nil
}

// PostResult resolves a review with an explicit reviewer decision.
func (r *Router) PostResult(_ context.Context, id string, decision ReviewDecision) error {
	p, ok := r.take(id)
	if !ok {
		return ErrUnknownReview
	}

	r.finish(p, Resolution{
		Approved:  decision.Approved,
		Method:    MethodReviewer,
		Reviewer:  decision.Reviewer,
		Reasoning: decision.Reasoning,
	})
	return nil
}

// CastVote records an agent's vote; a repeat vote by the same agent
// replaces the earlier one. When the votes reach quorum and the
// approval fraction meets the consensus threshold, the review
// auto-approves.
func (r *Router) CastVote(_ context.Context, id string, vote AgentVote) error {
	switch vote.Vote {
	case VoteApprove, VoteReject, VoteAbstain:
	default:
		return ErrInvalidVote
	}

	r.mu.Lock()
	p, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownReview
	}

	if _, seen := p.votes[vote.Agent]; !seen {
		p.order = append(p.order, vote.Agent)
	}
	p.votes[vote.Agent] = vote

	total := len(p.votes)
	approvals := 0
	for _, v := range p.votes {
		if v.Vote == VoteApprove {
			approvals++
		}
	}
	reached := total >= r.cfg.RequiredVotes &&
		float64(approvals)/float64(total) >= r.cfg.ConsensusThreshold
	r.mu.Unlock()

	if !reached {
		return nil
	}

	// Another resolution may have won the race; that is fine.
	if p, ok := r.take(id); ok {
		r.finish(p, Resolution{
			Approved:  true,
			Method:    MethodConsensus,
			Reasoning: "vote consensus reached",
		})
	}
	return nil
}

// Pending returns the number of held reviews.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// expire resolves a review that passed its deadline without a verdict.
func (r *Router) expire(id string) {
	p, ok := r.take(id)
	if !ok {
		return
	}

	r.logger.Warn("deliberation timed out",
		"review_id", id, "message_id", p.msg.ID)
	r.finish(p, Resolution{
		Approved:  false,
		Method:    MethodTimeout,
		Reasoning: "no verdict before deadline",
		Kind:      message.KindDeliberationTimeout,
	})
}

// take removes a pending review, stopping its timer.
func (r *Router) take(id string) (*pendingReview, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if !ok {
		return nil, false
	}
	p.timer.Stop()
	delete(r.pending, id)
	r.gm.SetPendingReviews(len(r.pending))
	return p, true
}

// finish fills the shared resolution fields and invokes the resolver.
func (r *Router) finish(p *pendingReview, res Resolution) {
	res.ID = p.id
	res.Message = p.msg
	res.Score = p.score
	res.ResolvedAt = time.Now().UTC()
	for _, agent := range p.order {
		res.Votes = append(res.Votes, p.votes[agent])
	}

	outcome := "rejected"
	switch {
	case res.Approved:
		outcome = "approved"
	case res.Method == MethodTimeout:
		outcome = "timeout"
	}
	r.gm.RecordDeliberation(outcome)

	r.mu.Lock()
	resolver := r.resolver
	r.mu.Unlock()
	if resolver != nil {
		resolver(res)
	}
}
