package recovery

import (
	"math"
	"strings"
	"time"

	"concordlabs/concord/pkg/config"
)

// Strategy selects how retry delays grow.
type Strategy string

// Recovery strategies.
const (
	StrategyExponential Strategy = "EXPONENTIAL"
	StrategyLinear      Strategy = "LINEAR"
	StrategyImmediate   Strategy = "IMMEDIATE"
	StrategyManual      Strategy = "MANUAL"
)

// TaskState is a recovery task's lifecycle state.
type TaskState string

// Task states.
const (
	StateIdle           TaskState = "IDLE"
	StateScheduled      TaskState = "SCHEDULED"
	StateInProgress     TaskState = "IN_PROGRESS"
	StateSucceeded      TaskState = "SUCCEEDED"
	StateFailed         TaskState = "FAILED"
	StateCancelled      TaskState = "CANCELLED"
	StateAwaitingManual TaskState = "AWAITING_MANUAL"
)

// Policy governs one service's recovery attempts.
type Policy struct {
	Strategy          Strategy
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// policyFromConfig applies defaults and normalizes the strategy name.
func policyFromConfig(cfg config.RecoveryPolicyConfig) Policy {
	p := Policy{
		Strategy:          StrategyExponential,
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      cfg.InitialDelay,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxDelay:          cfg.MaxDelay,
	}
	switch Strategy(strings.ToUpper(cfg.Strategy)) {
	case StrategyLinear:
		p.Strategy = StrategyLinear
	case StrategyImmediate:
		p.Strategy = StrategyImmediate
	case StrategyManual:
		p.Strategy = StrategyManual
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 5
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 2.0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = 60 * time.Second
	}
	return p
}

// Delay returns the wait before the given attempt, 1-indexed.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case StrategyExponential:
		d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1)))
		if d > p.MaxDelay || d < 0 {
			return p.MaxDelay
		}
		return d
	case StrategyLinear:
		d := p.InitialDelay * time.Duration(attempt)
		if d > p.MaxDelay {
			return p.MaxDelay
		}
		return d
	default:
		return 0
	}
}

// Task tracks recovery of one service.
type Task struct {
	// Service is the breaker service under recovery.
	Service string `json:"service"`

	// Strategy is the active backoff strategy.
	Strategy Strategy `json:"strategy"`

	// State is the lifecycle state.
	State TaskState `json:"state"`

	// Attempts counts executed recovery attempts.
	Attempts int `json:"attempts"`

	// NextAttemptAt is when the next attempt is due. Zero for states
	// without a scheduled attempt.
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`

	// LastError is the most recent attempt failure.
	LastError string `json:"last_error,omitempty"`

	policy Policy
	index  int
}

// taskHeap orders scheduled tasks by due time.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].NextAttemptAt.Before(h[j].NextAttemptAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
