package processing

import (
	"time"

	"concordlabs/concord/pkg/message"
)

// Outcome is the result of one pipeline pass over a message.
type Outcome struct {
	// Message is the processed message, carrying its final status.
	Message *message.Message `json:"message"`

	// Status is the message status when the pass ended.
	Status message.Status `json:"status"`

	// Decision is the governance verdict: ALLOW, DENY, or REVIEW.
	Decision message.Decision `json:"decision"`

	// Score is the impact score, 0 when scoring was unavailable.
	Score float64 `json:"score"`

	// Validation carries the merged validator findings plus any
	// warnings attached along the pipeline.
	Validation *message.ValidationResult `json:"validation"`

	// Kind is the wire error kind for failed passes, empty otherwise.
	Kind message.ErrorKind `json:"kind,omitempty"`

	// ReviewID correlates a REVIEW outcome with its pending
	// deliberation.
	ReviewID string `json:"review_id,omitempty"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`

	// Log is the decision record handed to the audit trail.
	Log *message.DecisionLog `json:"log"`
}

// Failed reports whether the pass ended in a terminal failure.
func (o *Outcome) Failed() bool {
	return o.Status == message.StatusFailed || o.Status == message.StatusExpired
}
