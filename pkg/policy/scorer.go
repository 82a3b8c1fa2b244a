package policy

import (
	"strings"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
)

// riskKeywords drive the semantic factor. A strong hit floors the
// semantic factor at 0.8.
var riskKeywords = []string{
	"critical", "emergency", "security", "breach", "violation",
	"unauthorized", "exploit", "escalate", "override", "shutdown",
	"delete", "constitutional", "amendment",
}

// privilegedActions drive the permission factor.
var privilegedActions = map[string]float64{
	"PROPOSE":       0.7,
	"VALIDATE":      0.8,
	"AUDIT":         0.5,
	"EXTRACT_RULES": 0.6,
	"SYNTHESIZE":    0.4,
	"QUERY":         0.1,
}

// governance-sensitive message types drive the type factor.
var typeRisk = map[message.MessageType]float64{
	message.TypeGovernanceRequest:        1.0,
	message.TypeGovernanceResponse:       0.8,
	message.TypeConstitutionalValidation: 1.0,
	message.TypeCommand:                  0.6,
	message.TypeTaskRequest:              0.4,
	message.TypeTaskResponse:             0.2,
}

// Scorer computes the heuristic impact score used by the embedded and
// fallback backends. The external ML scorer, when configured, replaces
// it through the remote adapter; the bus treats either as an opaque
// score(message) → [0,1] function.
type Scorer struct {
	weights config.ImpactWeights
	actions map[message.MessageType]string
}

// NewScorer creates a scorer with the given factor weights. actions
// maps message types to governed actions for the permission factor;
// nil uses PROPOSE-equivalent defaults of zero.
func NewScorer(weights config.ImpactWeights, actions map[message.MessageType]string) *Scorer {
	return &Scorer{weights: weights, actions: actions}
}

// Score computes the weighted impact score for a message, clamped to
// [0,1]. Messages at CRITICAL priority are floored at 0.9.
func (s *Scorer) Score(m *message.Message) float64 {
	w := s.weights

	score := w.Semantic*s.semanticFactor(m) +
		w.Permission*s.permissionFactor(m) +
		w.Volume*s.volumeFactor(m) +
		w.Priority*s.priorityFactor(m) +
		w.Type*s.typeFactor(m)
	// Drift and context need cross-message signals the heuristic
	// scorer does not have; their factors stay zero.

	if m.Priority == message.PriorityCritical && score < 0.9 {
		score = 0.9
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// semanticFactor counts risk keyword hits in the content. Two or more
// hits floor the factor at 0.8.
func (s *Scorer) semanticFactor(m *message.Message) float64 {
	content := strings.ToLower(m.Content)
	if content == "" {
		return 0
	}

	hits := 0
	for _, kw := range riskKeywords {
		if strings.Contains(content, kw) {
			hits++
		}
	}
	factor := float64(hits) * 0.3
	if hits >= 2 && factor < 0.8 {
		factor = 0.8
	}
	if factor > 1 {
		factor = 1
	}
	return factor
}

func (s *Scorer) permissionFactor(m *message.Message) float64 {
	if s.actions == nil {
		return 0
	}
	action, ok := s.actions[m.Type]
	if !ok {
		return 0
	}
	return privilegedActions[action]
}

// volumeFactor buckets the payload size: empty, small, and large
// payloads score 0, 0.3, and 0.8.
func (s *Scorer) volumeFactor(m *message.Message) float64 {
	size := len(m.Content)
	for _, v := range m.Payload {
		if str, ok := v.(string); ok {
			size += len(str)
		} else {
			size += 16
		}
	}
	switch {
	case size == 0:
		return 0
	case size < 4096:
		return 0.3
	default:
		return 0.8
	}
}

func (s *Scorer) priorityFactor(m *message.Message) float64 {
	return float64(m.Priority) / float64(message.PriorityCritical)
}

func (s *Scorer) typeFactor(m *message.Message) float64 {
	return typeRisk[m.Type]
}
