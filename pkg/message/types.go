package message

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MessageType categorizes the intent of a message. The type drives role
// enforcement (each type maps to a governed action) and routing behavior.
type MessageType string

const (
	TypeCommand                  MessageType = "COMMAND"
	TypeQuery                    MessageType = "QUERY"
	TypeResponse                 MessageType = "RESPONSE"
	TypeEvent                    MessageType = "EVENT"
	TypeNotification             MessageType = "NOTIFICATION"
	TypeHeartbeat                MessageType = "HEARTBEAT"
	TypeGovernanceRequest        MessageType = "GOVERNANCE_REQUEST"
	TypeGovernanceResponse       MessageType = "GOVERNANCE_RESPONSE"
	TypeConstitutionalValidation MessageType = "CONSTITUTIONAL_VALIDATION"
	TypeTaskRequest              MessageType = "TASK_REQUEST"
	TypeTaskResponse             MessageType = "TASK_RESPONSE"
)

// messageTypes is the set of known message types.
var messageTypes = map[MessageType]struct{}{
	TypeCommand:                  {},
	TypeQuery:                    {},
	TypeResponse:                 {},
	TypeEvent:                    {},
	TypeNotification:             {},
	TypeHeartbeat:                {},
	TypeGovernanceRequest:        {},
	TypeGovernanceResponse:       {},
	TypeConstitutionalValidation: {},
	TypeTaskRequest:              {},
	TypeTaskResponse:             {},
}

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	_, ok := messageTypes[t]
	return ok
}

// ParseMessageType converts a string into a MessageType.
// Returns an error for unknown types.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(s)
	if !t.Valid() {
		return "", &UnknownTypeError{Value: s}
	}
	return t, nil
}

// UnmarshalJSON validates the type during decoding so malformed messages
// are rejected at the boundary rather than deep in the pipeline.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("message type must be a string: %w", err)
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Priority orders messages in the bus queue. Higher values are drained
// first. The zero value is PriorityLow.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityMedium   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

var priorityNames = map[Priority]string{
	PriorityLow:      "LOW",
	PriorityMedium:   "MEDIUM",
	PriorityHigh:     "HIGH",
	PriorityCritical: "CRITICAL",
}

// String returns the priority name ("LOW", "MEDIUM", "HIGH", "CRITICAL").
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PRIORITY(%d)", int(p))
}

// Valid reports whether p is within the defined priority range.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a priority name or numeric level into a Priority.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		if p.Valid() {
			return p, nil
		}
	}
	return 0, &InvalidPriorityError{Value: s}
}

// MarshalJSON encodes the priority as its name.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, &InvalidPriorityError{Value: strconv.Itoa(int(p))}
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the numeric level or the name, since both
// encodings exist in the wild.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		cand := Priority(n)
		if !cand.Valid() {
			return &InvalidPriorityError{Value: strconv.Itoa(n)}
		}
		*p = cand
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &InvalidPriorityError{Value: string(data)}
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is the message lifecycle state.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusProcessing          Status = "PROCESSING"
	StatusPendingDeliberation Status = "PENDING_DELIBERATION"
	StatusDelivered           Status = "DELIVERED"
	StatusFailed              Status = "FAILED"
	StatusExpired             Status = "EXPIRED"
)

// statusGraph encodes the allowed lifecycle transitions.
var statusGraph = map[Status][]Status{
	StatusPending:             {StatusExpired, StatusFailed, StatusProcessing, StatusPendingDeliberation},
	StatusProcessing:          {StatusDelivered, StatusFailed},
	StatusPendingDeliberation: {StatusDelivered, StatusFailed},
	StatusDelivered:           {},
	StatusFailed:              {},
	StatusExpired:             {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusGraph[s]
	return ok
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	next, ok := statusGraph[s]
	return ok && len(next) == 0
}

// CanTransition reports whether the lifecycle graph permits moving from
// s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusGraph[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Decision is the governance outcome attached to a processed message.
type Decision string

const (
	DecisionAllow  Decision = "ALLOW"
	DecisionDeny   Decision = "DENY"
	DecisionReview Decision = "REVIEW"
)
