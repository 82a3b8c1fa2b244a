package roles

import (
	"fmt"

	"concordlabs/concord/pkg/message"
)

// Role is one of the three fixed governance roles.
type Role string

const (
	// Executive proposes and synthesizes governance actions.
	Executive Role = "EXECUTIVE"
	// Legislative extracts rules and synthesizes policy content.
	Legislative Role = "LEGISLATIVE"
	// Judicial validates and audits the output of the other branches.
	Judicial Role = "JUDICIAL"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Executive, Legislative, Judicial:
		return true
	}
	return false
}

// ParseRole converts a string into a Role. Returns an error for
// unknown roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Action is a governed operation derived from the message type.
type Action string

const (
	ActionPropose      Action = "PROPOSE"
	ActionSynthesize   Action = "SYNTHESIZE"
	ActionQuery        Action = "QUERY"
	ActionValidate     Action = "VALIDATE"
	ActionAudit        Action = "AUDIT"
	ActionExtractRules Action = "EXTRACT_RULES"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionPropose, ActionSynthesize, ActionQuery, ActionValidate, ActionAudit, ActionExtractRules:
		return true
	}
	return false
}

// ParseAction converts a string into an Action. Returns an error for
// unknown actions.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// allowed is the fixed per-role action whitelist. The sets are
// constructed so that no role holds both PROPOSE and VALIDATE.
var allowed = map[Role]map[Action]struct{}{
	Executive: {
		ActionPropose:    {},
		ActionSynthesize: {},
		ActionQuery:      {},
	},
	Legislative: {
		ActionExtractRules: {},
		ActionSynthesize:   {},
		ActionQuery:        {},
	},
	Judicial: {
		ActionValidate: {},
		ActionAudit:    {},
		ActionQuery:    {},
	},
}

// Allows reports whether the role whitelist contains the action.
func (r Role) Allows(a Action) bool {
	_, ok := allowed[r][a]
	return ok
}

// Allowed returns the role's whitelist as a new slice.
func (r Role) Allowed() []Action {
	out := make([]Action, 0, len(allowed[r]))
	for a := range allowed[r] {
		out = append(out, a)
	}
	return out
}

// DefaultActionTable returns the default message-type-to-action
// derivation. Every defined message type has an entry; read-only types
// derive QUERY so they pass any role.
func DefaultActionTable() map[message.MessageType]Action {
	return map[message.MessageType]Action{
		message.TypeGovernanceRequest:        ActionPropose,
		message.TypeGovernanceResponse:       ActionPropose,
		message.TypeConstitutionalValidation: ActionValidate,
		message.TypeTaskRequest:              ActionSynthesize,
		message.TypeTaskResponse:             ActionSynthesize,
		message.TypeCommand:                  ActionPropose,
		message.TypeQuery:                    ActionQuery,
		message.TypeResponse:                 ActionQuery,
		message.TypeEvent:                    ActionQuery,
		message.TypeNotification:             ActionQuery,
		message.TypeHeartbeat:                ActionQuery,
	}
}
