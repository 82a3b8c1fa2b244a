package roles

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"concordlabs/concord/pkg/message"
)

func TestNoRoleProposesAndValidates(t *testing.T) {
	for _, role := range []Role{Executive, Legislative, Judicial} {
		if role.Allows(ActionPropose) && role.Allows(ActionValidate) {
			t.Errorf("role %s allows both PROPOSE and VALIDATE", role)
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{input: "EXECUTIVE", want: Executive},
		{input: "LEGISLATIVE", want: Legislative},
		{input: "JUDICIAL", want: Judicial},
		{input: "executive", wantErr: true},
		{input: "", wantErr: true},
		{input: "ADMIN", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAssign(t *testing.T) {
	e := NewEnforcer()

	if err := e.Assign("exec-1", Executive); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	// Same role again is idempotent.
	if err := e.Assign("exec-1", Executive); err != nil {
		t.Errorf("reassigning same role error = %v, want nil", err)
	}

	// Switching branches is rejected.
	if err := e.Assign("exec-1", Judicial); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("reassigning different role error = %v, want ErrAlreadyAssigned", err)
	}

	if role, ok := e.RoleOf("exec-1"); !ok || role != Executive {
		t.Errorf("RoleOf() = %v, %v, want EXECUTIVE, true", role, ok)
	}

	e.Unassign("exec-1")
	if _, ok := e.RoleOf("exec-1"); ok {
		t.Error("RoleOf() after Unassign reported an assignment")
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		agent   string
		role    Role
		action  Action
		target  string
		wantErr bool
	}{
		{name: "executive proposes", agent: "e", role: Executive, action: ActionPropose},
		{name: "executive queries", agent: "e", role: Executive, action: ActionQuery},
		{name: "executive validates", agent: "e", role: Executive, action: ActionValidate, wantErr: true},
		{name: "executive audits", agent: "e", role: Executive, action: ActionAudit, wantErr: true},
		{name: "executive extracts rules", agent: "e", role: Executive, action: ActionExtractRules, wantErr: true},
		{name: "legislative extracts rules", agent: "l", role: Legislative, action: ActionExtractRules},
		{name: "legislative proposes", agent: "l", role: Legislative, action: ActionPropose, wantErr: true},
		{name: "legislative validates", agent: "l", role: Legislative, action: ActionValidate, wantErr: true},
		{name: "judicial validates", agent: "j", role: Judicial, action: ActionValidate},
		{name: "judicial audits", agent: "j", role: Judicial, action: ActionAudit},
		{name: "judicial proposes", agent: "j", role: Judicial, action: ActionPropose, wantErr: true},
		{name: "judicial synthesizes", agent: "j", role: Judicial, action: ActionSynthesize, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnforcer()
			if err := e.Assign(tt.agent, tt.role); err != nil {
				t.Fatalf("Assign() error = %v", err)
			}

			err := e.Authorize(tt.agent, tt.action, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrViolation) {
				t.Errorf("violation does not match ErrViolation: %v", err)
			}
			if err != nil && message.KindOf(err) != message.KindRoleViolation {
				t.Errorf("violation kind = %v, want ROLE_VIOLATION", message.KindOf(err))
			}
		})
	}
}

func TestAuthorizeNoRole(t *testing.T) {
	e := NewEnforcer()
	err := e.Authorize("stranger", ActionQuery, "")
	if !errors.Is(err, ErrViolation) {
		t.Fatalf("Authorize() for unassigned agent error = %v, want violation", err)
	}
}

func TestAntiSelfValidation(t *testing.T) {
	e := NewEnforcer()
	if err := e.Assign("judge", Judicial); err != nil {
		t.Fatal(err)
	}
	if err := e.Assign("judge-2", Judicial); err != nil {
		t.Fatal(err)
	}
	if err := e.Assign("exec", Executive); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{name: "validate own output", target: "judge", wantErr: true},
		{name: "validate another judicial agent", target: "judge-2", wantErr: true},
		{name: "validate executive output", target: "exec"},
		{name: "validate unknown target fails closed", target: "ghost", wantErr: true},
		{name: "no target named", target: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Authorize("judge", ActionValidate, tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("Authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthorizeMessage(t *testing.T) {
	e := NewEnforcer()
	if err := e.Assign("exec", Executive); err != nil {
		t.Fatal(err)
	}
	if err := e.Assign("judge", Judicial); err != nil {
		t.Fatal(err)
	}

	// Executive sending a validation request is a violation regardless
	// of target.
	m := message.New("exec", "judge", message.TypeConstitutionalValidation)
	if err := e.AuthorizeMessage(m); !errors.Is(err, ErrViolation) {
		t.Errorf("executive validation error = %v, want violation", err)
	}

	// Judicial validating executive output is permitted.
	m = message.New("judge", "exec", message.TypeConstitutionalValidation)
	if err := e.AuthorizeMessage(m); err != nil {
		t.Errorf("judicial validation error = %v, want nil", err)
	}

	// Output ownership redirects the target: the judge produced the
	// output, so validating it is self-validation even when addressed
	// elsewhere.
	e.RecordOutput("judge", "out-9")
	m = message.New("judge", "exec", message.TypeConstitutionalValidation)
	m.Payload = map[string]any{"output_id": "out-9"}
	if err := e.AuthorizeMessage(m); !errors.Is(err, ErrViolation) {
		t.Errorf("self output validation error = %v, want violation", err)
	}
}

func TestActionTable(t *testing.T) {
	e := NewEnforcer()

	tests := []struct {
		msgType message.MessageType
		want    Action
	}{
		{message.TypeGovernanceRequest, ActionPropose},
		{message.TypeGovernanceResponse, ActionPropose},
		{message.TypeConstitutionalValidation, ActionValidate},
		{message.TypeTaskRequest, ActionSynthesize},
		{message.TypeTaskResponse, ActionSynthesize},
		{message.TypeCommand, ActionPropose},
		{message.TypeQuery, ActionQuery},
		{message.TypeResponse, ActionQuery},
		{message.TypeEvent, ActionQuery},
		{message.TypeNotification, ActionQuery},
		{message.TypeHeartbeat, ActionQuery},
	}

	for _, tt := range tests {
		if got := e.ActionFor(tt.msgType); got != tt.want {
			t.Errorf("ActionFor(%s) = %v, want %v", tt.msgType, got, tt.want)
		}
	}
}

func TestActionTableOverride(t *testing.T) {
	e := NewEnforcer(WithActionTable(map[message.MessageType]Action{
		message.TypeCommand: ActionSynthesize,
	}))

	if got := e.ActionFor(message.TypeCommand); got != ActionSynthesize {
		t.Errorf("ActionFor(COMMAND) = %v, want SYNTHESIZE", got)
	}
	// Types missing from an override table derive QUERY.
	if got := e.ActionFor(message.TypeGovernanceRequest); got != ActionQuery {
		t.Errorf("ActionFor(GOVERNANCE_REQUEST) = %v, want QUERY", got)
	}
}

func TestOutputTrackingEviction(t *testing.T) {
	e := NewEnforcer()
	for i := 0; i < maxTrackedOutputs+10; i++ {
		e.RecordOutput("producer", outputID(i))
	}
	if _, ok := e.ProducerOf(outputID(0)); ok {
		t.Error("oldest output survived eviction")
	}
	if _, ok := e.ProducerOf(outputID(maxTrackedOutputs + 9)); !ok {
		t.Error("newest output was evicted")
	}
}

func outputID(i int) string {
	return "out-" + strconv.Itoa(i)
}

func TestConcurrentEnforcer(t *testing.T) {
	e := NewEnforcer()
	if err := e.Assign("exec", Executive); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = e.Authorize("exec", ActionPropose, "")
				e.RecordOutput("exec", outputID(n*100+j))
				_, _ = e.RoleOf("exec")
			}
		}(i)
	}
	wg.Wait()
}
