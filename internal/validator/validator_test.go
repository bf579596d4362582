package validator

import (
	"testing"

	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

func ticketsSchema() config.TableSchema {
	return config.TableSchema{
		Name: "tickets",
		Columns: []config.ColumnDef{
			{Name: "id", SQLType: "uuid"},
			{Name: "status", SQLType: "text"},
			{Name: "priority", SQLType: "text"},
		},
	}
}

func ticketsUpdatePolicy() policy.EffectiveTablePolicy {
	return policy.EffectiveTablePolicy{
		Table: "tickets",
		Update: map[string]policy.EffectiveUpdateConstraint{
			"status": {
				OnlyWhen: config.OnlyWhen{
					{{Subject: config.SubjectOld, Column: "status", Operator: config.OpEquals, RValue: config.RValue{Literal: "open"}}},
				},
			},
			"priority": {RequiresApproval: true},
		},
	}
}

func descFor(fields []string) catalog.ToolDescriptor {
	props := map[string]any{}
	for _, f := range fields {
		props[f] = map[string]any{}
	}
	return catalog.ToolDescriptor{
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"id", "data"},
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
				"data": map[string]any{
					"type":       "object",
					"properties": props,
				},
			},
		},
	}
}

func TestValidateUpdateDeniesDisallowedTransition(t *testing.T) {
	tp := ticketsUpdatePolicy()
	desc := descFor([]string{"status", "priority"})
	oldRow := map[string]any{"id": "7", "status": "resolved"}
	args := map[string]any{"id": "7", "data": map[string]any{"status": "open"}}

	res := ValidateUpdate(desc, tp, ticketsSchema(), args, oldRow)
	if res.Outcome != Denied {
		t.Fatalf("expected Denied, got %v", res.Outcome)
	}
	if res.Violations[0].Kind != TransitionDisallowed {
		t.Fatalf("expected TransitionDisallowed, got %v", res.Violations[0].Kind)
	}
}

func TestValidateUpdateAllowsPermittedTransition(t *testing.T) {
	tp := ticketsUpdatePolicy()
	desc := descFor([]string{"status", "priority"})
	oldRow := map[string]any{"id": "7", "status": "open"}
	args := map[string]any{"id": "7", "data": map[string]any{"status": "in_progress"}}

	res := ValidateUpdate(desc, tp, ticketsSchema(), args, oldRow)
	if res.Outcome != Allowed {
		t.Fatalf("expected Allowed, got %v: %+v", res.Outcome, res.Violations)
	}
}

func TestValidateUpdateNeedsApprovalDoesNotSuppressDenial(t *testing.T) {
	tp := ticketsUpdatePolicy()
	desc := descFor([]string{"status", "priority"})
	oldRow := map[string]any{"id": "7", "status": "resolved"}
	args := map[string]any{"id": "7", "data": map[string]any{"status": "open", "priority": "high"}}

	res := ValidateUpdate(desc, tp, ticketsSchema(), args, oldRow)
	if res.Outcome != Denied {
		t.Fatalf("expected Denied despite approval-flagged field, got %v", res.Outcome)
	}
}

func TestValidateUpdateNeedsApproval(t *testing.T) {
	tp := ticketsUpdatePolicy()
	desc := descFor([]string{"status", "priority"})
	oldRow := map[string]any{"id": "7", "status": "open"}
	args := map[string]any{"id": "7", "data": map[string]any{"priority": "high"}}

	res := ValidateUpdate(desc, tp, ticketsSchema(), args, oldRow)
	if res.Outcome != NeedsApproval {
		t.Fatalf("expected NeedsApproval, got %v: %+v", res.Outcome, res.Violations)
	}
}

func TestValidateUpdateRejectsUnknownField(t *testing.T) {
	tp := ticketsUpdatePolicy()
	desc := descFor([]string{"status", "priority", "organization_id"})
	oldRow := map[string]any{"id": "7", "status": "open"}
	args := map[string]any{"id": "7", "data": map[string]any{"organization_id": "globex"}}

	res := ValidateUpdate(desc, tp, ticketsSchema(), args, oldRow)
	if res.Outcome != Denied || res.Violations[0].Kind != UnknownField {
		t.Fatalf("expected Denied/UnknownField, got %v: %+v", res.Outcome, res.Violations)
	}
}

func TestValidateCreateRequiresPresence(t *testing.T) {
	tp := policy.EffectiveTablePolicy{
		Create: map[string]policy.EffectiveCreateConstraint{
			"status": {Required: true},
		},
	}
	desc := descFor([]string{"status"})
	desc.InputSchema["required"] = []string{"data"} // a create tool takes no top-level id
	res := ValidateCreate(desc, tp, ticketsSchema(), map[string]any{"data": map[string]any{}})
	if res.Outcome != Denied || res.Violations[0].Kind != MissingRequiredField {
		t.Fatalf("expected MissingRequiredField, got %v: %+v", res.Outcome, res.Violations)
	}
}

func TestValidateCreateEnforcesWhitelist(t *testing.T) {
	tp := policy.EffectiveTablePolicy{
		Create: map[string]policy.EffectiveCreateConstraint{
			"status": {RestrictTo: []any{"open", "closed"}},
		},
	}
	desc := descFor([]string{"status"})
	desc.InputSchema["required"] = []string{"data"} // a create tool takes no top-level id
	res := ValidateCreate(desc, tp, ticketsSchema(), map[string]any{"data": map[string]any{"status": "weird"}})
	if res.Outcome != Denied || res.Violations[0].Kind != NotInWhitelist {
		t.Fatalf("expected NotInWhitelist, got %v: %+v", res.Outcome, res.Violations)
	}
}
