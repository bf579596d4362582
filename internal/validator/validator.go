package validator

import (
	"fmt"
	"sort"

	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

// ValidateCreate checks a create<Entity> invocation's data payload against
// tp.Create, in spec.md §4.4's strict order: presence, type/structure,
// pattern, whitelist, approval. There is no state-transition step for
// create (step 5 only applies to update).
func ValidateCreate(desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, args map[string]any) Result {
	if err := checkStructure(desc.InputSchema, args); err != nil {
		return denied(Violation{Field: "data", Kind: SchemaViolation, Message: err.Error()})
	}

	rawData, _ := args["data"].(map[string]any)
	validated := map[string]any{}
	var violations []Violation
	var approvalReasons []string

	fields := sortedCreateFields(tp.Create)
	for _, field := range fields {
		cc := tp.Create[field]
		value, present := rawData[field]

		if !present {
			if cc.Required {
				violations = append(violations, Violation{Field: field, Kind: MissingRequiredField, Message: "required field missing"})
				continue
			}
			if cc.HasDefault {
				validated[field] = cc.Default
			}
			continue
		}

		coerced, ok := coerceToColumn(value, schemaTable, field)
		if !ok {
			violations = append(violations, Violation{Field: field, Kind: TypeMismatch, Message: fmt.Sprintf("value %v does not match column type", value)})
			continue
		}

		if cc.Pattern != nil {
			s, isStr := coerced.(string)
			if !isStr || !cc.Pattern.MatchString(s) {
				violations = append(violations, Violation{Field: field, Kind: PatternViolation, Message: "value does not match required pattern"})
				continue
			}
		}

		if len(cc.RestrictTo) > 0 && !memberOf(coerced, cc.RestrictTo) {
			violations = append(violations, Violation{Field: field, Kind: NotInWhitelist, Message: "value is not in the allowed set"})
			continue
		}

		validated[field] = coerced
		if cc.RequiresApproval {
			approvalReasons = append(approvalReasons, field+" requires approval")
		}
	}

	for field := range rawData {
		if _, ok := tp.Create[field]; !ok {
			violations = append(violations, Violation{Field: field, Kind: UnknownField, Message: "field is not creatable under this role"})
		}
	}

	if len(violations) > 0 {
		return denied(violations...)
	}
	if len(approvalReasons) > 0 {
		return needsApproval(validated, approvalReasons)
	}
	return allowed(validated)
}

// ValidateUpdate checks an update<Entity> invocation's data payload
// against tp.Update, including the state-transition (only_when) step
// evaluated against oldRow.
func ValidateUpdate(desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, args map[string]any, oldRow map[string]any) Result {
	if err := checkStructure(desc.InputSchema, args); err != nil {
		return denied(Violation{Field: "data", Kind: SchemaViolation, Message: err.Error()})
	}

	rawData, _ := args["data"].(map[string]any)
	validated := map[string]any{}
	var violations []Violation
	var approvalReasons []string

	for field := range rawData {
		if _, ok := tp.Update[field]; !ok {
			violations = append(violations, Violation{Field: field, Kind: UnknownField, Message: "field is not updatable under this role"})
		}
	}
	if len(violations) > 0 {
		return denied(violations...)
	}

	fields := sortedUpdateFields(rawData)
	for _, field := range fields {
		uc := tp.Update[field]
		value := rawData[field]

		coerced, ok := coerceToColumn(value, schemaTable, field)
		if !ok {
			violations = append(violations, Violation{Field: field, Kind: TypeMismatch, Message: fmt.Sprintf("value %v does not match column type", value)})
			continue
		}

		proposed := map[string]any{field: coerced}
		holds, _, _ := transitionCheck(uc.OnlyWhen, oldRow, proposed)
		if !holds {
			violations = append(violations, Violation{Field: field, Kind: TransitionDisallowed, Message: "no permitted transition matches the current row and proposed value"})
			continue
		}

		validated[field] = coerced
		if uc.RequiresApproval {
			approvalReasons = append(approvalReasons, field+" requires approval")
		}
	}

	if len(violations) > 0 {
		return denied(violations...)
	}
	if len(approvalReasons) > 0 {
		return needsApproval(validated, approvalReasons)
	}
	return allowed(validated)
}

// ValidateDelete checks a delete<Entity> invocation. There are no
// per-column constraints to evaluate; the only gate is the table's
// delete mode, already resolved into tp.Delete by the compiler.
func ValidateDelete(desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, args map[string]any) Result {
	if err := checkStructure(desc.InputSchema, args); err != nil {
		return denied(Violation{Field: "id", Kind: SchemaViolation, Message: err.Error()})
	}
	if !tp.Delete.Allowed() {
		return denied(Violation{Field: "", Kind: UnknownField, Message: "delete is forbidden for this role"})
	}
	validated := map[string]any{"id": args["id"]}
	if tp.Delete.RequiresApproval() {
		return needsApproval(validated, []string{"delete requires approval"})
	}
	return allowed(validated)
}

// ValidateRead checks a get<Entity>/list<Entities> invocation's filters
// against the role's readable columns. Unknown filter fields are
// rejected the same way unknown create/update fields are (spec.md §8,
// scenario 2: tenant columns are never exposed as filters, so an agent
// naming one is simply an unknown field).
func ValidateRead(desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, args map[string]any) Result {
	// Check filter fields against the role's read whitelist before running
	// the JSON-schema structural check: the schema's filter-properties
	// object is itself scoped to permitted columns with
	// additionalProperties:false, so an unpermitted key would otherwise
	// surface as a generic SchemaViolation instead of naming the field.
	if filters, ok := args["filters"].(map[string]any); ok {
		for field := range filters {
			if !tp.Read.Allows(field) || (tp.Tenancy.Kind == policy.TenancyPlanDirect && field == tp.Tenancy.DirectColumn) {
				return denied(Violation{Field: field, Kind: UnknownField, Message: "field is not filterable under this role"})
			}
		}
	}

	if err := checkStructure(desc.InputSchema, args); err != nil {
		return denied(Violation{Field: "filters", Kind: SchemaViolation, Message: err.Error()})
	}

	validated := map[string]any{}
	for k, v := range args {
		validated[k] = v
	}
	return allowed(validated)
}

func sortedCreateFields(create map[string]policy.EffectiveCreateConstraint) []string {
	fields := make([]string, 0, len(create))
	for f := range create {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func sortedUpdateFields(data map[string]any) []string {
	fields := make([]string, 0, len(data))
	for f := range data {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func memberOf(value any, set []any) bool {
	for _, candidate := range set {
		if compareEqual(candidate, value) {
			return true
		}
	}
	return false
}

// coerceToColumn coerces value to the Go type implied by field's SQL
// type. Returns ok=false on a type mismatch the agent must correct.
func coerceToColumn(value any, schemaTable config.TableSchema, field string) (any, bool) {
	col, ok := schemaTable.Column(field)
	if !ok {
		return value, true
	}
	switch col.SQLType {
	case "integer", "bigint", "smallint":
		switch n := value.(type) {
		case float64:
			if n == float64(int64(n)) {
				return int64(n), true
			}
			return nil, false
		case int:
			return int64(n), true
		case int64:
			return n, true
		default:
			return nil, false
		}
	case "numeric", "real", "double precision":
		switch n := value.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		default:
			return nil, false
		}
	case "boolean":
		b, ok := value.(bool)
		return b, ok
	default:
		s, ok := value.(string)
		if !ok && value == nil && col.Nullable {
			return nil, true
		}
		return s, ok
	}
}
