package catalog

import (
	"sort"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/token"
)

// Generate projects role onto a deterministic list of ToolDescriptors,
// applying tableAllow (from the verified token's claims, if any) as an
// additional intersection on top of the role's own declared column sets.
// A nil tableAllow means the token carried no table/column whitelist and
// the role's own policy is authoritative.
func Generate(role policy.EffectiveRole, schema config.SchemaModel, tableAllow map[string]token.TableAllow) []ToolDescriptor {
	var out []ToolDescriptor

	tableNames := make([]string, 0, len(role.Tables))
	for name := range role.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		tp := role.Tables[tableName]

		var allow *token.TableAllow
		if tableAllow != nil {
			a, ok := tableAllow[tableName]
			if !ok {
				// Token whitelist is present but silent on this table:
				// narrow to nothing, consistent with attenuation being
				// strictly restrictive.
				continue
			}
			allow = &a
		}

		schemaTable, _ := schema.Table(tableName)

		if tp.Read != nil {
			readCols := intersectColumns(effectiveReadColumns(tp, schemaTable), allow)
			if len(readCols) > 0 {
				out = append(out, readOneDescriptor(tableName, readCols, role.Name))
				out = append(out, readManyDescriptor(tableName, readCols, schemaTable, tp, role, allow))
			}
		}

		if len(tp.Create) > 0 {
			createCols := intersectConstraintColumns(tp.Create, allow)
			if len(createCols) > 0 {
				out = append(out, createDescriptor(tableName, tp, createCols, role.Name))
			}
		}

		if len(tp.Update) > 0 {
			updateCols := intersectUpdateColumns(tp.Update, allow)
			if len(updateCols) > 0 {
				out = append(out, updateDescriptor(tableName, tp, updateCols, role.Name))
			}
		}

		if tp.Delete.Allowed() {
			out = append(out, deleteDescriptor(tableName, tp, role.Name))
		}
	}

	return out
}

func effectiveReadColumns(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema) []string {
	if tp.Read.AllColumns {
		cols := make([]string, 0, len(schemaTable.Columns))
		for _, c := range schemaTable.Columns {
			cols = append(cols, c.Name)
		}
		return cols
	}
	cols := make([]string, 0, len(tp.Read.Columns))
	for _, c := range schemaTable.Columns {
		if _, ok := tp.Read.Columns[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func intersectColumns(cols []string, allow *token.TableAllow) []string {
	if allow == nil || allow.AllColumns {
		return cols
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if allow.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}

func intersectConstraintColumns(create map[string]policy.EffectiveCreateConstraint, allow *token.TableAllow) []string {
	cols := make([]string, 0, len(create))
	for c := range create {
		if allow == nil || allow.Allows(c) {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

func intersectUpdateColumns(update map[string]policy.EffectiveUpdateConstraint, allow *token.TableAllow) []string {
	cols := make([]string, 0, len(update))
	for c := range update {
		if allow == nil || allow.Allows(c) {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

func readOneDescriptor(table string, readCols []string, roleName string) ToolDescriptor {
	return ToolDescriptor{
		Name:      toolNameGet(table),
		Operation: OpReadOne,
		Table:     table,
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"id"},
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
		},
		Annotations: Annotations{DryRunSupported: false, Role: roleName},
	}
}

func readManyDescriptor(table string, readCols []string, schemaTable config.TableSchema, tp policy.EffectiveTablePolicy, role policy.EffectiveRole, allow *token.TableAllow) ToolDescriptor {
	filterProps := map[string]any{}
	for _, col := range readCols {
		if tp.Tenancy.Kind == policy.TenancyPlanDirect && col == tp.Tenancy.DirectColumn {
			continue
		}
		if def, ok := schemaTable.Column(col); ok && equalityAdmits(def) {
			filterProps[col] = map[string]any{"type": jsonTypeFor(def)}
		}
	}

	maxPerPage := role.DefaultPageSize
	if tp.Read.MaxPerPage != nil && (*tp.Read.MaxPerPage) < maxPerPage {
		maxPerPage = *tp.Read.MaxPerPage
	}

	return ToolDescriptor{
		Name:      toolNameList(table),
		Operation: OpReadMany,
		Table:     table,
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"filters": map[string]any{"type": "object", "properties": filterProps, "additionalProperties": false},
				"limit":   map[string]any{"type": "integer", "minimum": 1, "maximum": maxPerPage},
				"offset":  map[string]any{"type": "integer", "minimum": 0},
			},
		},
		Annotations: Annotations{DryRunSupported: false, Role: role.Name},
	}
}

func createDescriptor(table string, tp policy.EffectiveTablePolicy, cols []string, roleName string) ToolDescriptor {
	props := map[string]any{}
	var required []string
	requiresApproval := false
	for _, col := range cols {
		cc := tp.Create[col]
		prop := map[string]any{}
		if cc.Pattern != nil {
			prop["type"] = "string"
			prop["pattern"] = cc.Pattern.String()
		}
		if len(cc.RestrictTo) > 0 {
			prop["enum"] = cc.RestrictTo
		}
		if cc.HasDefault {
			prop["default"] = cc.Default
		}
		props[col] = prop
		if cc.Required {
			required = append(required, col)
		}
		if cc.RequiresApproval {
			requiresApproval = true
		}
	}
	sort.Strings(required)

	return ToolDescriptor{
		Name:      toolNameCreate(table),
		Operation: OpCreate,
		Table:     table,
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"data"},
			"properties": map[string]any{
				"data": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             required,
					"properties":           props,
				},
			},
		},
		Annotations: Annotations{RequiresApproval: requiresApproval, DryRunSupported: true, Role: roleName},
	}
}

func updateDescriptor(table string, tp policy.EffectiveTablePolicy, cols []string, roleName string) ToolDescriptor {
	props := map[string]any{}
	requiresApproval := false
	for _, col := range cols {
		uc := tp.Update[col]
		prop := map[string]any{}
		if uc.RequiresApproval {
			prop["requires_approval"] = true
			requiresApproval = true
		}
		props[col] = prop
	}

	return ToolDescriptor{
		Name:      toolNameUpdate(table),
		Operation: OpUpdate,
		Table:     table,
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"id", "data"},
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
				"data": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           props,
				},
			},
		},
		Annotations: Annotations{RequiresApproval: requiresApproval, DryRunSupported: true, Role: roleName},
	}
}

func deleteDescriptor(table string, tp policy.EffectiveTablePolicy, roleName string) ToolDescriptor {
	return ToolDescriptor{
		Name:      toolNameDelete(table),
		Operation: OpDelete,
		Table:     table,
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"id"},
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
		},
		Annotations: Annotations{
			RequiresApproval: tp.Delete.RequiresApproval(),
			DryRunSupported:  true,
			Role:             roleName,
		},
	}
}

func equalityAdmits(col config.ColumnDef) bool {
	switch col.SQLType {
	case "json", "jsonb", "bytea":
		return false
	default:
		return true
	}
}

func jsonTypeFor(col config.ColumnDef) string {
	switch col.SQLType {
	case "integer", "bigint", "smallint":
		return "integer"
	case "boolean":
		return "boolean"
	case "numeric", "real", "double precision":
		return "number"
	default:
		return "string"
	}
}
