package policy

import (
	"regexp"
	"sort"

	"github.com/corisec/cori/internal/config"
)

// Compile reduces a config.Bundle into one EffectivePolicy, or returns a
// *CompileError carrying every diagnostic found. Compilation is pure and
// deterministic: the same bundle always compiles to a structurally equal
// EffectivePolicy (field order in the resulting maps is irrelevant since
// Go map iteration is never relied upon for SQL rendering downstream).
func Compile(bundle config.Bundle) (*EffectivePolicy, error) {
	c := &diagCollector{}

	tenancyCache := map[string]TenancyPlan{}
	tenancyOK := func(table string) (TenancyPlan, bool) {
		if plan, ok := tenancyCache[table]; ok {
			return plan, true
		}
		plan, ok := resolveTenancy(bundle.Schema, bundle.Rules, table, c)
		if ok {
			tenancyCache[table] = plan
		}
		return plan, ok
	}

	for _, tr := range bundle.Rules.Tables {
		if tr.Tenancy.Kind == config.TenancyGlobal && (tr.Tenancy.DirectColumn != "" || tr.Tenancy.ViaColumn != "") {
			c.err(GlobalTableTenancyConflict, "rules.tables.tenancy", "table declares both global tenancy and a tenant column")
		}
	}

	roles := make(map[string]EffectiveRole, len(bundle.Roles))
	roleNames := sortedKeys(bundle.Roles)
	for _, roleName := range roleNames {
		roleDef := bundle.Roles[roleName]
		pointer := "roles/" + roleName

		if roleDef.ApprovalGroup != "" {
			if _, ok := bundle.Groups[roleDef.ApprovalGroup]; !ok {
				c.err(UnknownGroup, pointer+".approval_group", "role %q references undefined approval group %q", roleName, roleDef.ApprovalGroup)
			}
		}

		tables := make(map[string]EffectiveTablePolicy, len(roleDef.Tables))
		tableNames := sortedKeys(roleDef.Tables)
		for _, tableName := range tableNames {
			tp := roleDef.Tables[tableName]
			tablePointer := pointer + ".tables." + tableName

			schemaTable, ok := bundle.Schema.Table(tableName)
			if !ok {
				c.err(MissingTable, tablePointer, "role %q references table %q not present in schema", roleName, tableName)
				continue
			}

			plan, ok := tenancyOK(tableName)
			if !ok {
				continue
			}

			tableRules, _ := bundle.Rules.Table(tableName)

			eff := EffectiveTablePolicy{
				Table:      tableName,
				Tenancy:    plan,
				SoftDelete: tableRules.SoftDelete,
				Delete:     tp.Delete,
			}

			if tp.Read != nil {
				eff.Read = compileRead(tp.Read, schemaTable, tablePointer+".read", c)
			}
			if len(tp.Create) > 0 {
				eff.Create = compileCreate(tp.Create, schemaTable, bundle.Types, tablePointer+".create", c)
				checkRequiredNonNullCovered(tp.Create, schemaTable, tablePointer+".create", c)
			}
			if len(tp.Update) > 0 {
				eff.Update = compileUpdate(tp.Update, schemaTable, tablePointer+".update", c)
			}
			if tp.Delete == config.DeleteHard && tableRules.SoftDelete != nil {
				c.warn(SoftDeleteInconsistency, tablePointer+".delete", "table %q declares a soft_delete column but role %q deletes hard", tableName, roleName)
			}

			tables[tableName] = eff
		}

		roles[roleName] = EffectiveRole{
			Name:            roleName,
			ApprovalGroup:   roleDef.ApprovalGroup,
			DefaultPageSize: roleDef.DefaultPageSize,
			MaxAffectedRows: roleDef.MaxAffectedRows,
			Tables:          tables,
		}
	}

	if c.hasErrors() {
		return nil, &CompileError{Diagnostics: c.diags}
	}

	return &EffectivePolicy{
		Schema:   bundle.Schema,
		Roles:    roles,
		Groups:   bundle.Groups,
		Warnings: warningsOnly(c.diags),
	}, nil
}

func compileRead(r *config.ReadPolicy, schemaTable config.TableSchema, pointer string, c *diagCollector) *EffectiveReadPolicy {
	eff := &EffectiveReadPolicy{AllColumns: r.All, MaxPerPage: r.MaxPerPage}
	if !r.All {
		eff.Columns = make(map[string]struct{}, len(r.Columns))
		for col := range r.Columns {
			if !schemaTable.HasColumn(col) {
				c.err(MissingColumn, pointer, "read column %q does not exist on table %q", col, schemaTable.Name)
				continue
			}
			eff.Columns[col] = struct{}{}
		}
	}
	return eff
}

func compileCreate(create map[string]config.CreateConstraint, schemaTable config.TableSchema, types config.Types, pointer string, c *diagCollector) map[string]EffectiveCreateConstraint {
	out := make(map[string]EffectiveCreateConstraint, len(create))
	for col, cc := range create {
		if !schemaTable.HasColumn(col) {
			c.err(MissingColumn, pointer+"."+col, "create column %q does not exist on table %q", col, schemaTable.Name)
			continue
		}
		eff := EffectiveCreateConstraint{
			Required:         cc.Required,
			HasDefault:       cc.HasDefault || cc.Default != nil,
			Default:          cc.Default,
			RestrictTo:       cc.RestrictTo,
			RequiresApproval: cc.RequiresApproval,
			Guidance:         cc.Guidance,
		}
		if cc.PatternRef != "" {
			typeDef, ok := types.Lookup(cc.PatternRef)
			if !ok {
				c.err(UnknownType, pointer+"."+col+".pattern_ref", "column %q references undefined type %q", col, cc.PatternRef)
			} else {
				re, err := regexp.Compile(typeDef.RegexPattern)
				if err != nil {
					c.err(UnknownType, pointer+"."+col+".pattern_ref", "type %q has invalid regex: %v", cc.PatternRef, err)
				} else {
					eff.Pattern = re
				}
			}
		}
		out[col] = eff
	}
	return out
}

func checkRequiredNonNullCovered(create map[string]config.CreateConstraint, schemaTable config.TableSchema, pointer string, c *diagCollector) {
	for _, col := range schemaTable.Columns {
		if col.Nullable || col.HasDefault || col.DefaultExpr != "" {
			continue
		}
		cc, present := create[col.Name]
		if !present {
			c.err(RequiredNonNullMissing, pointer+"."+col.Name, "column %q is non-null without a default and must be listed required in create", col.Name)
			continue
		}
		if !cc.Required && !cc.HasDefault && cc.Default == nil {
			c.err(RequiredNonNullMissing, pointer+"."+col.Name, "column %q is non-null without a default and must be required:true or carry a default", col.Name)
		}
	}
}

func compileUpdate(update map[string]config.UpdateConstraint, schemaTable config.TableSchema, pointer string, c *diagCollector) map[string]EffectiveUpdateConstraint {
	out := make(map[string]EffectiveUpdateConstraint, len(update))
	for col, uc := range update {
		if !schemaTable.HasColumn(col) {
			c.err(MissingColumn, pointer+"."+col, "update column %q does not exist on table %q", col, schemaTable.Name)
			continue
		}
		for setIdx, set := range uc.OnlyWhen {
			for predIdx, pred := range set {
				if !schemaTable.HasColumn(pred.Column) {
					c.err(ConstraintRefersUnknownColumn, pointer+"."+col+".only_when", "only_when[%d][%d] references unknown column %q", setIdx, predIdx, pred.Column)
				}
				if pred.RValue.IsRef && !schemaTable.HasColumn(pred.RValue.RefColumn) {
					c.err(ConstraintRefersUnknownColumn, pointer+"."+col+".only_when", "only_when[%d][%d] rvalue references unknown column %q", setIdx, predIdx, pred.RValue.RefColumn)
				}
			}
		}
		out[col] = EffectiveUpdateConstraint{
			OnlyWhen:         uc.OnlyWhen,
			RequiresApproval: uc.RequiresApproval,
			Guidance:         uc.Guidance,
		}
	}
	return out
}

func warningsOnly(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
