package policy

import "github.com/corisec/cori/internal/config"

// TenancyPlanKind is the resolved shape of a table's tenant scoping.
type TenancyPlanKind string

const (
	TenancyPlanDirect    TenancyPlanKind = "direct"
	TenancyPlanInherited TenancyPlanKind = "inherited"
	TenancyPlanGlobal    TenancyPlanKind = "global"
)

// JoinStep is one hop of an inherited-tenancy join plan: FromColumn on the
// child table references ParentColumn on ParentTable.
type JoinStep struct {
	FromColumn   string
	ParentTable  string
	ParentColumn string
}

// TenancyPlan is the compiled, finite form of a table's tenancy rule.
// Direct tables carry DirectColumn on Table itself; inherited tables carry
// a non-empty Joins chain ending at a table whose DirectColumn is the
// tenant column actually compared against the token's tenant claim.
type TenancyPlan struct {
	Kind         TenancyPlanKind
	Table        string
	DirectColumn string
	Joins        []JoinStep
}

const maxInheritanceHops = 3

// resolveTenancy computes the finite tenancy plan for table, walking
// inherited chains up to maxInheritanceHops and rejecting cycles.
func resolveTenancy(schema config.SchemaModel, rules config.Rules, table string, c *diagCollector) (TenancyPlan, bool) {
	visiting := map[string]bool{}
	return resolveTenancyChain(schema, rules, table, table, visiting, 0, c)
}

func resolveTenancyChain(schema config.SchemaModel, rules config.Rules, origin, table string, visiting map[string]bool, depth int, c *diagCollector) (TenancyPlan, bool) {
	if visiting[table] {
		c.err(InheritedTenantCycle, "rules.tables."+origin+".tenancy", "inherited tenancy chain starting at %q cycles back to %q", origin, table)
		return TenancyPlan{}, false
	}
	if depth > maxInheritanceHops {
		c.err(InheritedTenantTooDeep, "rules.tables."+origin+".tenancy", "inherited tenancy chain starting at %q exceeds %d hops", origin, maxInheritanceHops)
		return TenancyPlan{}, false
	}
	visiting[table] = true

	tr, ok := rules.Table(table)
	if !ok {
		c.err(TenantColumnMissing, "rules.tables."+table, "table %q has no tenancy rule declared", table)
		return TenancyPlan{}, false
	}

	switch tr.Tenancy.Kind {
	case config.TenancyGlobal:
		return TenancyPlan{Kind: TenancyPlanGlobal, Table: origin}, true

	case config.TenancyDirect:
		sch, ok := schema.Table(table)
		if !ok {
			c.err(MissingTable, "schema.tables."+table, "table %q referenced by tenancy rule does not exist in schema", table)
			return TenancyPlan{}, false
		}
		if !sch.HasColumn(tr.Tenancy.DirectColumn) {
			c.err(TenantColumnMissing, "rules.tables."+table+".tenancy.tenant_direct", "direct tenant column %q does not exist on table %q", tr.Tenancy.DirectColumn, table)
			return TenancyPlan{}, false
		}
		if depth == 0 {
			return TenancyPlan{Kind: TenancyPlanDirect, Table: origin, DirectColumn: tr.Tenancy.DirectColumn}, true
		}
		return TenancyPlan{Kind: TenancyPlanInherited, Table: origin, DirectColumn: tr.Tenancy.DirectColumn}, true

	case config.TenancyInherited:
		childSchema, ok := schema.Table(table)
		if !ok {
			c.err(MissingTable, "schema.tables."+table, "table %q does not exist in schema", table)
			return TenancyPlan{}, false
		}
		if !childSchema.HasColumn(tr.Tenancy.ViaColumn) {
			c.err(MissingColumn, "rules.tables."+table+".tenancy.via", "inherited tenancy 'via' column %q does not exist on table %q", tr.Tenancy.ViaColumn, table)
			return TenancyPlan{}, false
		}
		parentTable, ok := schema.Table(tr.Tenancy.ReferencesTable)
		if !ok {
			c.err(MissingTable, "rules.tables."+table+".tenancy.references", "inherited tenancy references unknown table %q", tr.Tenancy.ReferencesTable)
			return TenancyPlan{}, false
		}
		fk, ok := childSchema.ForeignKeyOn(tr.Tenancy.ViaColumn)
		parentColumn := "id"
		if ok {
			parentColumn = fk.OtherColumn
		} else if len(parentTable.PrimaryKey) == 1 {
			parentColumn = parentTable.PrimaryKey[0]
		}

		parentPlan, ok := resolveTenancyChain(schema, rules, origin, tr.Tenancy.ReferencesTable, visiting, depth+1, c)
		if !ok {
			return TenancyPlan{}, false
		}
		step := JoinStep{FromColumn: tr.Tenancy.ViaColumn, ParentTable: tr.Tenancy.ReferencesTable, ParentColumn: parentColumn}
		plan := TenancyPlan{
			Kind:         TenancyPlanInherited,
			Table:        origin,
			DirectColumn: parentPlan.DirectColumn,
			Joins:        append([]JoinStep{step}, parentPlan.Joins...),
		}
		return plan, true

	default:
		c.err(TenantColumnMissing, "rules.tables."+table+".tenancy", "table %q has no recognized tenancy kind", table)
		return TenancyPlan{}, false
	}
}
