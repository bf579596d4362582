package querybuilder

import (
	"fmt"

	"github.com/corisec/cori/internal/policy"
)

// paramBuilder accumulates positional parameters ($1, $2, ...) as clauses
// are rendered, so every caller shares one counter and one argument slice
// for a statement.
type paramBuilder struct {
	args []any
}

func (p *paramBuilder) bind(value any) string {
	p.args = append(p.args, value)
	return fmt.Sprintf("$%d", len(p.args))
}

// tenantPredicate renders the WHERE-clause fragment scoping table to
// tenantValue, per the table's compiled TenancyPlan. Global tables need no
// predicate and return "". Direct tables compare their own tenant column;
// inherited tables walk the compiled join chain with nested EXISTS
// subqueries terminating at the table that actually carries the tenant
// column.
func tenantPredicate(table string, plan policy.TenancyPlan, tenantValue string, p *paramBuilder) string {
	switch plan.Kind {
	case policy.TenancyPlanGlobal:
		return ""
	case policy.TenancyPlanDirect:
		return fmt.Sprintf("%s = %s", qualify(table, plan.DirectColumn), p.bind(tenantValue))
	case policy.TenancyPlanInherited:
		return inheritedTenantPredicate(table, plan, tenantValue, p)
	default:
		return ""
	}
}

func inheritedTenantPredicate(table string, plan policy.TenancyPlan, tenantValue string, p *paramBuilder) string {
	joins := plan.Joins
	last := joins[len(joins)-1]
	clause := fmt.Sprintf("%s = %s", qualify(last.ParentTable, plan.DirectColumn), p.bind(tenantValue))

	for i := len(joins) - 1; i >= 0; i-- {
		j := joins[i]
		childTable := table
		if i > 0 {
			childTable = joins[i-1].ParentTable
		}
		clause = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s WHERE %s = %s AND %s)",
			quoteIdent(j.ParentTable),
			qualify(j.ParentTable, j.ParentColumn),
			qualify(childTable, j.FromColumn),
			clause,
		)
	}
	return clause
}
