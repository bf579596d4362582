package querybuilder

import (
	"fmt"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

// DryRunResult bundles the mutation statement a no-commit preview runs
// with the before/after read statements used to sample row state across
// it, exactly the shape db.Executor.DryRun expects. Before and After are
// nil where there is no row to sample: a create has nothing to show
// before the insert runs.
type DryRunResult struct {
	Statement PreparedStatement
	Before    *PreparedStatement
	After     *PreparedStatement
}

// BuildDryRun renders the preview variant of a create, update, or delete
// invocation described by kind: the same statement BuildCreate/
// BuildUpdate/BuildDelete would produce, paired with before/after
// row-sampling queries scoped to id, per spec.md §4.5's "no-commit
// dry-run variant" that "collects affected-row counts and a sample of
// before/after column values". id is ignored for a create.
func BuildDryRun(kind StatementKind, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue, id string, data map[string]any) (DryRunResult, error) {
	switch kind {
	case StatementCreate:
		stmt, err := BuildCreate(tp, schemaTable, tenantValue, data)
		if err != nil {
			return DryRunResult{}, err
		}
		return DryRunResult{Statement: stmt}, nil

	case StatementUpdate:
		stmt, err := BuildUpdate(tp, schemaTable, tenantValue, id, data)
		if err != nil {
			return DryRunResult{}, err
		}
		before, err := BuildGet(tp, schemaTable, tenantValue, id)
		if err != nil {
			return DryRunResult{}, err
		}
		after := before
		return DryRunResult{Statement: stmt, Before: &before, After: &after}, nil

	case StatementDelete:
		stmt, err := BuildDelete(tp, schemaTable, tenantValue, id)
		if err != nil {
			return DryRunResult{}, err
		}
		before, err := BuildGet(tp, schemaTable, tenantValue, id)
		if err != nil {
			return DryRunResult{}, err
		}
		after := before
		return DryRunResult{Statement: stmt, Before: &before, After: &after}, nil

	default:
		return DryRunResult{}, fmt.Errorf("querybuilder: dry run not supported for statement kind %q", kind)
	}
}
