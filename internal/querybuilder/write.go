package querybuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

// BuildCreate renders an INSERT for a create<Entity> invocation. data must
// already be validator-checked and coerced; this function's own
// responsibility is purely SQL shape and tenant-column injection. For a
// directly tenant-owned table the tenant column is always set from
// tenantValue, overriding anything in data — an agent can never choose
// which tenant a row belongs to.
func BuildCreate(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue string, data map[string]any) (PreparedStatement, error) {
	values := map[string]any{}
	for k, v := range data {
		values[k] = v
	}
	if tp.Tenancy.Kind == policy.TenancyPlanDirect {
		values[tp.Tenancy.DirectColumn] = tenantValue
	}

	var cols []string
	for _, c := range schemaTable.Columns {
		if _, ok := values[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) == 0 {
		return PreparedStatement{}, fmt.Errorf("querybuilder: create on table %q has no columns to insert", tp.Table)
	}

	p := &paramBuilder{}
	colList := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		colList[i] = quoteIdent(c)
		placeholders[i] = p.bind(values[c])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdent(tp.Table), strings.Join(colList, ", "), strings.Join(placeholders, ", "), strings.Join(colList, ", "))

	return PreparedStatement{Kind: StatementCreate, Table: tp.Table, SQL: sql, Args: p.args, Columns: cols}, nil
}

// BuildUpdate renders an UPDATE for an update<Entity> invocation, scoped by
// id, the resolved tenant predicate, and (for soft-delete tables) the
// active-row predicate, exactly as spec.md §4.5 requires for mutations.
func BuildUpdate(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue, id string, data map[string]any) (PreparedStatement, error) {
	if len(data) == 0 {
		return PreparedStatement{}, fmt.Errorf("querybuilder: update on table %q has no fields to set", tp.Table)
	}
	fields := make([]string, 0, len(data))
	for k := range data {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	p := &paramBuilder{}
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = quoteIdent(f) + " = " + p.bind(data[f])
	}

	idParam := p.bind(id)
	where := []string{qualify(tp.Table, idColumn(schemaTable)) + " = " + idParam}
	if tenant := tenantPredicate(tp.Table, tp.Tenancy, tenantValue, p); tenant != "" {
		where = append(where, tenant)
	}
	if sd := softDeletePredicate(tp.Table, tp.SoftDelete, p); sd != "" {
		where = append(where, sd)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(tp.Table), strings.Join(sets, ", "), strings.Join(where, " AND "))

	return PreparedStatement{Kind: StatementUpdate, Table: tp.Table, SQL: sql, Args: p.args}, nil
}

// BuildDelete renders a delete<Entity> invocation. A soft-delete-mode table
// is rewritten into the UPDATE that marks the row deleted, per spec.md
// §4.5; a hard-delete table renders an actual DELETE.
func BuildDelete(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue, id string) (PreparedStatement, error) {
	if tp.Delete.IsSoft() {
		if tp.SoftDelete == nil {
			return PreparedStatement{}, fmt.Errorf("querybuilder: table %q has soft delete mode but no soft_delete column declared", tp.Table)
		}
		return buildSoftDelete(tp, schemaTable, tenantValue, id)
	}

	p := &paramBuilder{}
	idParam := p.bind(id)
	where := []string{qualify(tp.Table, idColumn(schemaTable)) + " = " + idParam}
	if tenant := tenantPredicate(tp.Table, tp.Tenancy, tenantValue, p); tenant != "" {
		where = append(where, tenant)
	}
	if sd := softDeletePredicate(tp.Table, tp.SoftDelete, p); sd != "" {
		where = append(where, sd)
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(tp.Table), strings.Join(where, " AND "))
	return PreparedStatement{Kind: StatementDelete, Table: tp.Table, SQL: sql, Args: p.args}, nil
}

// sqlFunctionLiterals are the fixed set of database-side expressions a
// soft_delete.deleted_value may name instead of a literal value (spec.md
// §8 scenario 5 uses NOW()). These come from the schema/rules documents,
// never from agent input, so rendering them unparameterized doesn't
// reopen "no SQL from input".
var sqlFunctionLiterals = map[string]bool{"NOW()": true}

func buildSoftDelete(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue, id string) (PreparedStatement, error) {
	p := &paramBuilder{}
	var set string
	if sqlFunctionLiterals[tp.SoftDelete.DeletedValue] {
		set = quoteIdent(tp.SoftDelete.Column) + " = " + tp.SoftDelete.DeletedValue
	} else {
		set = quoteIdent(tp.SoftDelete.Column) + " = " + p.bind(tp.SoftDelete.DeletedValue)
	}

	idParam := p.bind(id)
	where := []string{qualify(tp.Table, idColumn(schemaTable)) + " = " + idParam}
	if tenant := tenantPredicate(tp.Table, tp.Tenancy, tenantValue, p); tenant != "" {
		where = append(where, tenant)
	}
	where = append(where, softDeletePredicate(tp.Table, tp.SoftDelete, p))

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(tp.Table), set, strings.Join(where, " AND "))
	return PreparedStatement{Kind: StatementDelete, Table: tp.Table, SQL: sql, Args: p.args}, nil
}
