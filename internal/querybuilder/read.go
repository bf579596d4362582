package querybuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

// projectedColumns returns the readable columns of schemaTable, in schema
// order, intersected with tp's compiled read policy. Column projection
// never selects *.
func projectedColumns(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema) []string {
	var cols []string
	for _, c := range schemaTable.Columns {
		if tp.Read.Allows(c.Name) {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func orderByClause(table string, schemaTable config.TableSchema) string {
	keys := schemaTable.PrimaryKey
	if len(keys) == 0 {
		keys = []string{"id"}
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = qualify(table, k)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// BuildGet renders the single-row fetch used both for get<Entity> tool
// invocations and the pipeline's pre-update row fetch (spec.md §4.6 step
// 5), which is why it is exported rather than folded into a read-only
// get-tool path.
func BuildGet(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue, id string) (PreparedStatement, error) {
	cols := projectedColumns(tp, schemaTable)
	if len(cols) == 0 {
		return PreparedStatement{}, fmt.Errorf("querybuilder: no readable columns for table %q under this role", tp.Table)
	}

	p := &paramBuilder{}
	selectList := make([]string, len(cols))
	for i, c := range cols {
		selectList[i] = qualify(tp.Table, c)
	}

	idParam := p.bind(id)
	where := []string{qualify(tp.Table, idColumn(schemaTable)) + " = " + idParam}
	if tenant := tenantPredicate(tp.Table, tp.Tenancy, tenantValue, p); tenant != "" {
		where = append(where, tenant)
	}
	if sd := softDeletePredicate(tp.Table, tp.SoftDelete, p); sd != "" {
		where = append(where, sd)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(selectList, ", "), quoteIdent(tp.Table), strings.Join(where, " AND "))

	return PreparedStatement{Kind: StatementReadOne, Table: tp.Table, SQL: sql, Args: p.args, Columns: cols}, nil
}

// BuildList renders the filtered, paginated multi-row fetch for a
// list<Entities> tool invocation. filters keys must already have been
// validated against the role's readable columns (internal/validator does
// this); BuildList re-checks membership itself so a filter key can never
// reach the rendered SQL as anything but a schema-sourced identifier.
func BuildList(tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, tenantValue string, filters map[string]any, requestedLimit *int, offset, defaultPageSize int) (PreparedStatement, error) {
	cols := projectedColumns(tp, schemaTable)
	if len(cols) == 0 {
		return PreparedStatement{}, fmt.Errorf("querybuilder: no readable columns for table %q under this role", tp.Table)
	}

	p := &paramBuilder{}
	selectList := make([]string, len(cols))
	for i, c := range cols {
		selectList[i] = qualify(tp.Table, c)
	}

	// Agent-supplied filters are bound first, then the server-derived
	// tenant and soft-delete predicates — matching spec.md §8 scenario 1's
	// expected statement shape (filters precede the tenant predicate).
	var where []string
	filterKeys := make([]string, 0, len(filters))
	for k := range filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	for _, k := range filterKeys {
		if !tp.Read.Allows(k) || !schemaTable.HasColumn(k) {
			return PreparedStatement{}, fmt.Errorf("querybuilder: filter column %q is not permitted on table %q", k, tp.Table)
		}
		v := filters[k]
		if list, ok := v.([]any); ok {
			placeholders := make([]string, len(list))
			for i, item := range list {
				placeholders[i] = p.bind(item)
			}
			where = append(where, qualify(tp.Table, k)+" IN ("+strings.Join(placeholders, ", ")+")")
			continue
		}
		where = append(where, qualify(tp.Table, k)+" = "+p.bind(v))
	}

	if tenant := tenantPredicate(tp.Table, tp.Tenancy, tenantValue, p); tenant != "" {
		where = append(where, tenant)
	}
	if sd := softDeletePredicate(tp.Table, tp.SoftDelete, p); sd != "" {
		where = append(where, sd)
	}

	limit := resolveLimit(tp, requestedLimit, defaultPageSize)
	limitParam := p.bind(limit)
	offsetParam := p.bind(offset)

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectList, ", "), quoteIdent(tp.Table))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " " + orderByClause(tp.Table, schemaTable)
	sql += fmt.Sprintf(" LIMIT %s OFFSET %s", limitParam, offsetParam)

	return PreparedStatement{Kind: StatementReadMany, Table: tp.Table, SQL: sql, Args: p.args, Columns: cols}, nil
}

// resolveLimit applies spec.md §4.5's pagination cap: a missing limit
// defaults to defaultPageSize; any requested limit is capped at the
// table's role-specific MaxPerPage, if one is configured.
func resolveLimit(tp policy.EffectiveTablePolicy, requested *int, defaultPageSize int) int {
	limit := defaultPageSize
	if requested != nil {
		limit = *requested
	}
	if tp.Read.MaxPerPage != nil && limit > *tp.Read.MaxPerPage {
		limit = *tp.Read.MaxPerPage
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return limit
}

func idColumn(schemaTable config.TableSchema) string {
	if len(schemaTable.PrimaryKey) == 1 {
		return schemaTable.PrimaryKey[0]
	}
	return "id"
}
