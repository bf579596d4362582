// Package querybuilder renders PreparedStatements from a resolved
// EffectivePolicy table entry, a schema-model row shape, and validated
// arguments (spec.md §4.5). Every identifier in the rendered SQL text comes
// from the schema model or the compiled tenancy plan — never from agent
// input — and every literal value is bound as a positional parameter.
package querybuilder

import "strings"

// quoteIdent applies Postgres identifier quoting, doubling any embedded
// double quote. Every caller in this package passes table/column names
// sourced from config.SchemaModel or policy.TenancyPlan, never from raw
// agent arguments.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualify(table, column string) string {
	return quoteIdent(table) + "." + quoteIdent(column)
}
