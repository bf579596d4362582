// Package catalog projects a compiled policy.EffectivePolicy onto a
// deterministic, agent-facing list of ToolDescriptors (spec.md §4.3). Tool
// names follow a fixed singular/plural rule; there is no per-table escape
// hatch — a table whose name does not fit the convention is a schema
// authoring concern, out of scope for the core.
package catalog

import "strings"

// singularize applies the fixed, documented entity-naming rule: tables
// ending in "ies" singularize to "y" (categories -> category); otherwise a
// trailing "s" is stripped if present; otherwise the name is used as-is.
func singularize(table string) string {
	if strings.HasSuffix(table, "ies") {
		return strings.TrimSuffix(table, "ies") + "y"
	}
	if strings.HasSuffix(table, "s") {
		return strings.TrimSuffix(table, "s")
	}
	return table
}

// camelCase converts an underscore_separated identifier into CamelCase,
// one segment per underscore-delimited word.
func camelCase(name string) string {
	segments := strings.Split(name, "_")
	var b strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]))
		b.WriteString(seg[1:])
	}
	return b.String()
}

// entityName returns the CamelCase singular entity name for a table, e.g.
// "support_categories" -> "SupportCategory".
func entityName(table string) string {
	return camelCase(singularize(table))
}

// pluralEntityName returns the CamelCase plural entity name for a table
// used by list<Entities>, e.g. "support_categories" -> "SupportCategories".
// It is derived from the table name directly (already plural in schema
// convention), only CamelCased.
func pluralEntityName(table string) string {
	return camelCase(table)
}

func toolNameGet(table string) string    { return "get" + entityName(table) }
func toolNameList(table string) string   { return "list" + pluralEntityName(table) }
func toolNameCreate(table string) string { return "create" + entityName(table) }
func toolNameUpdate(table string) string { return "update" + entityName(table) }
func toolNameDelete(table string) string { return "delete" + entityName(table) }
