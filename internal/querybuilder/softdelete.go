package querybuilder

import "github.com/corisec/cori/internal/config"

// softDeletePredicate renders the "AND <column> IS <active_value>" fragment
// spec.md §4.5 requires on every list/get/update/delete against a
// soft-delete table. ActiveValue of "NULL" renders an unparameterized IS
// NULL, matching the common deleted_at-column convention; any other value
// is bound as a positional parameter.
func softDeletePredicate(table string, sd *config.SoftDelete, p *paramBuilder) string {
	if sd == nil {
		return ""
	}
	if sd.ActiveValue == "NULL" {
		return qualify(table, sd.Column) + " IS NULL"
	}
	return qualify(table, sd.Column) + " = " + p.bind(sd.ActiveValue)
}
