package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/corisec/cori/internal/token"
)

// Fingerprint computes the cache key the tool catalog is deterministic
// in: (role, tenant, claim_whitelist_hash), per spec.md §2/§9. Two
// principals with the same role, tenant, and table/column whitelist
// always derive byte-identical tool lists, so the fingerprint is a valid
// cache key.
func Fingerprint(role, tenant string, tableAllow map[string]token.TableAllow) string {
	return role + "\x00" + tenant + "\x00" + whitelistHash(tableAllow)
}

func whitelistHash(tableAllow map[string]token.TableAllow) string {
	if tableAllow == nil {
		return "-"
	}
	type wire struct {
		Table      string   `json:"table"`
		AllColumns bool     `json:"all_columns"`
		Columns    []string `json:"columns,omitempty"`
	}
	tables := make([]string, 0, len(tableAllow))
	for t := range tableAllow {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	entries := make([]wire, 0, len(tables))
	for _, t := range tables {
		allow := tableAllow[t]
		var cols []string
		if !allow.AllColumns {
			for c := range allow.Columns {
				cols = append(cols, c)
			}
			sort.Strings(cols)
		}
		entries = append(entries, wire{Table: t, AllColumns: allow.AllColumns, Columns: cols})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return "-"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
