package token

import "time"

// TableAllow is the residual per-table column whitelist carried by a token.
// When AllColumns is true the token places no additional column restriction
// on the table beyond whatever the role policy already grants. Otherwise
// only the listed columns are visible/editable through this token, on top
// of (never in addition to) whatever the role policy grants.
type TableAllow struct {
	AllColumns bool
	Columns    map[string]struct{}
}

// Allows reports whether column is permitted by this whitelist entry.
func (t TableAllow) Allows(column string) bool {
	if t.AllColumns {
		return true
	}
	_, ok := t.Columns[column]
	return ok
}

// Claims is the normalized, immutable view of a verified token. It is the
// contract every downstream component (catalog, validator, query builder)
// reads from; nothing downstream re-parses the wire token.
type Claims struct {
	Role string

	// Tenant is empty for a non-attenuated base role token. Request-time
	// code (the pipeline) is responsible for rejecting empty-tenant claims
	// before they reach catalog lookup; Verify itself does not enforce
	// tenant presence, since base tokens are a valid (if request-unusable)
	// product of the token engine.
	Tenant string

	// ExpiresAt is the earliest expiry embedded in any block of the token.
	// Nil means the token never expires.
	ExpiresAt *time.Time

	// TableAllow is nil when the token carries no table/column whitelist at
	// all (the common case for an un-attenuated internal role token). When
	// non-nil, policy evaluation intersects it with the role's declared
	// column sets.
	TableAllow map[string]TableAllow
}

// IsAttenuated reports whether this claim set carries a tenant, i.e. came
// from an attenuated (agent-usable) token rather than a bare role token.
func (c Claims) IsAttenuated() bool {
	return c.Tenant != ""
}

// Expired reports whether the token has expired as of now.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
