package catalog

import (
	"time"

	"github.com/corisec/cori/internal/cachekit"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/token"
)

// Cache memoizes Generate by the (role, tenant, claim_whitelist_hash)
// fingerprint, so the common per-request cost is a lookup rather than a
// rebuild (spec.md §9, "Catalog cache"). It must be invalidated whenever
// the backing EffectivePolicy is swapped on reload, since a stale
// fingerprint could otherwise serve tools for a policy that no longer
// applies — callers own that invalidation by constructing a fresh Cache
// per policy.Handle swap.
type Cache struct {
	store *cachekit.Cache[[]ToolDescriptor]
}

// NewCache constructs a catalog cache with the given TTL as the
// stale-while-revalidate horizon.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: cachekit.New[[]ToolDescriptor](ttl)}
}

// Get returns the tool descriptors for (role, tenant, tableAllow),
// computing and caching them on a miss or a won stale-refresh race.
func (c *Cache) Get(role policy.EffectiveRole, schema config.SchemaModel, tenant string, tableAllow map[string]token.TableAllow) []ToolDescriptor {
	key := Fingerprint(role.Name, tenant, tableAllow)

	result := c.store.Get(key)
	if result.Hit && !result.NeedsRefresh {
		return result.Value
	}
	if result.Hit && result.NeedsRefresh {
		// The stale value is not served: it is regenerated on this same
		// call and the fresh value returned, since catalog generation is
		// pure and cheap (no I/O), unlike the auth/registry caches this
		// pattern is grounded on.
		fresh := Generate(role, schema, tableAllow)
		c.store.Set(key, fresh)
		return fresh
	}

	fresh := Generate(role, schema, tableAllow)
	c.store.Set(key, fresh)
	return fresh
}

// Invalidate drops one fingerprint's cached entry, e.g. after an
// approval-driven policy change for a single principal.
func (c *Cache) Invalidate(role, tenant string, tableAllow map[string]token.TableAllow) {
	c.store.Delete(Fingerprint(role, tenant, tableAllow))
}
