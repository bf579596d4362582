// Package cachekit provides a generic TTL cache with stale-while-revalidate
// semantics, lock-free on the read path via sync.Map. It generalizes a
// pattern that recurs twice in the project this codebase grew out of — an
// auth-context cache and a tool-definition cache, byte-for-byte identical
// apart from the value type — into one generic implementation so the
// catalog's tool-descriptor cache uses a single tested cache rather than a
// third hand-copy.
package cachekit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL cache keyed by string, storing values of type V. A zero
// Cache is not usable; construct with New.
type Cache[V any] struct {
	store sync.Map // map[string]*entry[V]
	ttl   time.Duration
}

type entry[V any] struct {
	value      V
	expiresAt  time.Time
	refreshing atomic.Bool
}

// GetResult holds the result of a cache lookup.
type GetResult[V any] struct {
	Value V
	// Hit is true if an entry was found, fresh or stale.
	Hit bool
	// NeedsRefresh is true exactly once per stale entry: the first caller
	// to observe a stale Get wins the CAS and is responsible for
	// refreshing; subsequent callers see NeedsRefresh=false until either
	// Set or ClearRefreshing runs.
	NeedsRefresh bool
}

// New constructs a Cache with the given TTL.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{ttl: ttl}
}

// Get performs a non-blocking lookup. A stale hit is still returned (with
// Hit=true) so callers can serve it while a single winner refreshes in the
// background.
func (c *Cache[V]) Get(key string) GetResult[V] {
	val, ok := c.store.Load(key)
	if !ok {
		return GetResult[V]{}
	}

	e := val.(*entry[V])
	if time.Now().Before(e.expiresAt) {
		return GetResult[V]{Value: e.value, Hit: true}
	}

	needsRefresh := e.refreshing.CompareAndSwap(false, true)
	return GetResult[V]{Value: e.value, Hit: true, NeedsRefresh: needsRefresh}
}

// Set stores value under key with a fresh TTL, clearing any in-flight
// refresh flag.
func (c *Cache[V]) Set(key string, value V) {
	c.store.Store(key, &entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// ClearRefreshing releases the refresh flag on key without changing its
// value or expiry, for a refresh attempt that failed and should let
// another caller retry.
func (c *Cache[V]) ClearRefreshing(key string) {
	val, ok := c.store.Load(key)
	if !ok {
		return
	}
	val.(*entry[V]).refreshing.Store(false)
}

// Delete removes an entry from the cache.
func (c *Cache[V]) Delete(key string) {
	c.store.Delete(key)
}
