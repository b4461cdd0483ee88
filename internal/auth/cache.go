package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL-based in-memory cache of authenticated principals, keyed by
// API key. Uses sync.Map for lock-free reads on the hot path.
//
// Stale-while-revalidate: when an entry expires, Get still returns the stale
// principal immediately and signals that a background refresh is needed, so
// no request after cold start ever waits on the registry plus bcrypt.
type Cache struct {
	store sync.Map // map[string]*cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	principal  *Principal
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// GetResult holds the result of a cache lookup.
type GetResult struct {
	Principal    *Principal
	Hit          bool // a value was found, fresh or stale
	NeedsRefresh bool // the entry expired and this caller won the refresh slot
}

// Get looks up the API key.
//
//   - Fresh hit: {Principal, Hit=true, NeedsRefresh=false}
//   - Stale hit: {Principal, Hit=true, NeedsRefresh=true}, exactly one
//     caller per expiry gets the refresh signal
//   - Miss:      {nil, Hit=false, NeedsRefresh=false}
func (c *Cache) Get(key string) GetResult {
	val, ok := c.store.Load(key)
	if !ok {
		return GetResult{}
	}

	entry := val.(*cacheEntry)

	if time.Now().Before(entry.expiresAt) {
		return GetResult{Principal: entry.principal, Hit: true}
	}

	// CompareAndSwap ensures only one caller triggers the refresh.
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return GetResult{
		Principal:    entry.principal,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a principal with the configured TTL.
func (c *Cache) Set(key string, principal *Principal) {
	c.store.Store(key, &cacheEntry{
		principal: principal,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry. Called when a background refresh fails so the
// next stale read retries instead of serving the dead entry forever.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}
