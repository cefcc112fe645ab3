package auth

import (
	"sync"
	"time"

	"dwv-scraper/models"
)

// SessionCache stores validated sessions keyed by a credential-derived key.
// Backed by an in-process map here; the interface exists so deployments with
// multiple instances can plug in a shared TTL store.
type SessionCache interface {
	Get(key string) (*models.Session, bool)
	Put(key string, session *models.Session, ttl time.Duration)
	Clear(key string)
}

// CacheKey derives the session-cache key for an account. The password is
// never part of the key.
func CacheKey(email string) string {
	return "session_" + email
}

type cacheEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// MemorySessionCache is a mutex-guarded in-memory SessionCache with lazy
// eviction on Get. No background sweep; entries live until looked up past
// their TTL or explicitly cleared.
type MemorySessionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewMemorySessionCache creates an empty MemorySessionCache.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached session for key, lazily evicting expired entries.
func (c *MemorySessionCache) Get(key string) (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.session, true
}

// Put stores a session under key for the given TTL, replacing any previous
// entry whole.
func (c *MemorySessionCache) Put(key string, session *models.Session, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		session:   session,
		expiresAt: time.Now().Add(ttl),
	}
}

// Clear removes the entry for key, if any.
func (c *MemorySessionCache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
