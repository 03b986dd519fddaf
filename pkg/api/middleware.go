package api

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries the client's dedup key for ingestion.
const IdempotencyHeader = "Idempotency-Key"

// apiKeyAuth enforces the X-API-Key header when a key is configured. With
// no key configured the middleware is a pass-through (local development).
func apiKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// idempotencyCache remembers the event ID assigned to each Idempotency-Key
// for a TTL. Entries are pruned lazily on access.
type idempotencyCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

type idempotencyEntry struct {
	eventID string
	expires time.Time
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
	}
}

// Lookup returns the event ID previously recorded for the key, if the
// entry is still live.
func (c *idempotencyCache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return "", false
	}
	return entry.eventID, true
}

// Record associates the key with an event ID for the TTL and prunes
// expired entries while it holds the lock.
func (c *idempotencyCache) Record(key, eventID string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = idempotencyEntry{eventID: eventID, expires: now.Add(c.ttl)}
}
