// Package quotes caches executable swap quotes for a short window so a client
// can commit to exactly the route it was shown.
package quotes

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// CachedQuote pairs a computed route with the request that produced it. The
// request is kept so execution can re-validate wallet and pool against what
// was quoted.
type CachedQuote struct {
	ID        string
	Network   string
	Request   models.SwapRequest
	Route     *dex.Route
	CreatedAt time.Time
}

// Cache stores executable quotes keyed by id until they expire or are
// consumed by a confirmed execution.
type Cache struct {
	mu    sync.RWMutex
	cache map[string]*CachedQuote
	ttl   time.Duration
}

// NewCache creates a quote cache with the given lifetime per entry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: make(map[string]*CachedQuote),
		ttl:   ttl,
	}
}

// Put stores a quote under a fresh id and returns the cached entry.
func (c *Cache) Put(network string, req models.SwapRequest, route *dex.Route) *CachedQuote {
	entry := &CachedQuote{
		ID:        uuid.New().String(),
		Network:   network,
		Request:   req,
		Route:     route,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep keeps abandoned quotes from accumulating.
	for id, cached := range c.cache {
		if time.Since(cached.CreatedAt) > c.ttl {
			delete(c.cache, id)
		}
	}

	c.cache[entry.ID] = entry
	return entry
}

// Get retrieves a quote if it is still live. An expired quote is
// indistinguishable from one that never existed.
func (c *Cache) Get(id string) (*CachedQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.cache[id]
	if !exists {
		metrics.QuoteCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}

	if time.Since(cached.CreatedAt) > c.ttl {
		delete(c.cache, id)
		metrics.QuoteCacheHits.WithLabelValues("expired").Inc()
		return nil, false
	}

	metrics.QuoteCacheHits.WithLabelValues("hit").Inc()
	return cached, true
}

// Delete consumes a quote. Called only once the execution it backed was
// confirmed on chain; pending and failed executions leave the entry in place
// until the TTL retires it.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

// Len reports the number of entries currently stored, including any that
// expired but were not swept yet.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear removes all cached entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*CachedQuote)
}
