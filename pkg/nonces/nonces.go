// Package nonces tracks the next usable nonce per wallet on account-nonce
// networks. The cache lets back-to-back submissions advance serially without
// waiting for the chain's pending count to catch up, while stale guards stop
// a wedged cache from running away from reality.
package nonces

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
)

// Reader supplies the chain's pending transaction count for an address. It is
// satisfied by the account-nonce chain clients.
type Reader interface {
	PendingNonce(ctx context.Context, address string) (uint64, error)
}

// Cache holds per-wallet nonce state.
type Cache struct {
	// Per-wallet data structures
	wallets map[locks.Key]*walletNonceData
	// Global lock for accessing the wallets map
	mu sync.RWMutex

	// maxGap is how far the cached value may lead the chain's pending count
	// before it is discarded as stale.
	maxGap uint64
	// maxAge is how long a cached value stays trusted without a refresh.
	maxAge time.Duration

	logger logger.Logger
	now    func() time.Time
}

// walletNonceData holds nonce data for a single wallet on one network
type walletNonceData struct {
	// Next nonce to hand out
	nextNonce uint64
	// Whether nextNonce holds a real value yet
	primed bool
	// Last time the value was written
	updatedAt time.Time
	// Wallet-specific mutex for nonce operations
	mu sync.Mutex
}

// NewCache creates a nonce cache with the given staleness bounds.
func NewCache(maxGap uint64, maxAge time.Duration, log logger.Logger) *Cache {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Cache{
		wallets: make(map[locks.Key]*walletNonceData),
		maxGap:  maxGap,
		maxAge:  maxAge,
		logger:  log,
		now:     time.Now,
	}
}

// initializeWallet ensures wallet data is initialized
func (c *Cache) initializeWallet(key locks.Key) *walletNonceData {
	c.mu.RLock()
	data, exists := c.wallets[key]
	c.mu.RUnlock()
	if exists {
		return data
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if data, exists = c.wallets[key]; exists {
		return data
	}
	data = &walletNonceData{}
	c.wallets[key] = data
	return data
}

// NextNonce reserves and returns the next usable nonce for the wallet. The
// chain's pending count is fetched on every call and fused with the cache:
// the larger of the two wins, except when the cached value is stale, in which
// case the chain's value is taken. The handed-out nonce plus one is stored so
// consecutive calls advance serially.
//
// Callers are expected to hold the wallet lock, which serializes handouts for
// a wallet across the whole gateway.
func (c *Cache) NextNonce(ctx context.Context, reader Reader, network, address string) (uint64, error) {
	key := locks.NewKey(network, address)
	data := c.initializeWallet(key)

	data.mu.Lock()
	defer data.mu.Unlock()

	pending, err := reader.PendingNonce(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce for %s: %v", key.Address, err)
	}

	now := c.now()
	next := pending
	if data.primed {
		switch {
		case pending >= data.nextNonce:
			// The chain caught up with or passed the cache, its value wins.
			next = pending
		case data.nextNonce-pending >= c.maxGap:
			c.logger.NoticeWithNetwork(network, "Nonce cache for %s is %d ahead of chain (pending %d), resetting",
				key.Address, data.nextNonce-pending, pending)
			metrics.NonceResets.WithLabelValues(network, "gap").Inc()
			next = pending
		case now.Sub(data.updatedAt) >= c.maxAge:
			c.logger.NoticeWithNetwork(network, "Nonce cache for %s older than %s, resetting to pending %d",
				key.Address, c.maxAge, pending)
			metrics.NonceResets.WithLabelValues(network, "age").Inc()
			next = pending
		default:
			next = data.nextNonce
		}
	}

	data.nextNonce = next + 1
	data.primed = true
	data.updatedAt = now

	c.logger.DebugWithNetwork(network, "Handing out nonce %d for %s (pending %d)", next, key.Address, pending)
	return next, nil
}

// Rollback makes a handed-out nonce available again, but only when no later
// handout happened in between: the stored value must be exactly nonce+1.
// Returns whether the rollback was applied.
func (c *Cache) Rollback(network, address string, nonce uint64) bool {
	key := locks.NewKey(network, address)

	c.mu.RLock()
	data, exists := c.wallets[key]
	c.mu.RUnlock()
	if !exists {
		metrics.NonceRollbacks.WithLabelValues(network, "no_entry").Inc()
		return false
	}

	data.mu.Lock()
	defer data.mu.Unlock()

	if !data.primed || data.nextNonce != nonce+1 {
		c.logger.DebugWithNetwork(network, "Skipping nonce rollback for %s: cached %d, requested %d",
			key.Address, data.nextNonce, nonce)
		metrics.NonceRollbacks.WithLabelValues(network, "skipped").Inc()
		return false
	}

	data.nextNonce = nonce
	data.updatedAt = c.now()
	c.logger.InfoWithNetwork(network, "Rolled back nonce %d for %s", nonce, key.Address)
	metrics.NonceRollbacks.WithLabelValues(network, "applied").Inc()
	return true
}

// Invalidate drops the cached state for a wallet so the next handout re-reads
// the chain. Used after submit errors that indicate the cache is wrong.
func (c *Cache) Invalidate(network, address string) {
	key := locks.NewKey(network, address)

	c.mu.Lock()
	_, existed := c.wallets[key]
	delete(c.wallets, key)
	c.mu.Unlock()

	if existed {
		c.logger.InfoWithNetwork(network, "Invalidated nonce cache for %s", key.Address)
		metrics.NonceResets.WithLabelValues(network, "invalidate").Inc()
	}
}

// Peek returns the cached next nonce without advancing it.
func (c *Cache) Peek(network, address string) (uint64, bool) {
	key := locks.NewKey(network, address)

	c.mu.RLock()
	data, exists := c.wallets[key]
	c.mu.RUnlock()
	if !exists {
		return 0, false
	}

	data.mu.Lock()
	defer data.mu.Unlock()
	if !data.primed {
		return 0, false
	}
	return data.nextNonce, true
}
