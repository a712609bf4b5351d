// Package locks serializes transaction submission per wallet. Each
// (network, wallet) pair has at most one holder at a time and waiters are
// granted the lock in arrival order.
package locks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/logger"
)

// Key identifies one wallet on one network. Addresses are compared
// case-insensitively, so the same wallet written with different hex casing
// maps to the same lock.
type Key struct {
	Network string
	Address string
}

// NewKey builds a lock key with the address normalized to lower case.
func NewKey(network, address string) Key {
	return Key{Network: network, Address: strings.ToLower(address)}
}

// ReleaseFunc returns the lock. It is safe to call more than once; only the
// first call has an effect.
type ReleaseFunc func()

// queue tracks the hold state of one wallet lock. Waiters are granted
// strictly in append order.
type queue struct {
	held    bool
	waiters []chan struct{}
}

// Registry hands out per-wallet locks and tracks leases held by external
// callers.
type Registry struct {
	mu     sync.Mutex
	queues map[Key]*queue
	leases map[string]*lease

	onExpire func(network, address string, nonce uint64)

	reaperMu       sync.Mutex
	reaperInterval time.Duration
	stopChan       chan struct{}
	running        bool

	logger logger.Logger
}

// NewRegistry creates a lock registry. The cleanup interval controls how
// often the reaper scans for expired leases once started.
func NewRegistry(cleanupInterval time.Duration, log logger.Logger) *Registry {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Registry{
		queues:         make(map[Key]*queue),
		leases:         make(map[string]*lease),
		reaperInterval: cleanupInterval,
		logger:         log,
	}
}

// OnLeaseExpired registers the hook the reaper invokes for each reclaimed
// lease, before the underlying lock is released. The nonce cache uses it to
// roll back nonces that were handed out but never consumed.
func (r *Registry) OnLeaseExpired(fn func(network, address string, nonce uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// Acquire blocks until the wallet lock is free or ctx is done. The returned
// release function must be called exactly once when the critical section
// ends; extra calls are no-ops.
func (r *Registry) Acquire(ctx context.Context, network, address string) (ReleaseFunc, error) {
	key := NewKey(network, address)

	r.mu.Lock()
	q := r.queues[key]
	if q == nil {
		q = &queue{}
		r.queues[key] = q
	}
	if !q.held {
		q.held = true
		r.mu.Unlock()
		return r.releaseFunc(key), nil
	}

	wait := make(chan struct{})
	q.waiters = append(q.waiters, wait)
	r.mu.Unlock()

	select {
	case <-wait:
		return r.releaseFunc(key), nil
	case <-ctx.Done():
		r.mu.Lock()
		if removeWaiter(q, wait) {
			r.mu.Unlock()
			return nil, ctx.Err()
		}
		// The grant raced the cancellation and we already own the lock:
		// hand it straight to the next waiter.
		r.grantNextLocked(key, q)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock only if it is immediately free.
func (r *Registry) TryAcquire(network, address string) (ReleaseFunc, bool) {
	key := NewKey(network, address)

	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queues[key]
	if q == nil {
		q = &queue{}
		r.queues[key] = q
	}
	if q.held {
		return nil, false
	}
	q.held = true
	return r.releaseFunc(key), true
}

func (r *Registry) releaseFunc(key Key) ReleaseFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if q := r.queues[key]; q != nil {
				r.grantNextLocked(key, q)
			}
			r.mu.Unlock()
		})
	}
}

// grantNextLocked passes holdership to the oldest waiter, or frees the lock
// when nobody is waiting. Callers must hold r.mu.
func (r *Registry) grantNextLocked(key Key, q *queue) {
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.held = false
	// Drop idle queues so the map does not grow with every wallet ever seen.
	delete(r.queues, key)
}

func removeWaiter(q *queue, ch chan struct{}) bool {
	for i, w := range q.waiters {
		if w == ch {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// QueueDepth reports how many callers are waiting on a wallet lock, not
// counting the current holder.
func (r *Registry) QueueDepth(network, address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q := r.queues[NewKey(network, address)]; q != nil {
		return len(q.waiters)
	}
	return 0
}
