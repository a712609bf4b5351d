package locks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dexgate-hq/dexgate/pkg/metrics"
)

// lease is a wallet lock held by an external caller, identified by a lock id
// instead of a release closure so it survives process boundaries on the
// caller side.
type lease struct {
	id         string
	network    string
	address    string
	nonce      uint64
	nonceBound bool
	expiresAt  time.Time
	release    ReleaseFunc
}

// LeaseInfo is a read-only view of an active lease. NonceBound distinguishes
// a bound nonce of zero from no nonce at all.
type LeaseInfo struct {
	LockID     string
	Network    string
	Address    string
	Nonce      uint64
	NonceBound bool
	ExpiresAt  time.Time
	Expired    bool
}

// AcquireLease takes the wallet lock and registers it under a fresh lock id
// with the given time-to-live. The caller owns the lock until it releases the
// id or the reaper reclaims it after expiry.
func (r *Registry) AcquireLease(ctx context.Context, network, address string, ttl time.Duration) (LeaseInfo, error) {
	release, err := r.Acquire(ctx, network, address)
	if err != nil {
		return LeaseInfo{}, err
	}

	l := &lease{
		id:        uuid.New().String(),
		network:   network,
		address:   NewKey(network, address).Address,
		expiresAt: time.Now().Add(ttl),
		release:   release,
	}

	r.mu.Lock()
	r.leases[l.id] = l
	r.mu.Unlock()

	metrics.ActiveLeases.Inc()
	r.logger.DebugWithNetwork(network, "Leased wallet lock %s for %s (ttl %s)", l.id, l.address, ttl)

	return leaseInfo(l, time.Now()), nil
}

// BindLeaseNonce records the nonce handed out under a lease so expiry can
// roll it back. Returns false if the lease no longer exists.
func (r *Registry) BindLeaseNonce(lockID string, nonce uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leases[lockID]
	if !ok {
		return false
	}
	l.nonce = nonce
	l.nonceBound = true
	return true
}

// Lookup returns a snapshot of an active lease.
func (r *Registry) Lookup(lockID string) (LeaseInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leases[lockID]
	if !ok {
		return LeaseInfo{}, false
	}
	return leaseInfo(l, time.Now()), true
}

// ReleaseByID releases the lease and its underlying wallet lock. Unknown ids
// are a safe no-op returning false: the lease either never existed or was
// already reclaimed by the reaper.
func (r *Registry) ReleaseByID(lockID string) bool {
	r.mu.Lock()
	l, ok := r.leases[lockID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.leases, lockID)
	r.mu.Unlock()

	l.release()
	metrics.ActiveLeases.Dec()
	r.logger.DebugWithNetwork(l.network, "Released wallet lock %s for %s", lockID, l.address)
	return true
}

// ReapExpired reclaims every lease past its deadline: the expiry hook runs
// first so nonce state can be rolled back, then the wallet lock is released
// to the next waiter. Returns the number of leases reclaimed.
func (r *Registry) ReapExpired() int {
	now := time.Now()

	r.mu.Lock()
	var expired []*lease
	for id, l := range r.leases {
		if now.After(l.expiresAt) {
			delete(r.leases, id)
			expired = append(expired, l)
		}
	}
	onExpire := r.onExpire
	r.mu.Unlock()

	for _, l := range expired {
		if onExpire != nil && l.nonceBound {
			onExpire(l.network, l.address, l.nonce)
		}
		l.release()
		metrics.ActiveLeases.Dec()
		metrics.LeasesExpired.Inc()
		r.logger.NoticeWithNetwork(l.network, "Reclaimed expired lock %s for wallet %s", l.id, l.address)
	}
	return len(expired)
}

// Snapshot lists all active leases for diagnostics.
func (r *Registry) Snapshot() []LeaseInfo {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]LeaseInfo, 0, len(r.leases))
	for _, l := range r.leases {
		infos = append(infos, leaseInfo(l, now))
	}
	return infos
}

func leaseInfo(l *lease, now time.Time) LeaseInfo {
	return LeaseInfo{
		LockID:     l.id,
		Network:    l.network,
		Address:    l.address,
		Nonce:      l.nonce,
		NonceBound: l.nonceBound,
		ExpiresAt:  l.expiresAt,
		Expired:    now.After(l.expiresAt),
	}
}
