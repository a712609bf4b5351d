package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dexgate-hq/dexgate/pkg/executor"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// resolveNetwork maps the request's network name to a configured network and
// checks it belongs to the family named in the path.
func (s *Server) resolveNetwork(r *http.Request, network string) (*executor.Network, error) {
	net, err := s.exec.Network(network)
	if err != nil {
		return nil, err
	}
	family := mux.Vars(r)["family"]
	if family != "" && family != net.Config.Family {
		return nil, gwerr.New(gwerr.Validation, "network %s belongs to family %s, not %s",
			network, net.Config.Family, family)
	}
	return net, nil
}

// leaseTTL clamps the requested TTL into the configured bounds; zero selects
// the default.
func (s *Server) leaseTTL(ttlMs int64) time.Duration {
	if ttlMs <= 0 {
		return s.cfg.Lease.DefaultTTL
	}
	ttl := time.Duration(ttlMs) * time.Millisecond
	if ttl < s.cfg.Lease.MinTTL {
		return s.cfg.Lease.MinTTL
	}
	if ttl > s.cfg.Lease.MaxTTL {
		return s.cfg.Lease.MaxTTL
	}
	return ttl
}

// handleNonceAcquire grants the wallet lock as a lease and, on account-nonce
// networks, reserves the next nonce under it. The caller owns both until it
// releases the lock id or the TTL lapses.
func (s *Server) handleNonceAcquire(w http.ResponseWriter, r *http.Request) {
	var req models.NonceAcquireRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.WalletAddress == "" {
		s.writeError(w, gwerr.New(gwerr.Validation, "walletAddress is required"))
		return
	}
	net, err := s.resolveNetwork(r, req.Network)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lease, err := s.exec.Locks().AcquireLease(r.Context(), req.Network, req.WalletAddress, s.leaseTTL(req.TTLMs))
	if err != nil {
		s.writeError(w, gwerr.Wrap(gwerr.Internal, err, "could not acquire wallet lock"))
		return
	}

	resp := models.NonceAcquireResponse{
		LockID:    lease.LockID,
		ExpiresAt: lease.ExpiresAt.UnixMilli(),
	}

	if net.IsAccountNonce() {
		nonce, err := s.exec.Nonces().NextNonce(r.Context(), net.Evm, req.Network, req.WalletAddress)
		if err != nil {
			// The lease must not stay held with no nonce behind it.
			s.exec.Locks().ReleaseByID(lease.LockID)
			s.writeError(w, gwerr.Classify(err))
			return
		}
		s.exec.Locks().BindLeaseNonce(lease.LockID, nonce)
		resp.Nonce = nonce
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleNonceRelease returns a leased lock. transactionSent=false means the
// nonce handed out with the lease was never consumed, so a rollback is
// attempted before the lock frees. Unknown lock ids answer 200 with
// success=false: the lease either never existed or was already reclaimed.
func (s *Server) handleNonceRelease(w http.ResponseWriter, r *http.Request) {
	var req models.NonceReleaseRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.resolveNetwork(r, req.Network); err != nil {
		s.writeError(w, err)
		return
	}

	lease, found := s.exec.Locks().Lookup(req.LockID)
	if !found {
		s.writeJSON(w, http.StatusOK, models.NonceReleaseResponse{
			Success: false,
			Message: "lock not found",
		})
		return
	}

	if !req.TransactionSent && lease.NonceBound {
		s.exec.Nonces().Rollback(lease.Network, lease.Address, lease.Nonce)
	}
	s.exec.Locks().ReleaseByID(req.LockID)

	s.writeJSON(w, http.StatusOK, models.NonceReleaseResponse{Success: true})
}

// handleNonceInvalidate drops the cached nonce state for a wallet so the next
// acquire re-reads the chain.
func (s *Server) handleNonceInvalidate(w http.ResponseWriter, r *http.Request) {
	var req models.NonceInvalidateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.resolveNetwork(r, req.Network); err != nil {
		s.writeError(w, err)
		return
	}

	s.exec.Nonces().Invalidate(req.Network, req.WalletAddress)
	s.writeJSON(w, http.StatusOK, models.NonceInvalidateResponse{Success: true})
}

// handleNonceStatus snapshots the active leases.
func (s *Server) handleNonceStatus(w http.ResponseWriter, r *http.Request) {
	leases := s.exec.Locks().Snapshot()

	resp := models.NonceStatusResponse{
		ActiveLocks: len(leases),
		Locks:       make([]models.LockStatus, 0, len(leases)),
	}
	for _, lease := range leases {
		resp.Locks = append(resp.Locks, models.LockStatus{
			LockID:    lease.LockID,
			Network:   lease.Network,
			Address:   lease.Address,
			Nonce:     lease.Nonce,
			ExpiresAt: lease.ExpiresAt.UnixMilli(),
			Expired:   lease.Expired,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}
