package models

// NonceAcquireRequest asks for the wallet lock plus the next nonce. TTLMs
// bounds how long the caller may hold the lease before the reaper reclaims
// it; zero selects the server default.
type NonceAcquireRequest struct {
	Network       string `json:"network"`
	WalletAddress string `json:"walletAddress"`
	TTLMs         int64  `json:"ttlMs,omitempty"`
}

// NonceAcquireResponse grants a lease. ExpiresAt is unix milliseconds.
type NonceAcquireResponse struct {
	LockID    string `json:"lockId"`
	Nonce     uint64 `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
}

// NonceReleaseRequest returns a lease. TransactionSent tells the gateway
// whether the nonce was consumed: false triggers a rollback attempt so the
// nonce can be handed out again.
type NonceReleaseRequest struct {
	Network         string `json:"network"`
	WalletAddress   string `json:"walletAddress"`
	LockID          string `json:"lockId"`
	TransactionSent bool   `json:"transactionSent"`
}

// NonceReleaseResponse reports the release outcome. Success false with a
// message means the lock id was unknown, usually because the lease already
// expired and was reclaimed.
type NonceReleaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NonceInvalidateRequest drops the cached nonce state for a wallet so the
// next acquire re-reads the chain.
type NonceInvalidateRequest struct {
	Network       string `json:"network"`
	WalletAddress string `json:"walletAddress"`
}

// NonceInvalidateResponse acknowledges an invalidation.
type NonceInvalidateResponse struct {
	Success bool `json:"success"`
}

// LockStatus describes one active lease.
type LockStatus struct {
	LockID    string `json:"lockId"`
	Network   string `json:"network"`
	Address   string `json:"address"`
	Nonce     uint64 `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
	Expired   bool   `json:"isExpired"`
}

// NonceStatusResponse is a diagnostic snapshot of the lock registry.
type NonceStatusResponse struct {
	ActiveLocks int          `json:"activeLocks"`
	Locks       []LockStatus `json:"locks"`
}
