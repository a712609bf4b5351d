package chainclient

import (
	"context"
	"sync"
	"time"
)

// GasRefreshRoutine keeps an EvmClient's fee estimate warm so submissions do
// not pay an extra round trip. One routine runs per account-nonce network.
type GasRefreshRoutine struct {
	client   *EvmClient
	interval time.Duration
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
}

// NewGasRefreshRoutine creates a fee refresh routine for a client.
func NewGasRefreshRoutine(client *EvmClient, interval time.Duration) *GasRefreshRoutine {
	return &GasRefreshRoutine{
		client:   client,
		interval: interval,
		stopChan: nil,
		running:  false,
	}
}

// Start begins the periodic fee updates.
func (r *GasRefreshRoutine) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return // Already running
	}

	r.stopChan = make(chan struct{})
	r.running = true

	go r.run(r.stopChan)
}

// Stop halts the periodic fee updates.
func (r *GasRefreshRoutine) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopChan)
	r.stopChan = nil
	r.running = false
}

// IsRunning returns whether the routine is currently running.
func (r *GasRefreshRoutine) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *GasRefreshRoutine) run(stop chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Perform initial update
	r.refresh()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-stop:
			return
		}
	}
}

func (r *GasRefreshRoutine) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := r.client.RefreshFees(ctx); err != nil {
		r.client.logger.ErrorWithNetwork(r.client.network, "Failed to refresh gas fees: %v", err)
	}
}
