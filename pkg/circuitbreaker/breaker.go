// Package circuitbreaker stops transaction submission to a network that keeps
// failing, so a broken RPC endpoint or a drained gas wallet does not burn
// through nonces and fees.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/logger"
)

// CircuitBreaker trips after a burst of submit failures on one network and
// holds submissions until the reset timeout passes or an operator resets it.
type CircuitBreaker struct {
	network       string
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	mu            sync.Mutex
	logger        logger.Logger
}

// New creates a circuit breaker for one network.
func New(network string, enabled bool, threshold int, window, resetTimeout time.Duration, log logger.Logger) *CircuitBreaker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &CircuitBreaker{
		network:       network,
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		logger:        log,
	}
}

// RecordFailure counts a submit failure and trips the circuit when the
// threshold is reached inside the window. Returns whether the circuit is open
// after recording.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if cb.tripped {
		if time.Since(cb.tripTime) > cb.resetTimeout {
			cb.logger.NoticeWithNetwork(cb.network, "Circuit breaker reset after %s timeout", cb.resetTimeout)
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true
		}
	}

	// Failures older than the window do not count toward the threshold.
	if time.Since(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		cb.logger.ErrorWithNetwork(cb.network, "Circuit breaker tripped: %d failures in %s",
			cb.failureCount, cb.failureWindow)
		return true
	}

	return false
}

// IsOpen reports whether submissions are currently blocked. A tripped circuit
// whose reset timeout has elapsed closes itself on the next check.
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.tripped && time.Since(cb.tripTime) > cb.resetTimeout {
		cb.logger.NoticeWithNetwork(cb.network, "Circuit breaker reset after %s timeout", cb.resetTimeout)
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// Reset closes the circuit immediately. Exposed through the admin API.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.tripped {
		cb.logger.NoticeWithNetwork(cb.network, "Circuit breaker reset manually")
	}
	cb.tripped = false
	cb.failureCount = 0
}

// State summarizes the breaker for status reporting.
type State struct {
	Enabled      bool      `json:"enabled"`
	Open         bool      `json:"open"`
	FailureCount int       `json:"failureCount"`
	LastFailure  time.Time `json:"lastFailure,omitempty"`
	TripTime     time.Time `json:"tripTime,omitempty"`
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return State{
		Enabled:      cb.enabled,
		Open:         cb.tripped,
		FailureCount: cb.failureCount,
		LastFailure:  cb.lastFailure,
		TripTime:     cb.tripTime,
	}
}

// IsEnabled reports whether the breaker is active.
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.enabled
}
