package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	SwapsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_swaps_executed_total",
		Help: "The total number of swap executions by final status",
	}, []string{"network", "status"})

	SwapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_swap_duration_seconds",
		Help:    "Wall time of swap execution from lock acquisition to release",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"network"})

	QuotesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_quotes_served_total",
		Help: "The total number of swap quotes computed",
	}, []string{"network", "pool_type"})

	QuoteCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_quote_cache_hits_total",
		Help: "Quote cache lookups by result",
	}, []string{"result"})

	ApprovalsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_approvals_submitted_total",
		Help: "The total number of allowance approvals submitted",
	}, []string{"network"})

	ActiveLeases = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_leases",
		Help: "The number of wallet locks currently leased out",
	})

	LeasesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_leases_expired_total",
		Help: "The total number of leases reclaimed by the reaper",
	})

	LockWaitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_lock_wait_seconds",
		Help:    "Time spent waiting for a wallet lock",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"network"})

	NonceResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_nonce_resets_total",
		Help: "Nonce cache resynchronizations by reason",
	}, []string{"network", "reason"})

	NonceRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_nonce_rollbacks_total",
		Help: "Nonce rollbacks by outcome",
	}, []string{"network", "outcome"})

	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_confirmations_total",
		Help: "Transaction confirmation outcomes",
	}, []string{"network", "status"})

	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of errors by classified kind",
	}, []string{"network", "error_type"})

	GasPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_gas_price_gwei",
		Help: "Current effective gas price in gwei",
	}, []string{"network"})

	RPCErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rpc_errors_total",
		Help: "RPC failures by operation",
	}, []string{"network", "operation"})
)
