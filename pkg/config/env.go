package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/logger"
)

const (
	// FamilyEthereum marks account-nonce networks: ordering comes from a
	// per-account counter and the gateway must manage it.
	FamilyEthereum = "ethereum"

	// FamilySolana marks signature-hash networks: transactions are keyed by
	// signature and recent-blockhash expiry replaces nonce management.
	FamilySolana = "solana"

	// DefaultPort defines the default port for the gateway HTTP server
	DefaultPort = "15888"

	// DefaultSlippageBps defines the default slippage tolerance in basis points
	DefaultSlippageBps = 100

	// DefaultNonceMaxGap defines how far the cached nonce may lead the chain
	DefaultNonceMaxGap = 5

	// DefaultNonceMaxAge defines the trust window for cached nonces in seconds
	DefaultNonceMaxAge = 120

	// DefaultLeaseTTL defines the default lock lease duration in milliseconds
	DefaultLeaseTTL = 60000

	// DefaultLeaseMaxTTLMs defines the maximum requestable lease duration in milliseconds
	DefaultLeaseMaxTTLMs = 300000

	// DefaultLeaseMinTTL is the floor for requested lease durations
	DefaultLeaseMinTTL = 1 * time.Second

	// DefaultLeaseCleanupInterval defines the reaper period in seconds
	DefaultLeaseCleanupInterval = 10

	// DefaultQuoteTTL defines the quote cache lifetime in seconds
	DefaultQuoteTTL = 30

	// DefaultConfirmTimeout defines the confirmation polling budget in seconds
	DefaultConfirmTimeout = 60

	// DefaultConfirmPollInterval defines the confirmation polling period in seconds
	DefaultConfirmPollInterval = 2

	// DefaultApproveWait defines the inline approval confirmation budget in seconds
	DefaultApproveWait = 30

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 120

	// DefaultNetworkList defines the networks enabled when NETWORKS is unset
	DefaultNetworkList = "mainnet"

	// DefaultMaxGasPriceGwei caps the effective gas price on account-nonce networks
	DefaultMaxGasPriceGwei = 100

	// DefaultGasMultiplierPct is the headroom applied to estimated gas prices
	DefaultGasMultiplierPct = 10
)

// GetEnvPort returns the gateway HTTP port from environment variables
func GetEnvPort() (string, error) {
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		return DefaultPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid GATEWAY_PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvDefaultSlippageBps returns the default slippage tolerance from environment variables
func GetEnvDefaultSlippageBps() (uint32, error) {
	slippage := os.Getenv("DEFAULT_SLIPPAGE_BPS")
	if slippage == "" {
		return DefaultSlippageBps, nil
	}

	bps, err := strconv.Atoi(slippage)
	if err != nil {
		return 0, fmt.Errorf("invalid DEFAULT_SLIPPAGE_BPS value: %s, must be an integer", slippage)
	}
	if bps < 0 || bps > 10000 {
		return 0, fmt.Errorf("DEFAULT_SLIPPAGE_BPS must be between 0 and 10000")
	}
	return uint32(bps), nil
}

// GetEnvNonceMaxGap returns the nonce staleness gap from environment variables
func GetEnvNonceMaxGap() (uint64, error) {
	gap := os.Getenv("NONCE_MAX_GAP")
	if gap == "" {
		return DefaultNonceMaxGap, nil
	}

	gapInt, err := strconv.Atoi(gap)
	if err != nil {
		return 0, fmt.Errorf("invalid NONCE_MAX_GAP value: %s, must be an integer", gap)
	}
	if gapInt <= 0 {
		return 0, fmt.Errorf("NONCE_MAX_GAP must be greater than 0")
	}
	return uint64(gapInt), nil
}

// GetEnvNonceMaxAge returns the nonce trust window from environment variables
func GetEnvNonceMaxAge() (time.Duration, error) {
	age := os.Getenv("NONCE_MAX_AGE")
	if age == "" {
		return DefaultNonceMaxAge * time.Second, nil
	}

	ageInt, err := strconv.Atoi(age)
	if err != nil {
		return 0, fmt.Errorf("invalid NONCE_MAX_AGE value: %s, must be an integer number of seconds", age)
	}
	if ageInt <= 0 {
		return 0, fmt.Errorf("NONCE_MAX_AGE must be greater than 0")
	}
	return time.Duration(ageInt) * time.Second, nil
}

// GetEnvLeaseDefaultTTL returns the default lease duration from environment variables
func GetEnvLeaseDefaultTTL() (time.Duration, error) {
	ttl := os.Getenv("LEASE_DEFAULT_TTL_MS")
	if ttl == "" {
		return DefaultLeaseTTL * time.Millisecond, nil
	}

	ttlInt, err := strconv.Atoi(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid LEASE_DEFAULT_TTL_MS value: %s, must be an integer number of milliseconds", ttl)
	}
	if ttlInt <= 0 {
		return 0, fmt.Errorf("LEASE_DEFAULT_TTL_MS must be greater than 0")
	}
	return time.Duration(ttlInt) * time.Millisecond, nil
}

// GetEnvLeaseMaxTTL returns the maximum requestable lease duration from environment variables
func GetEnvLeaseMaxTTL() (time.Duration, error) {
	ttl := os.Getenv("LEASE_MAX_TTL_MS")
	if ttl == "" {
		return DefaultLeaseMaxTTLMs * time.Millisecond, nil
	}

	ttlInt, err := strconv.Atoi(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid LEASE_MAX_TTL_MS value: %s, must be an integer number of milliseconds", ttl)
	}
	if ttlInt <= 0 {
		return 0, fmt.Errorf("LEASE_MAX_TTL_MS must be greater than 0")
	}
	return time.Duration(ttlInt) * time.Millisecond, nil
}

// GetEnvLeaseCleanupInterval returns the lease reaper period from environment variables
func GetEnvLeaseCleanupInterval() (time.Duration, error) {
	interval := os.Getenv("LEASE_CLEANUP_INTERVAL")
	if interval == "" {
		return DefaultLeaseCleanupInterval * time.Second, nil
	}

	intervalInt, err := strconv.Atoi(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid LEASE_CLEANUP_INTERVAL value: %s, must be an integer number of seconds", interval)
	}
	if intervalInt <= 0 {
		return 0, fmt.Errorf("LEASE_CLEANUP_INTERVAL must be greater than 0")
	}
	return time.Duration(intervalInt) * time.Second, nil
}

// GetEnvQuoteTTL returns the quote cache lifetime from environment variables
func GetEnvQuoteTTL() (time.Duration, error) {
	ttl := os.Getenv("QUOTE_TTL")
	if ttl == "" {
		return DefaultQuoteTTL * time.Second, nil
	}

	ttlInt, err := strconv.Atoi(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid QUOTE_TTL value: %s, must be an integer number of seconds", ttl)
	}
	if ttlInt <= 0 {
		return 0, fmt.Errorf("QUOTE_TTL must be greater than 0")
	}
	return time.Duration(ttlInt) * time.Second, nil
}

// GetEnvConfirmTimeout returns the confirmation polling budget from environment variables
func GetEnvConfirmTimeout() (time.Duration, error) {
	timeout := os.Getenv("CONFIRM_TIMEOUT")
	if timeout == "" {
		return DefaultConfirmTimeout * time.Second, nil
	}

	timeoutInt, err := strconv.Atoi(timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRM_TIMEOUT value: %s, must be an integer number of seconds", timeout)
	}
	if timeoutInt <= 0 {
		return 0, fmt.Errorf("CONFIRM_TIMEOUT must be greater than 0")
	}
	return time.Duration(timeoutInt) * time.Second, nil
}

// GetEnvConfirmPollInterval returns the confirmation polling period from environment variables
func GetEnvConfirmPollInterval() (time.Duration, error) {
	interval := os.Getenv("CONFIRM_POLL_INTERVAL")
	if interval == "" {
		return DefaultConfirmPollInterval * time.Second, nil
	}

	intervalInt, err := strconv.Atoi(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRM_POLL_INTERVAL value: %s, must be an integer number of seconds", interval)
	}
	if intervalInt <= 0 {
		return 0, fmt.Errorf("CONFIRM_POLL_INTERVAL must be greater than 0")
	}
	return time.Duration(intervalInt) * time.Second, nil
}

// GetEnvApproveWait returns the inline approval confirmation budget from environment variables
func GetEnvApproveWait() (time.Duration, error) {
	wait := os.Getenv("APPROVE_WAIT")
	if wait == "" {
		return DefaultApproveWait * time.Second, nil
	}

	waitInt, err := strconv.Atoi(wait)
	if err != nil {
		return 0, fmt.Errorf("invalid APPROVE_WAIT value: %s, must be an integer number of seconds", wait)
	}
	if waitInt <= 0 {
		return 0, fmt.Errorf("APPROVE_WAIT must be greater than 0")
	}
	return time.Duration(waitInt) * time.Second, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch strings.ToLower(level) {
	case "debug", "info", "notice", "error":
		return logger.ParseLevel(level), nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

// GetEnvNetworkList returns the enabled network names from environment variables
func GetEnvNetworkList() ([]string, error) {
	list := os.Getenv("NETWORKS")
	if list == "" {
		list = DefaultNetworkList
	}

	var names []string
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("NETWORKS must list at least one network")
	}
	return names, nil
}
