package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dexgate-hq/dexgate/pkg/logger"
)

// Config holds the configuration for the gateway service
type Config struct {
	Port          string
	MetricsAPIKey string

	PrivateKey    string // hex secp256k1 key for account-nonce networks
	SvmPrivateKey string // hex ed25519 seed for signature-hash networks

	DefaultSlippageBps uint32

	Nonce          NonceConfig
	Lease          LeaseConfig
	Quote          QuoteConfig
	Confirm        ConfirmConfig
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig

	Networks map[string]NetworkConfig
}

// NonceConfig tunes the per-wallet nonce cache.
type NonceConfig struct {
	// MaxGap is how far the cached next-nonce may run ahead of the chain's
	// pending count before the cache is considered stale.
	MaxGap uint64
	// MaxAge is how long a cached value stays trusted without being refreshed.
	MaxAge time.Duration
}

// LeaseConfig tunes externally held wallet locks.
type LeaseConfig struct {
	DefaultTTL      time.Duration
	MinTTL          time.Duration
	MaxTTL          time.Duration
	CleanupInterval time.Duration
}

// QuoteConfig tunes the executable quote cache.
type QuoteConfig struct {
	TTL time.Duration
}

// ConfirmConfig tunes transaction confirmation polling.
type ConfirmConfig struct {
	// Timeout is the total polling budget before a transaction is reported
	// as still pending.
	Timeout      time.Duration
	PollInterval time.Duration
	// ApproveWait is the budget for an inline approval to confirm before the
	// swap that needs it is abandoned.
	ApproveWait time.Duration
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// NetworkConfig holds the configuration for a single network
type NetworkConfig struct {
	Name             string
	Family           string // "ethereum" or "solana"
	RPCURL           string
	ChainID          int64 // account-nonce networks only
	RouterAddress    string
	ClmmRouter       string
	PermitSpender    string // optional intermediate allowance hop
	WrappedNative    string // symbol of the wrapped native token
	MaxGasPriceGwei  float64
	GasMultiplierPct float64
	Tokens           []TokenConfig
	Pools            []PoolConfig
}

// TokenConfig describes one token available on a network.
type TokenConfig struct {
	Symbol   string
	Address  string
	Decimals uint8
	Native   bool
}

// PoolConfig registers one pool for pair lookup.
type PoolConfig struct {
	Address string
	Base    string
	Quote   string
	Type    string // "amm" or "clmm"
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	port, err := GetEnvPort()
	if err != nil {
		return nil, err
	}

	slippageBps, err := GetEnvDefaultSlippageBps()
	if err != nil {
		return nil, err
	}

	nonceMaxGap, err := GetEnvNonceMaxGap()
	if err != nil {
		return nil, err
	}

	nonceMaxAge, err := GetEnvNonceMaxAge()
	if err != nil {
		return nil, err
	}

	leaseDefaultTTL, err := GetEnvLeaseDefaultTTL()
	if err != nil {
		return nil, err
	}

	leaseMaxTTL, err := GetEnvLeaseMaxTTL()
	if err != nil {
		return nil, err
	}

	leaseCleanup, err := GetEnvLeaseCleanupInterval()
	if err != nil {
		return nil, err
	}

	quoteTTL, err := GetEnvQuoteTTL()
	if err != nil {
		return nil, err
	}

	confirmTimeout, err := GetEnvConfirmTimeout()
	if err != nil {
		return nil, err
	}

	confirmPoll, err := GetEnvConfirmPollInterval()
	if err != nil {
		return nil, err
	}

	approveWait, err := GetEnvApproveWait()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	networkNames, err := GetEnvNetworkList()
	if err != nil {
		return nil, err
	}

	networks := make(map[string]NetworkConfig)
	for _, name := range networkNames {
		netCfg, err := GetEnvNetworkConfig(name)
		if err != nil {
			return nil, err
		}
		networks[name] = netCfg
	}

	cfg := &Config{
		Port:               port,
		MetricsAPIKey:      os.Getenv("METRICS_API_KEY"),
		PrivateKey:         os.Getenv("PRIVATE_KEY"),
		SvmPrivateKey:      os.Getenv("SVM_PRIVATE_KEY"),
		DefaultSlippageBps: slippageBps,
		Nonce: NonceConfig{
			MaxGap: nonceMaxGap,
			MaxAge: nonceMaxAge,
		},
		Lease: LeaseConfig{
			DefaultTTL:      leaseDefaultTTL,
			MinTTL:          DefaultLeaseMinTTL,
			MaxTTL:          leaseMaxTTL,
			CleanupInterval: leaseCleanup,
		},
		Quote: QuoteConfig{
			TTL: quoteTTL,
		},
		Confirm: ConfirmConfig{
			Timeout:      confirmTimeout,
			PollInterval: confirmPoll,
			ApproveWait:  approveWait,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		Networks: networks,
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("at least one network configuration is required")
	}
	for name, netCfg := range cfg.Networks {
		if netCfg.Family != FamilyEthereum && netCfg.Family != FamilySolana {
			return fmt.Errorf("invalid family %q for network %s, must be %q or %q",
				netCfg.Family, name, FamilyEthereum, FamilySolana)
		}
		if netCfg.RPCURL == "" {
			return fmt.Errorf("NETWORK_%s_RPC_URL is required", envKey(name))
		}
		if netCfg.Family == FamilyEthereum && netCfg.ChainID == 0 {
			return fmt.Errorf("NETWORK_%s_CHAIN_ID is required for account-nonce networks", envKey(name))
		}
		if netCfg.RouterAddress == "" && netCfg.ClmmRouter == "" {
			return fmt.Errorf("network %s has no router configured", name)
		}
		if len(netCfg.Tokens) == 0 {
			return fmt.Errorf("network %s has no tokens configured", name)
		}
	}
	if cfg.Lease.MaxTTL < cfg.Lease.DefaultTTL {
		return fmt.Errorf("LEASE_MAX_TTL_MS must be at least the default TTL")
	}
	return nil
}
