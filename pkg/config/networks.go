package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Built-in network definitions. Every field can still be overridden through
// environment variables for debugging purposes; networks not listed here must
// be fully described through the environment.
var defaultNetworks = map[string]NetworkConfig{
	"mainnet": {
		Name:          "mainnet",
		Family:        FamilyEthereum,
		RPCURL:        "https://eth.llamarpc.com",
		ChainID:       1,
		RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		ClmmRouter:    "0xE592427A0AEce92De3Edee1F18E0157C02B8316B",
		PermitSpender: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		WrappedNative: "WETH",
		Tokens: []TokenConfig{
			{Symbol: "ETH", Address: "0x0000000000000000000000000000000000000000", Decimals: 18, Native: true},
			{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
			{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
			{Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
			{Symbol: "WBTC", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
		},
		Pools: []PoolConfig{
			{Address: "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc", Base: "WETH", Quote: "USDC", Type: "amm"},
			{Address: "0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11", Base: "WETH", Quote: "DAI", Type: "amm"},
			{Address: "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640", Base: "WETH", Quote: "USDC", Type: "clmm"},
		},
	},
	"base": {
		Name:          "base",
		Family:        FamilyEthereum,
		RPCURL:        "https://mainnet.base.org",
		ChainID:       8453,
		RouterAddress: "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
		ClmmRouter:    "0x2626664c2603336E57B271c5C0b26F421741e481",
		PermitSpender: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		WrappedNative: "WETH",
		Tokens: []TokenConfig{
			{Symbol: "ETH", Address: "0x0000000000000000000000000000000000000000", Decimals: 18, Native: true},
			{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
			{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		},
		Pools: []PoolConfig{
			{Address: "0x88A43bbDF9D098eEC7bCEda4e2494615dfD9bB9C", Base: "WETH", Quote: "USDC", Type: "amm"},
			{Address: "0xd0b53D9277642d899DF5C87A3966A349A798F224", Base: "WETH", Quote: "USDC", Type: "clmm"},
		},
	},
	"mainnet-beta": {
		Name:          "mainnet-beta",
		Family:        FamilySolana,
		RPCURL:        "https://api.mainnet-beta.solana.com",
		RouterAddress: "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
		ClmmRouter:    "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK",
		WrappedNative: "WSOL",
		Tokens: []TokenConfig{
			{Symbol: "SOL", Address: "11111111111111111111111111111111", Decimals: 9, Native: true},
			{Symbol: "WSOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9},
			{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
			{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
		},
		Pools: []PoolConfig{
			{Address: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2", Base: "WSOL", Quote: "USDC", Type: "amm"},
		},
	},
}

// envKey normalizes a network name into the segment used in its environment
// variable names: "mainnet-beta" becomes "MAINNET_BETA".
func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func netEnv(name, field string) string {
	return os.Getenv("NETWORK_" + envKey(name) + "_" + field)
}

// GetEnvNetworkConfig assembles the configuration for one network, starting
// from the built-in definition when one exists and applying environment
// overrides on top.
func GetEnvNetworkConfig(name string) (NetworkConfig, error) {
	cfg, ok := defaultNetworks[name]
	if !ok {
		cfg = NetworkConfig{Name: name, Family: FamilyEthereum}
	}

	if v := netEnv(name, "FAMILY"); v != "" {
		cfg.Family = strings.ToLower(v)
	}
	if v := netEnv(name, "RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := netEnv(name, "CHAIN_ID"); v != "" {
		chainID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid NETWORK_%s_CHAIN_ID value: %s, must be an integer", envKey(name), v)
		}
		cfg.ChainID = chainID
	}
	if v := netEnv(name, "ROUTER_ADDRESS"); v != "" {
		cfg.RouterAddress = v
	}
	if v := netEnv(name, "CLMM_ROUTER_ADDRESS"); v != "" {
		cfg.ClmmRouter = v
	}
	if v := netEnv(name, "PERMIT_SPENDER"); v != "" {
		cfg.PermitSpender = v
	}
	if v := netEnv(name, "WRAPPED_NATIVE"); v != "" {
		cfg.WrappedNative = strings.ToUpper(v)
	}

	cfg.MaxGasPriceGwei = DefaultMaxGasPriceGwei
	if v := netEnv(name, "MAX_GAS_GWEI"); v != "" {
		maxGwei, err := strconv.ParseFloat(v, 64)
		if err != nil || maxGwei <= 0 {
			return cfg, fmt.Errorf("invalid NETWORK_%s_MAX_GAS_GWEI value: %s, must be a positive number", envKey(name), v)
		}
		cfg.MaxGasPriceGwei = maxGwei
	}

	cfg.GasMultiplierPct = DefaultGasMultiplierPct
	if v := netEnv(name, "GAS_MULTIPLIER_PCT"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil || pct < 0 {
			return cfg, fmt.Errorf("invalid NETWORK_%s_GAS_MULTIPLIER_PCT value: %s, must be a non-negative number", envKey(name), v)
		}
		cfg.GasMultiplierPct = pct
	}

	if v := netEnv(name, "TOKENS"); v != "" {
		extra, err := parseTokenList(name, v)
		if err != nil {
			return cfg, err
		}
		cfg.Tokens = append(cfg.Tokens, extra...)
	}

	if v := netEnv(name, "POOLS"); v != "" {
		extra, err := parsePoolList(name, v)
		if err != nil {
			return cfg, err
		}
		cfg.Pools = append(cfg.Pools, extra...)
	}

	return cfg, nil
}

// parseTokenList parses "SYMBOL:address:decimals[:native]" entries separated
// by commas.
func parseTokenList(network, list string) ([]TokenConfig, error) {
	var tokens []TokenConfig
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid token entry %q for network %s, expected SYMBOL:address:decimals", entry, network)
		}
		decimals, err := strconv.Atoi(parts[2])
		if err != nil || decimals < 0 || decimals > 36 {
			return nil, fmt.Errorf("invalid decimals in token entry %q for network %s", entry, network)
		}
		tokens = append(tokens, TokenConfig{
			Symbol:   strings.ToUpper(parts[0]),
			Address:  parts[1],
			Decimals: uint8(decimals),
			Native:   len(parts) > 3 && strings.EqualFold(parts[3], "native"),
		})
	}
	return tokens, nil
}

// parsePoolList parses "address:BASE:QUOTE:type" entries separated by commas.
func parsePoolList(network, list string) ([]PoolConfig, error) {
	var pools []PoolConfig
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid pool entry %q for network %s, expected address:BASE:QUOTE:type", entry, network)
		}
		poolType := strings.ToLower(parts[3])
		if poolType != "amm" && poolType != "clmm" {
			return nil, fmt.Errorf("invalid pool type %q for network %s, must be amm or clmm", parts[3], network)
		}
		pools = append(pools, PoolConfig{
			Address: parts[0],
			Base:    strings.ToUpper(parts[1]),
			Quote:   strings.ToUpper(parts[2]),
			Type:    poolType,
		})
	}
	return pools, nil
}
