package tokens

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = Token{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6}
	weth = Token{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18}
	eth  = Token{Symbol: "ETH", Address: "0x0000000000000000000000000000000000000000", Decimals: 18, Native: true}
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Add("mainnet", usdc)
	reg.Add("mainnet", weth)
	reg.Add("mainnet", eth)

	t.Run("by symbol", func(t *testing.T) {
		got, ok := reg.Get("mainnet", "usdc")
		require.True(t, ok)
		assert.Equal(t, usdc.Address, got.Address)
	})

	t.Run("by address any casing", func(t *testing.T) {
		got, ok := reg.Get("mainnet", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
		require.True(t, ok)
		assert.Equal(t, "USDC", got.Symbol)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, ok := reg.Get("mainnet", "SHIB")
		assert.False(t, ok)
	})

	t.Run("unknown network", func(t *testing.T) {
		_, ok := reg.Get("base", "USDC")
		assert.False(t, ok)
	})

	t.Run("native", func(t *testing.T) {
		got, ok := reg.Native("mainnet")
		require.True(t, ok)
		assert.Equal(t, "ETH", got.Symbol)
	})

	t.Run("symbols", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"USDC", "WETH", "ETH"}, reg.Symbols("mainnet"))
	})
}

func TestToRaw(t *testing.T) {
	tests := []struct {
		name     string
		token    Token
		amount   float64
		expected string
	}{
		{"usdc whole", usdc, 100, "100000000"},
		{"usdc fractional", usdc, 1.5, "1500000"},
		{"usdc one raw unit", usdc, 0.000001, "1"},
		{"weth one", weth, 1, "1000000000000000000"},
		{"weth small", weth, 0.001, "1000000000000000"},
		{"zero", usdc, 0, "0"},
		{"negative clamps to zero", usdc, -3, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, ok := new(big.Int).SetString(tt.expected, 10)
			require.True(t, ok)
			assert.Equal(t, 0, expected.Cmp(tt.token.ToRaw(tt.amount)),
				"want %s got %s", expected, tt.token.ToRaw(tt.amount))
		})
	}
}

func TestFromRaw(t *testing.T) {
	raw, ok := new(big.Int).SetString("1500000", 10)
	require.True(t, ok)
	assert.InDelta(t, 1.5, usdc.FromRaw(raw), 1e-9)

	wei, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)
	assert.InDelta(t, 1.0, weth.FromRaw(wei), 1e-9)

	assert.Zero(t, usdc.FromRaw(nil))
}

func TestRoundTripKeepsMagnitude(t *testing.T) {
	amounts := []float64{0.25, 1, 42.75, 123456.789}
	for _, amount := range amounts {
		raw := usdc.ToRaw(amount)
		assert.InDelta(t, amount, usdc.FromRaw(raw), 0.000001)
	}
}
