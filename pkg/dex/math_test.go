package dex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/tokens"
)

var (
	weth = tokens.Token{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18}
	usdc = tokens.Token{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6}
)

func testPool(poolType PoolType) Pool {
	return Pool{
		Address:    "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc",
		Type:       poolType,
		BaseToken:  weth,
		QuoteToken: usdc,
	}
}

// Reserves for a pool priced at 2000 USDC per WETH.
func testAmmState() AmmState {
	return AmmState{
		ReserveBase:  weth.ToRaw(1000),
		ReserveQuote: usdc.ToRaw(2_000_000),
	}
}

func TestBuildAmmRouteSell(t *testing.T) {
	amount := weth.ToRaw(1)
	route, err := BuildAmmRoute(testPool(PoolTypeAmm), models.SideSell, amount, 100, testAmmState())
	require.NoError(t, err)

	assert.Equal(t, "WETH", route.TokenIn.Symbol)
	assert.Equal(t, "USDC", route.TokenOut.Symbol)
	assert.Equal(t, amount, route.AmountIn)

	out := usdc.FromRaw(route.AmountOut)
	// One WETH into a 1000-deep pool: just under spot, less the 30 bps fee.
	assert.InDelta(t, 1992, out, 5)

	minOut := usdc.FromRaw(route.MinAmountOut)
	assert.InDelta(t, out*0.99, minOut, 0.01, "100 bps slippage floor")
	assert.Greater(t, route.PriceImpactPct, 0.0)
	assert.Less(t, route.PriceImpactPct, 1.0)
}

func TestBuildAmmRouteBuy(t *testing.T) {
	amount := weth.ToRaw(1)
	route, err := BuildAmmRoute(testPool(PoolTypeAmm), models.SideBuy, amount, 50, testAmmState())
	require.NoError(t, err)

	assert.Equal(t, "USDC", route.TokenIn.Symbol)
	assert.Equal(t, "WETH", route.TokenOut.Symbol)
	assert.Equal(t, amount, route.AmountOut)

	in := usdc.FromRaw(route.AmountIn)
	// Buying one WETH costs slightly more than spot plus the fee.
	assert.InDelta(t, 2008, in, 5)

	maxIn := usdc.FromRaw(route.MaxAmountIn)
	assert.Greater(t, maxIn, in, "bound must sit above the expected input")
	assert.InDelta(t, in*1.005, maxIn, 0.01, "50 bps slippage cap")

	assert.Equal(t, route.MaxAmountIn, route.RequiredInput())
}

func TestBuildAmmRouteRejectsDrainedPool(t *testing.T) {
	state := testAmmState()

	_, err := BuildAmmRoute(testPool(PoolTypeAmm), models.SideBuy, weth.ToRaw(1000), 100, state)
	require.Error(t, err, "buying the whole reserve cannot be priced")
	assert.Equal(t, gwerr.Slippage, gwerr.KindOf(err))

	_, err = BuildAmmRoute(testPool(PoolTypeAmm), models.SideSell, weth.ToRaw(1), 100,
		AmmState{ReserveBase: big.NewInt(0), ReserveQuote: big.NewInt(0)})
	assert.Error(t, err)
}

func TestBuildClmmRoute(t *testing.T) {
	state := ClmmState{PriceBaseInQuote: 2000, FeePpm: 3000}

	t.Run("sell", func(t *testing.T) {
		route, err := BuildClmmRoute(testPool(PoolTypeClmm), models.SideSell, weth.ToRaw(2), 100, state)
		require.NoError(t, err)
		assert.InDelta(t, 2*2000*0.997, usdc.FromRaw(route.AmountOut), 0.01)
	})

	t.Run("buy", func(t *testing.T) {
		route, err := BuildClmmRoute(testPool(PoolTypeClmm), models.SideBuy, weth.ToRaw(1), 100, state)
		require.NoError(t, err)
		assert.InDelta(t, 2000/0.997, usdc.FromRaw(route.AmountIn), 0.01)
	})

	t.Run("missing price", func(t *testing.T) {
		_, err := BuildClmmRoute(testPool(PoolTypeClmm), models.SideSell, weth.ToRaw(1), 100, ClmmState{})
		require.Error(t, err)
		assert.Equal(t, gwerr.NotFound, gwerr.KindOf(err))
	})
}

func TestSlippageBoundsOnRawUnits(t *testing.T) {
	out := big.NewInt(1_000_000)
	assert.Equal(t, big.NewInt(990_000), MinAmountOut(out, 100))
	assert.Equal(t, big.NewInt(1_010_000), MaxAmountIn(out, 100))

	// Rounding: the floor rounds down, the cap rounds up.
	assert.Equal(t, big.NewInt(98), MinAmountOut(big.NewInt(99), 100))
	assert.Equal(t, big.NewInt(100), MaxAmountIn(big.NewInt(99), 100))
}

func TestParsePoolType(t *testing.T) {
	poolType, ok := ParsePoolType("AMM")
	require.True(t, ok)
	assert.Equal(t, PoolTypeAmm, poolType)

	_, ok = ParsePoolType("orderbook")
	assert.False(t, ok)
}

func TestDetectSvmPoolType(t *testing.T) {
	const (
		ammProgram  = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
		clmmProgram = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	)

	poolType, err := DetectSvmPoolType(ammProgram, ammProgram, clmmProgram)
	require.NoError(t, err)
	assert.Equal(t, PoolTypeAmm, poolType)

	poolType, err = DetectSvmPoolType(clmmProgram, ammProgram, clmmProgram)
	require.NoError(t, err)
	assert.Equal(t, PoolTypeClmm, poolType)

	_, err = DetectSvmPoolType("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", ammProgram, clmmProgram)
	require.Error(t, err)
	assert.Equal(t, gwerr.NotFound, gwerr.KindOf(err))
}

func TestPriceFromSqrtX96(t *testing.T) {
	// A price of 2000 USDC per WETH with WETH as token0 means a raw
	// token1/token0 ratio of 2000 * 10^(6-18) = 2e-9, whose square root is
	// ~4.4721e-5, scaled by 2^96 on the wire.
	sqrt := new(big.Float).Mul(big.NewFloat(4.47213595499958e-5), big.NewFloat(0).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	sqrtInt, _ := sqrt.Int(nil)

	price := PriceFromSqrtX96(sqrtInt, true, weth, usdc)
	assert.InDelta(t, 2000, price, 1)

	assert.Equal(t, 0.0, PriceFromSqrtX96(nil, true, weth, usdc))
}
