// Package dex models pools and computes executable routes: raw integer swap
// amounts with slippage bounds, derived from on-chain pool state.
package dex

import (
	"math/big"
	"strings"

	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/tokens"
)

// PoolType is the pool's program family, which decides the construction path.
type PoolType string

const (
	PoolTypeAmm  PoolType = "amm"
	PoolTypeClmm PoolType = "clmm"
)

// ParsePoolType maps a path segment to a pool type.
func ParsePoolType(s string) (PoolType, bool) {
	switch PoolType(strings.ToLower(s)) {
	case PoolTypeAmm:
		return PoolTypeAmm, true
	case PoolTypeClmm:
		return PoolTypeClmm, true
	}
	return "", false
}

// Pool is one tradable pair on one venue. FeeTier is only meaningful for
// concentrated-liquidity pools, in parts per million.
type Pool struct {
	Address    string
	Type       PoolType
	BaseToken  tokens.Token
	QuoteToken tokens.Token
	FeeTier    uint32
}

// Route is a fully priced swap against a single pool. All amounts are raw
// integer units; the slippage bounds are what the transaction enforces
// on-chain.
type Route struct {
	Pool     Pool
	Side     models.Side
	TokenIn  tokens.Token
	TokenOut tokens.Token

	AmountIn  *big.Int
	AmountOut *big.Int
	// MinAmountOut binds SELL routes, MaxAmountIn binds BUY routes.
	MinAmountOut *big.Int
	MaxAmountIn  *big.Int

	SlippageBps    uint32
	Price          float64
	PriceImpactPct float64
}

// RequiredInput is the worst-case input the wallet must cover: the bound for
// BUY, the exact input for SELL.
func (r *Route) RequiredInput() *big.Int {
	if r.Side == models.SideBuy {
		return r.MaxAmountIn
	}
	return r.AmountIn
}

// MinAmountOut floors the output by the slippage tolerance, on raw units.
func MinAmountOut(out *big.Int, bps uint32) *big.Int {
	bound := new(big.Int).Mul(out, big.NewInt(int64(10000-bps)))
	return bound.Div(bound, big.NewInt(10000))
}

// MaxAmountIn caps the input by the slippage tolerance, on raw units,
// rounding up so the bound never undercuts the tolerance.
func MaxAmountIn(in *big.Int, bps uint32) *big.Int {
	bound := new(big.Int).Mul(in, big.NewInt(int64(10000+bps)))
	bound.Add(bound, big.NewInt(9999))
	return bound.Div(bound, big.NewInt(10000))
}
