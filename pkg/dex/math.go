package dex

import (
	"math/big"

	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// AmmFeeBps is the constant-product pool fee.
const AmmFeeBps = 30

// AmmState is the reserve snapshot a constant-product route is priced from.
type AmmState struct {
	ReserveBase  *big.Int
	ReserveQuote *big.Int
}

// ClmmState is the price snapshot a concentrated-liquidity route is priced
// from. Price is quote per base in token units; FeePpm is the pool fee in
// parts per million (a 0.3% tier is 3000).
type ClmmState struct {
	PriceBaseInQuote float64
	FeePpm           uint32
}

// BuildAmmRoute prices a swap against a constant-product pool. Amount is the
// raw base-token quantity: the exact input for SELL, the exact output for BUY.
func BuildAmmRoute(pool Pool, side models.Side, amount *big.Int, slippageBps uint32, state AmmState) (*Route, error) {
	if state.ReserveBase == nil || state.ReserveQuote == nil ||
		state.ReserveBase.Sign() <= 0 || state.ReserveQuote.Sign() <= 0 {
		return nil, gwerr.New(gwerr.Slippage, "insufficient liquidity in pool %s", pool.Address)
	}

	route := &Route{Pool: pool, Side: side, SlippageBps: slippageBps}

	switch side {
	case models.SideSell:
		// Base in, quote out, exact input.
		out := constantProductOut(amount, state.ReserveBase, state.ReserveQuote)
		if out.Sign() <= 0 {
			return nil, gwerr.New(gwerr.Slippage, "insufficient liquidity in pool %s", pool.Address)
		}
		route.TokenIn, route.TokenOut = pool.BaseToken, pool.QuoteToken
		route.AmountIn, route.AmountOut = new(big.Int).Set(amount), out
		route.MinAmountOut = MinAmountOut(out, slippageBps)
		route.MaxAmountIn = new(big.Int).Set(amount)
	case models.SideBuy:
		// Quote in, base out, exact output.
		if amount.Cmp(state.ReserveBase) >= 0 {
			return nil, gwerr.New(gwerr.Slippage, "insufficient liquidity in pool %s", pool.Address)
		}
		in := constantProductIn(amount, state.ReserveQuote, state.ReserveBase)
		route.TokenIn, route.TokenOut = pool.QuoteToken, pool.BaseToken
		route.AmountIn, route.AmountOut = in, new(big.Int).Set(amount)
		route.MaxAmountIn = MaxAmountIn(in, slippageBps)
		route.MinAmountOut = new(big.Int).Set(amount)
	default:
		return nil, gwerr.New(gwerr.Validation, "invalid side: %s", side)
	}

	priceRoute(route, spotPrice(pool, state))
	return route, nil
}

// BuildClmmRoute prices a swap against a concentrated-liquidity pool using
// its spot price. Depth effects inside the tick are not modeled; the
// slippage bound protects the caller from drift.
func BuildClmmRoute(pool Pool, side models.Side, amount *big.Int, slippageBps uint32, state ClmmState) (*Route, error) {
	if state.PriceBaseInQuote <= 0 {
		return nil, gwerr.New(gwerr.NotFound, "pool not found: %s", pool.Address)
	}

	route := &Route{Pool: pool, Side: side, SlippageBps: slippageBps}
	feeFactor := 1 - float64(state.FeePpm)/1_000_000

	switch side {
	case models.SideSell:
		baseUnits := pool.BaseToken.FromRaw(amount)
		out := pool.QuoteToken.ToRaw(baseUnits * state.PriceBaseInQuote * feeFactor)
		if out.Sign() <= 0 {
			return nil, gwerr.New(gwerr.Slippage, "insufficient liquidity in pool %s", pool.Address)
		}
		route.TokenIn, route.TokenOut = pool.BaseToken, pool.QuoteToken
		route.AmountIn, route.AmountOut = new(big.Int).Set(amount), out
		route.MinAmountOut = MinAmountOut(out, slippageBps)
		route.MaxAmountIn = new(big.Int).Set(amount)
	case models.SideBuy:
		baseUnits := pool.BaseToken.FromRaw(amount)
		in := pool.QuoteToken.ToRaw(baseUnits * state.PriceBaseInQuote / feeFactor)
		route.TokenIn, route.TokenOut = pool.QuoteToken, pool.BaseToken
		route.AmountIn, route.AmountOut = in, new(big.Int).Set(amount)
		route.MaxAmountIn = MaxAmountIn(in, slippageBps)
		route.MinAmountOut = new(big.Int).Set(amount)
	default:
		return nil, gwerr.New(gwerr.Validation, "invalid side: %s", side)
	}

	priceRoute(route, state.PriceBaseInQuote)
	return route, nil
}

// constantProductOut computes the exact-input output after the pool fee:
// out = in*(1-fee)*Rout / (Rin + in*(1-fee)).
func constantProductOut(in, reserveIn, reserveOut *big.Int) *big.Int {
	inWithFee := new(big.Int).Mul(in, big.NewInt(10000-AmmFeeBps))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator)
}

// constantProductIn computes the exact-output input after the pool fee,
// rounded up: in = Rin*out / ((Rout-out)*(1-fee)) + 1.
func constantProductIn(out, reserveIn, reserveOut *big.Int) *big.Int {
	numerator := new(big.Int).Mul(reserveIn, out)
	numerator.Mul(numerator, big.NewInt(10000))
	denominator := new(big.Int).Sub(reserveOut, out)
	denominator.Mul(denominator, big.NewInt(10000-AmmFeeBps))
	in := numerator.Div(numerator, denominator)
	return in.Add(in, big.NewInt(1))
}

// spotPrice is the pre-trade quote-per-base price in token units.
func spotPrice(pool Pool, state AmmState) float64 {
	base := pool.BaseToken.FromRaw(state.ReserveBase)
	quote := pool.QuoteToken.FromRaw(state.ReserveQuote)
	if base == 0 {
		return 0
	}
	return quote / base
}

// priceRoute fills the display price and impact from the route's raw amounts.
func priceRoute(route *Route, spot float64) {
	in := route.TokenIn.FromRaw(route.AmountIn)
	out := route.TokenOut.FromRaw(route.AmountOut)

	var effective float64
	if route.Side == models.SideSell {
		// quote received per base spent
		if in > 0 {
			effective = out / in
		}
	} else {
		// quote spent per base received
		if out > 0 {
			effective = in / out
		}
	}
	route.Price = effective
	if spot > 0 && effective > 0 {
		impact := (effective - spot) / spot * 100
		if route.Side == models.SideSell {
			impact = -impact
		}
		if impact < 0 {
			impact = 0
		}
		route.PriceImpactPct = impact
	}
}
