package executor

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/tokens"
)

// Svm concentrated pools do not expose a fee read through the generic RPC
// surface; the common tier is assumed.
const svmClmmFeePpm = 2500

// QuoteSwap prices a swap and caches the route under a quote id the client
// can redeem through execute-quote while it is live.
func (e *Executor) QuoteSwap(ctx context.Context, hint dex.PoolType, req models.SwapRequest) (*models.QuoteResult, error) {
	net, base, quote, err := e.validateSwapRequest(req)
	if err != nil {
		return nil, err
	}

	route, err := e.computeRoute(ctx, net, base, quote, hint, req)
	if err != nil {
		return nil, err
	}

	cached := e.quotes.Put(req.Network, req, route)
	metrics.QuotesServed.WithLabelValues(req.Network, string(route.Pool.Type)).Inc()

	return &models.QuoteResult{
		QuoteID:        cached.ID,
		PoolAddress:    route.Pool.Address,
		TokenIn:        route.TokenIn.Symbol,
		TokenOut:       route.TokenOut.Symbol,
		AmountIn:       route.TokenIn.FromRaw(route.AmountIn),
		AmountOut:      route.TokenOut.FromRaw(route.AmountOut),
		Price:          route.Price,
		SlippagePct:    float64(route.SlippageBps) / 100,
		MinAmountOut:   route.TokenOut.FromRaw(route.MinAmountOut),
		MaxAmountIn:    route.TokenIn.FromRaw(route.MaxAmountIn),
		PriceImpactPct: route.PriceImpactPct,
	}, nil
}

// computeRoute reads the pool's current state and prices the request against
// it. The pool's actual program family wins over the requested one, so a
// request aimed at the wrong family is forwarded transparently.
func (e *Executor) computeRoute(ctx context.Context, net *Network, base, quote tokens.Token,
	hint dex.PoolType, req models.SwapRequest) (*dex.Route, error) {

	pool, err := e.resolvePool(net, base, quote, hint, req.PoolAddress)
	if err != nil {
		return nil, err
	}

	amount := base.ToRaw(req.Amount)
	if amount.Sign() <= 0 {
		return nil, gwerr.New(gwerr.Validation, "amount is below one raw unit of %s", base.Symbol)
	}
	bps := e.slippageBps(req.SlippagePct)

	if net.IsAccountNonce() {
		return e.computeEvmRoute(ctx, net, pool, req.Side, amount, bps)
	}
	return e.computeSvmRoute(ctx, net, pool, req.Side, amount, bps)
}

func (e *Executor) computeEvmRoute(ctx context.Context, net *Network, pool dex.Pool,
	side models.Side, amount *big.Int, bps uint32) (*dex.Route, error) {

	address := common.HexToAddress(pool.Address)
	detected, err := dex.DetectEvmPoolType(ctx, net.Evm.Caller(), address)
	if err != nil {
		return nil, err
	}
	if detected != pool.Type {
		e.logger.DebugWithNetwork(net.Config.Name, "Pool %s is %s, rerouting from %s path",
			pool.Address, detected, pool.Type)
	}
	pool.Type = detected
	opts := &bind.CallOpts{Context: ctx}

	if pool.Type == dex.PoolTypeClmm {
		binding := contracts.NewClmmPool(address, net.Evm.Caller())
		sqrtPrice, err := binding.Slot0(opts)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.Internal, err, "could not read pool state")
		}
		token0, err := binding.Token0(opts)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.Internal, err, "could not read pool tokens")
		}
		feeTier, err := binding.Fee(opts)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.Internal, err, "could not read pool fee")
		}
		pool.FeeTier = uint32(feeTier.Uint64())

		baseIsToken0 := strings.EqualFold(token0.Hex(), pool.BaseToken.Address)
		state := dex.ClmmState{
			PriceBaseInQuote: dex.PriceFromSqrtX96(sqrtPrice, baseIsToken0, pool.BaseToken, pool.QuoteToken),
			FeePpm:           pool.FeeTier,
		}
		return dex.BuildClmmRoute(pool, side, amount, bps, state)
	}

	binding := contracts.NewAmmPair(address, net.Evm.Caller())
	reserve0, reserve1, err := binding.GetReserves(opts)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "could not read pool reserves")
	}
	token0, err := binding.Token0(opts)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "could not read pool tokens")
	}

	state := dex.AmmState{ReserveBase: reserve0, ReserveQuote: reserve1}
	if !strings.EqualFold(token0.Hex(), pool.BaseToken.Address) {
		state.ReserveBase, state.ReserveQuote = reserve1, reserve0
	}
	return dex.BuildAmmRoute(pool, side, amount, bps, state)
}

func (e *Executor) computeSvmRoute(ctx context.Context, net *Network, pool dex.Pool,
	side models.Side, amount *big.Int, bps uint32) (*dex.Route, error) {

	owner, err := net.Svm.AccountOwner(ctx, pool.Address)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	detected, err := dex.DetectSvmPoolType(owner, net.Config.RouterAddress, net.Config.ClmmRouter)
	if err != nil {
		return nil, err
	}
	if detected != pool.Type {
		e.logger.DebugWithNetwork(net.Config.Name, "Pool %s is %s, rerouting from %s path",
			pool.Address, detected, pool.Type)
	}
	pool.Type = detected

	// Both families are priced from the pool's vault balances; concentrated
	// pools additionally carry their fee tier.
	reserveBase, err := net.Svm.TokenBalance(ctx, pool.Address, pool.BaseToken.Address)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	reserveQuote, err := net.Svm.TokenBalance(ctx, pool.Address, pool.QuoteToken.Address)
	if err != nil {
		return nil, gwerr.Classify(err)
	}

	if pool.Type == dex.PoolTypeClmm {
		pool.FeeTier = svmClmmFeePpm
		base := pool.BaseToken.FromRaw(reserveBase)
		quote := pool.QuoteToken.FromRaw(reserveQuote)
		if base <= 0 {
			return nil, gwerr.New(gwerr.Slippage, "insufficient liquidity in pool %s", pool.Address)
		}
		state := dex.ClmmState{PriceBaseInQuote: quote / base, FeePpm: pool.FeeTier}
		return dex.BuildClmmRoute(pool, side, amount, bps, state)
	}

	state := dex.AmmState{ReserveBase: reserveBase, ReserveQuote: reserveQuote}
	return dex.BuildAmmRoute(pool, side, amount, bps, state)
}
