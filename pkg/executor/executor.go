// Package executor runs the transaction pipeline behind every endpoint that
// spends from a wallet: quote, allowance, balance, build, sign, simulate,
// submit, confirm. All of it happens under the wallet's lock so concurrent
// requests for the same wallet serialize instead of colliding on nonces.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/circuitbreaker"
	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/nonces"
	"github.com/dexgate-hq/dexgate/pkg/quotes"
	"github.com/dexgate-hq/dexgate/pkg/signer"
	"github.com/dexgate-hq/dexgate/pkg/tokens"
)

// Network bundles everything the executor needs to trade on one network.
// Exactly one of Evm/Svm is set, matching the configured family.
type Network struct {
	Config    config.NetworkConfig
	Evm       chainclient.EvmBackend
	Svm       chainclient.SvmBackend
	EvmSigner signer.EvmSigner
	SvmSigner signer.SvmSigner
	Breaker   *circuitbreaker.CircuitBreaker
}

// IsAccountNonce reports whether the network needs nonce coordination.
func (n *Network) IsAccountNonce() bool {
	return n.Config.Family == config.FamilyEthereum
}

// Executor owns the coordination state and runs the swap pipeline.
type Executor struct {
	cfg      *config.Config
	networks map[string]*Network
	locks    *locks.Registry
	nonces   *nonces.Cache
	quotes   *quotes.Cache
	tokens   *tokens.Registry
	logger   logger.Logger
}

// New assembles an executor over the given networks. The token registry is
// filled from the network configs; lease expiry is wired to nonce rollback so
// abandoned external leases return their nonces.
func New(cfg *config.Config, networks map[string]*Network, lockReg *locks.Registry,
	nonceCache *nonces.Cache, quoteCache *quotes.Cache, log logger.Logger) *Executor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	registry := tokens.NewRegistry()
	for name, net := range networks {
		for _, t := range net.Config.Tokens {
			registry.Add(name, tokens.Token{
				Symbol:   t.Symbol,
				Address:  t.Address,
				Decimals: t.Decimals,
				Native:   t.Native,
			})
		}
	}

	lockReg.OnLeaseExpired(func(network, address string, nonce uint64) {
		nonceCache.Rollback(network, address, nonce)
	})

	return &Executor{
		cfg:      cfg,
		networks: networks,
		locks:    lockReg,
		nonces:   nonceCache,
		quotes:   quoteCache,
		tokens:   registry,
		logger:   log,
	}
}

// Network looks up a configured network by name.
func (e *Executor) Network(name string) (*Network, error) {
	net, ok := e.networks[strings.ToLower(name)]
	if !ok {
		return nil, gwerr.New(gwerr.Validation, "unknown network: %s", name)
	}
	return net, nil
}

// Networks returns all configured networks, for status reporting.
func (e *Executor) Networks() map[string]*Network {
	return e.networks
}

// Locks exposes the wallet lock registry for the coordination API.
func (e *Executor) Locks() *locks.Registry {
	return e.locks
}

// Nonces exposes the nonce cache for the coordination API.
func (e *Executor) Nonces() *nonces.Cache {
	return e.nonces
}

// Tokens exposes the token registry.
func (e *Executor) Tokens() *tokens.Registry {
	return e.tokens
}

// slippageBps picks the request's slippage or the configured default.
func (e *Executor) slippageBps(requestPct float64) uint32 {
	if requestPct > 0 {
		return uint32(requestPct * 100)
	}
	return e.cfg.DefaultSlippageBps
}

// validateSwapRequest checks everything that can be rejected before touching
// the chain and resolves the request's tokens.
func (e *Executor) validateSwapRequest(req models.SwapRequest) (*Network, tokens.Token, tokens.Token, error) {
	var none tokens.Token

	net, err := e.Network(req.Network)
	if err != nil {
		return nil, none, none, err
	}
	if !req.Side.Valid() {
		return nil, none, none, gwerr.New(gwerr.Validation, "invalid side: %s, must be BUY or SELL", req.Side)
	}
	if req.Amount <= 0 {
		return nil, none, none, gwerr.New(gwerr.Validation, "amount must be greater than zero")
	}
	if req.WalletAddress == "" {
		return nil, none, none, gwerr.New(gwerr.Validation, "walletAddress is required")
	}

	base, ok := e.tokens.Get(req.Network, req.BaseToken)
	if !ok {
		return nil, none, none, gwerr.New(gwerr.Validation, "unknown token: %s", req.BaseToken)
	}
	quote, ok := e.tokens.Get(req.Network, req.QuoteToken)
	if !ok {
		return nil, none, none, gwerr.New(gwerr.Validation, "unknown token: %s", req.QuoteToken)
	}

	// Routers trade the wrapped form of the native token; the native entry is
	// an alias for routing purposes.
	if base, err = e.routable(req.Network, net, base); err != nil {
		return nil, none, none, err
	}
	if quote, err = e.routable(req.Network, net, quote); err != nil {
		return nil, none, none, err
	}
	if strings.EqualFold(base.Address, quote.Address) {
		return nil, none, none, gwerr.New(gwerr.Validation, "base and quote tokens must differ")
	}

	return net, base, quote, nil
}

func (e *Executor) routable(network string, net *Network, t tokens.Token) (tokens.Token, error) {
	if !t.Native {
		return t, nil
	}
	wrapped, ok := e.tokens.Get(network, net.Config.WrappedNative)
	if !ok {
		return t, gwerr.New(gwerr.Validation, "no wrapped native token configured for network %s", network)
	}
	return wrapped, nil
}

// resolvePool finds the pool to trade: the explicit address when given, else
// the configured pool for the pair, preferring the requested pool type.
func (e *Executor) resolvePool(net *Network, base, quote tokens.Token, hint dex.PoolType, explicit string) (dex.Pool, error) {
	pool := dex.Pool{BaseToken: base, QuoteToken: quote, Type: hint}

	if explicit != "" {
		pool.Address = explicit
		return pool, nil
	}

	var fallback *config.PoolConfig
	for i, p := range net.Config.Pools {
		if !pairMatches(p, base.Symbol, quote.Symbol) {
			continue
		}
		if dex.PoolType(p.Type) == hint {
			pool.Address = p.Address
			return pool, nil
		}
		if fallback == nil {
			fallback = &net.Config.Pools[i]
		}
	}
	if fallback != nil {
		pool.Address = fallback.Address
		pool.Type = dex.PoolType(fallback.Type)
		return pool, nil
	}
	return pool, gwerr.New(gwerr.NotFound, "no pool configured for pair %s-%s", base.Symbol, quote.Symbol)
}

func pairMatches(p config.PoolConfig, base, quote string) bool {
	return (strings.EqualFold(p.Base, base) && strings.EqualFold(p.Quote, quote)) ||
		(strings.EqualFold(p.Base, quote) && strings.EqualFold(p.Quote, base))
}

// acquireWallet takes the wallet lock, recording how long the caller waited.
func (e *Executor) acquireWallet(ctx context.Context, network, wallet string) (locks.ReleaseFunc, error) {
	waitStart := time.Now()
	release, err := e.locks.Acquire(ctx, network, wallet)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "could not acquire wallet lock")
	}
	metrics.LockWaitTime.WithLabelValues(network).Observe(time.Since(waitStart).Seconds())
	return release, nil
}

// swapData summarizes the economics of a settled route for the response.
func swapData(route *dex.Route, fee float64) *models.SwapData {
	data := &models.SwapData{
		TokenIn:   route.TokenIn.Symbol,
		TokenOut:  route.TokenOut.Symbol,
		AmountIn:  route.TokenIn.FromRaw(route.AmountIn),
		AmountOut: route.TokenOut.FromRaw(route.AmountOut),
		Fee:       fee,
	}
	if route.Side == models.SideSell {
		data.BaseTokenBalanceChange = -data.AmountIn
		data.QuoteTokenBalanceChange = data.AmountOut
	} else {
		data.BaseTokenBalanceChange = data.AmountOut
		data.QuoteTokenBalanceChange = -data.AmountIn
	}
	return data
}

func shortfall(t tokens.Token, have, need fmt.Stringer) string {
	return fmt.Sprintf("insufficient %s balance: have %s, need %s raw units", t.Symbol, have, need)
}
