package executor

import (
	"context"
	"strings"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// ExecuteSwap prices and executes a swap in one call, holding the wallet lock
// from before the route is priced until the confirmation wait ends.
func (e *Executor) ExecuteSwap(ctx context.Context, hint dex.PoolType, req models.SwapRequest) (*models.SwapExecuteResponse, error) {
	net, base, quote, err := e.validateSwapRequest(req)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	if err := e.checkWallet(net, req.WalletAddress); err != nil {
		return nil, e.countError(req.Network, err)
	}

	release, err := e.acquireWallet(ctx, req.Network, req.WalletAddress)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	defer release()

	// Priced under the lock so the route reflects state no concurrent request
	// of ours can shift before submission.
	route, err := e.computeRoute(ctx, net, base, quote, hint, req)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}

	return e.runSwap(ctx, net, route, req.UseNativeBalance)
}

// ExecuteQuote redeems a cached quote, executing exactly the route that was
// shown. The quote survives pending and failed executions; only a confirmed
// swap consumes it.
func (e *Executor) ExecuteQuote(ctx context.Context, req models.ExecuteQuoteRequest) (*models.SwapExecuteResponse, error) {
	cached, ok := e.quotes.Get(req.QuoteID)
	if !ok {
		return nil, e.countError(req.Network, gwerr.New(gwerr.NotFound, "Quote not found or expired"))
	}

	if req.Network != "" && req.Network != cached.Network {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation,
			"quote %s belongs to network %s", req.QuoteID, cached.Network))
	}
	wallet := cached.Request.WalletAddress
	if req.WalletAddress != "" && !strings.EqualFold(req.WalletAddress, wallet) {
		return nil, e.countError(cached.Network, gwerr.New(gwerr.Validation,
			"quote %s was issued for a different wallet", req.QuoteID))
	}

	net, err := e.Network(cached.Network)
	if err != nil {
		return nil, e.countError(cached.Network, err)
	}
	if err := e.checkWallet(net, wallet); err != nil {
		return nil, e.countError(cached.Network, err)
	}

	release, err := e.acquireWallet(ctx, cached.Network, wallet)
	if err != nil {
		return nil, e.countError(cached.Network, err)
	}
	defer release()

	resp, err := e.runSwap(ctx, net, cached.Route, cached.Request.UseNativeBalance)
	if resp != nil && resp.Status == models.TxConfirmed {
		e.quotes.Delete(req.QuoteID)
	}
	return resp, err
}

// runSwap dispatches to the network's transaction family and records the
// outcome. Callers hold the wallet lock.
func (e *Executor) runSwap(ctx context.Context, net *Network, route *dex.Route, useNative bool) (*models.SwapExecuteResponse, error) {
	network := net.Config.Name
	start := time.Now()
	defer func() {
		metrics.SwapDuration.WithLabelValues(network).Observe(time.Since(start).Seconds())
	}()

	var resp *models.SwapExecuteResponse
	var err error
	if net.IsAccountNonce() {
		resp, err = e.executeEvmSwap(ctx, net, route, useNative)
	} else {
		resp, err = e.executeSvmSwap(ctx, net, route)
	}

	if err != nil {
		e.countError(network, err)
		if resp == nil {
			return nil, err
		}
		metrics.SwapsExecuted.WithLabelValues(network, resp.Status.String()).Inc()
		return resp, err
	}

	metrics.SwapsExecuted.WithLabelValues(network, resp.Status.String()).Inc()
	return resp, nil
}

// checkWallet rejects requests naming a wallet the gateway cannot sign for.
func (e *Executor) checkWallet(net *Network, wallet string) error {
	if net.IsAccountNonce() {
		if net.EvmSigner == nil {
			return gwerr.New(gwerr.Internal, "no signer configured for network %s", net.Config.Name)
		}
		if !strings.EqualFold(wallet, net.EvmSigner.Address().Hex()) {
			return gwerr.New(gwerr.Validation, "wallet %s is not controlled by this gateway", wallet)
		}
		return nil
	}
	if net.SvmSigner == nil {
		return gwerr.New(gwerr.Internal, "no signer configured for network %s", net.Config.Name)
	}
	if wallet != chainclient.Base58Encode(net.SvmSigner.PublicKey()) {
		return gwerr.New(gwerr.Validation, "wallet %s is not controlled by this gateway", wallet)
	}
	return nil
}

// countError bumps the error metric for the request's network and passes the
// error through unchanged.
func (e *Executor) countError(network string, err error) error {
	if err == nil {
		return nil
	}
	if network == "" {
		network = "unknown"
	}
	metrics.GatewayErrors.WithLabelValues(network, string(gwerr.KindOf(err))).Inc()
	return err
}
