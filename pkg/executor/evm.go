package executor

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// swapDeadline is how long a built swap stays valid on chain. Long enough to
// survive slow inclusion, short enough that an abandoned transaction cannot
// execute at a far-future price.
const swapDeadline = 5 * time.Minute

// executeEvmSwap runs the account-nonce swap pipeline under the wallet lock:
// balance, allowance, build, sign, submit, confirm. An inline wrap tops up the
// wrapped balance from native funds when the caller asked for it.
func (e *Executor) executeEvmSwap(ctx context.Context, net *Network, route *dex.Route, useNative bool) (*models.SwapExecuteResponse, error) {
	wallet := net.EvmSigner.Address()
	required := route.RequiredInput()
	tokenIn := common.HexToAddress(route.TokenIn.Address)

	if err := e.coverEvmInput(ctx, net, route, required, useNative); err != nil {
		return nil, err
	}
	if err := e.ensureAllowance(ctx, net, tokenIn, e.spenderFor(net, route.Pool.Type), required); err != nil {
		return nil, err
	}

	data, err := e.swapCalldata(net, route, wallet)
	if err != nil {
		return nil, err
	}

	router := e.routerFor(net, route.Pool.Type)
	hash, err := e.sendEvmTx(ctx, net, router, big.NewInt(0), data, chainclient.RouterGasLimit)
	if err != nil {
		return nil, err
	}

	receipt, err := e.awaitEvmReceipt(ctx, net, hash, e.cfg.Confirm.Timeout)
	if err != nil {
		return nil, gwerr.Classify(err).WithTxHash(hash.Hex())
	}

	resp := &models.SwapExecuteResponse{Signature: hash.Hex(), Status: receipt.Status}
	if receipt.Status == models.TxConfirmed {
		resp.Data = swapData(route, receipt.FeeNative())
	}
	if receipt.Status == models.TxFailed {
		// The chain accepted and then reverted the transaction. The revert
		// reason is not in the receipt, so no finer classification is possible;
		// the hash lets the caller inspect the failure.
		return resp, gwerr.New(gwerr.Internal, "swap transaction reverted").WithTxHash(hash.Hex())
	}
	return resp, nil
}

// coverEvmInput verifies the wallet can fund the worst-case input, wrapping
// native funds inline when allowed and needed.
func (e *Executor) coverEvmInput(ctx context.Context, net *Network, route *dex.Route, required *big.Int, useNative bool) error {
	wallet := net.EvmSigner.Address()
	tokenIn := common.HexToAddress(route.TokenIn.Address)

	balance, err := net.Evm.TokenBalance(ctx, tokenIn, wallet)
	if err != nil {
		return gwerr.Classify(err)
	}
	if balance.Cmp(required) >= 0 {
		return nil
	}

	wrapped, _ := e.tokens.Get(net.Config.Name, net.Config.WrappedNative)
	canWrap := useNative && strings.EqualFold(route.TokenIn.Address, wrapped.Address)
	if !canWrap {
		return gwerr.New(gwerr.InsufficientFunds, "%s", shortfall(route.TokenIn, balance, required))
	}

	missing := new(big.Int).Sub(required, balance)
	native, err := net.Evm.NativeBalance(ctx, wallet)
	if err != nil {
		return gwerr.Classify(err)
	}
	if native.Cmp(missing) <= 0 {
		// Equality is not enough: gas still has to come out of the native
		// balance.
		return gwerr.New(gwerr.InsufficientFunds,
			"insufficient native balance to wrap: have %s, need more than %s raw units", native, missing)
	}

	e.logger.InfoWithNetwork(net.Config.Name, "Wrapping %s raw native units to cover swap input", missing)
	deposit, err := contracts.PackDeposit()
	if err != nil {
		return gwerr.Wrap(gwerr.Internal, err, "could not encode wrap")
	}
	hash, err := e.sendEvmTx(ctx, net, tokenIn, missing, deposit, chainclient.WrapGasLimit)
	if err != nil {
		return err
	}

	receipt, err := e.awaitEvmReceipt(ctx, net, hash, e.cfg.Confirm.ApproveWait)
	if err != nil {
		return gwerr.Classify(err).WithTxHash(hash.Hex())
	}
	if receipt.Status != models.TxConfirmed {
		return gwerr.New(gwerr.Internal, "wrap transaction did not confirm in time").WithTxHash(hash.Hex())
	}
	return nil
}

// ensureAllowance checks the spender's allowance and submits an approval when
// it falls short. Hardware-backed signers never auto-approve; the caller gets
// a classified error telling them to grant the allowance themselves.
func (e *Executor) ensureAllowance(ctx context.Context, net *Network, token, spender common.Address, required *big.Int) error {
	wallet := net.EvmSigner.Address()

	allowance, err := net.Evm.Allowance(ctx, token, wallet, spender)
	if err != nil {
		return gwerr.Classify(err)
	}
	if allowance.Cmp(required) >= 0 {
		return nil
	}

	if !net.EvmSigner.AutoApprove() {
		return gwerr.New(gwerr.AllowanceRequired,
			"spender %s needs an allowance of at least %s raw units on %s, approve it on the signing device first",
			spender.Hex(), required, token.Hex())
	}

	// Approve a healthy multiple of the requirement so repeat swaps of
	// similar size skip this round trip.
	amount := new(big.Int).Mul(required, big.NewInt(10))
	if amount.Cmp(contracts.MaxUint256) > 0 {
		amount = contracts.MaxUint256
	}

	e.logger.InfoWithNetwork(net.Config.Name, "Approving %s to spend %s raw units of %s",
		spender.Hex(), amount, token.Hex())
	data, err := contracts.PackApprove(spender, amount)
	if err != nil {
		return gwerr.Wrap(gwerr.Internal, err, "could not encode approval")
	}
	hash, err := e.sendEvmTx(ctx, net, token, big.NewInt(0), data, chainclient.ApproveGasLimit)
	if err != nil {
		return err
	}
	metrics.ApprovalsSubmitted.WithLabelValues(net.Config.Name).Inc()

	receipt, err := e.awaitEvmReceipt(ctx, net, hash, e.cfg.Confirm.ApproveWait)
	if err != nil {
		return gwerr.Classify(err).WithTxHash(hash.Hex())
	}
	if receipt.Status != models.TxConfirmed {
		return gwerr.New(gwerr.Internal, "approval did not confirm in time, retry once it lands").WithTxHash(hash.Hex())
	}
	return nil
}

// spenderFor returns the address that must hold the input allowance: the
// permit contract when one is configured, otherwise the router itself.
func (e *Executor) spenderFor(net *Network, poolType dex.PoolType) common.Address {
	if net.Config.PermitSpender != "" {
		return common.HexToAddress(net.Config.PermitSpender)
	}
	return e.routerFor(net, poolType)
}

func (e *Executor) routerFor(net *Network, poolType dex.PoolType) common.Address {
	if poolType == dex.PoolTypeClmm && net.Config.ClmmRouter != "" {
		return common.HexToAddress(net.Config.ClmmRouter)
	}
	return common.HexToAddress(net.Config.RouterAddress)
}

// swapCalldata encodes the router call for the route.
func (e *Executor) swapCalldata(net *Network, route *dex.Route, recipient common.Address) ([]byte, error) {
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	tokenIn := common.HexToAddress(route.TokenIn.Address)
	tokenOut := common.HexToAddress(route.TokenOut.Address)

	var data []byte
	var err error
	if route.Pool.Type == dex.PoolTypeClmm {
		fee := big.NewInt(int64(route.Pool.FeeTier))
		if route.Side == models.SideSell {
			data, err = contracts.PackExactInputSingle(contracts.ExactInputSingleParams{
				TokenIn:           tokenIn,
				TokenOut:          tokenOut,
				Fee:               fee,
				Recipient:         recipient,
				Deadline:          deadline,
				AmountIn:          route.AmountIn,
				AmountOutMinimum:  route.MinAmountOut,
				SqrtPriceLimitX96: big.NewInt(0),
			})
		} else {
			data, err = contracts.PackExactOutputSingle(contracts.ExactOutputSingleParams{
				TokenIn:           tokenIn,
				TokenOut:          tokenOut,
				Fee:               fee,
				Recipient:         recipient,
				Deadline:          deadline,
				AmountOut:         route.AmountOut,
				AmountInMaximum:   route.MaxAmountIn,
				SqrtPriceLimitX96: big.NewInt(0),
			})
		}
	} else {
		path := []common.Address{tokenIn, tokenOut}
		if route.Side == models.SideSell {
			data, err = contracts.PackSwapExactTokensForTokens(route.AmountIn, route.MinAmountOut, path, recipient, deadline)
		} else {
			data, err = contracts.PackSwapTokensForExactTokens(route.AmountOut, route.MaxAmountIn, path, recipient, deadline)
		}
	}
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "could not encode swap")
	}
	return data, nil
}

// sendEvmTx runs one account-nonce submission: fee estimate, nonce handout,
// sign, simulate, broadcast. Every failure after the nonce was handed out puts
// it back, except staleness errors, which drop the whole cached state so the
// next handout re-reads the chain.
func (e *Executor) sendEvmTx(ctx context.Context, net *Network, to common.Address,
	value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {

	network := net.Config.Name
	wallet := net.EvmSigner.Address()

	if net.Breaker != nil && net.Breaker.IsOpen() {
		return common.Hash{}, gwerr.New(gwerr.Expired, "submissions to %s are suspended by the circuit breaker", network)
	}

	fees, err := net.Evm.SuggestFees(ctx)
	if err != nil {
		return common.Hash{}, gwerr.Classify(err)
	}

	nonce, err := e.nonces.NextNonce(ctx, net.Evm, network, wallet.Hex())
	if err != nil {
		return common.Hash{}, gwerr.Classify(err)
	}

	fail := func(err error) (common.Hash, error) {
		classified := gwerr.Classify(err)
		if classified.Kind == gwerr.NonceStale {
			e.nonces.Invalidate(network, wallet.Hex())
		} else {
			e.nonces.Rollback(network, wallet.Hex(), nonce)
		}
		return common.Hash{}, classified
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   net.Evm.ChainID(),
		Nonce:     nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := net.EvmSigner.SignTx(ctx, tx, net.Evm.ChainID())
	if err != nil {
		return fail(err)
	}

	err = net.Evm.Simulate(ctx, ethereum.CallMsg{
		From:      wallet,
		To:        &to,
		Gas:       gasLimit,
		GasFeeCap: fees.GasFeeCap,
		GasTipCap: fees.GasTipCap,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		e.logger.DebugWithNetwork(network, "Simulation rejected transaction: %v", err)
		return fail(err)
	}

	if err := net.Evm.SubmitTx(ctx, signed); err != nil {
		if net.Breaker != nil {
			net.Breaker.RecordFailure()
		}
		return fail(err)
	}

	e.logger.InfoWithNetwork(network, "Submitted %s with nonce %d", signed.Hash().Hex(), nonce)
	return signed.Hash(), nil
}
