package executor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// Wrap converts native currency into its wrapped token, or back. Only
// account-nonce networks carry a wrapped-native contract.
func (e *Executor) Wrap(ctx context.Context, req models.WrapRequest) (*models.WrapResponse, error) {
	net, err := e.Network(req.Network)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	if !net.IsAccountNonce() {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation,
			"network %s has no wrapped-native contract", req.Network))
	}
	if err := e.checkWallet(net, req.WalletAddress); err != nil {
		return nil, e.countError(req.Network, err)
	}
	if req.Amount <= 0 {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation, "amount must be greater than zero"))
	}

	wrapped, ok := e.tokens.Get(req.Network, net.Config.WrappedNative)
	if !ok {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation,
			"no wrapped native token configured for network %s", req.Network))
	}
	amount := wrapped.ToRaw(req.Amount)
	contract := common.HexToAddress(wrapped.Address)
	wallet := net.EvmSigner.Address()

	release, err := e.acquireWallet(ctx, req.Network, req.WalletAddress)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	defer release()

	var data []byte
	value := big.NewInt(0)
	if req.Unwrap {
		balance, berr := net.Evm.TokenBalance(ctx, contract, wallet)
		if berr != nil {
			return nil, e.countError(req.Network, gwerr.Classify(berr))
		}
		if balance.Cmp(amount) < 0 {
			return nil, e.countError(req.Network, gwerr.New(gwerr.InsufficientFunds,
				"%s", shortfall(wrapped, balance, amount)))
		}
		data, err = contracts.PackWithdraw(amount)
	} else {
		balance, berr := net.Evm.NativeBalance(ctx, wallet)
		if berr != nil {
			return nil, e.countError(req.Network, gwerr.Classify(berr))
		}
		// Strictly greater: gas comes out of the same balance.
		if balance.Cmp(amount) <= 0 {
			return nil, e.countError(req.Network, gwerr.New(gwerr.InsufficientFunds,
				"insufficient native balance: have %s, need more than %s raw units", balance, amount))
		}
		data, err = contracts.PackDeposit()
		value = amount
	}
	if err != nil {
		return nil, e.countError(req.Network, gwerr.Wrap(gwerr.Internal, err, "could not encode wrap call"))
	}

	hash, err := e.sendEvmTx(ctx, net, contract, value, data, chainclient.WrapGasLimit)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}

	receipt, err := e.awaitEvmReceipt(ctx, net, hash, e.cfg.Confirm.Timeout)
	if err != nil {
		return nil, e.countError(req.Network, gwerr.Classify(err).WithTxHash(hash.Hex()))
	}

	resp := &models.WrapResponse{
		Signature: hash.Hex(),
		Status:    receipt.Status,
		Amount:    req.Amount,
		Unwrapped: req.Unwrap,
		Fee:       receipt.FeeNative(),
	}
	if receipt.Status == models.TxFailed {
		return resp, e.countError(req.Network,
			gwerr.New(gwerr.Internal, "wrap transaction reverted").WithTxHash(hash.Hex()))
	}
	return resp, nil
}
