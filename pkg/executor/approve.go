package executor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// Approve grants a spender an allowance outside of any swap. Unlike the
// inline approval the swap pipeline submits, this one runs on explicit
// request, so it goes through regardless of the signer's auto-approve policy;
// hardware devices still prompt for confirmation.
func (e *Executor) Approve(ctx context.Context, req models.ApproveRequest) (*models.ApproveResponse, error) {
	net, err := e.Network(req.Network)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	if !net.IsAccountNonce() {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation,
			"network %s has no allowance model", req.Network))
	}
	if err := e.checkWallet(net, req.WalletAddress); err != nil {
		return nil, e.countError(req.Network, err)
	}

	token, ok := e.tokens.Get(req.Network, req.Token)
	if !ok {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation, "unknown token: %s", req.Token))
	}
	if token.Native {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation,
			"native currency has no allowance, wrap it first"))
	}
	if !common.IsHexAddress(req.Spender) {
		return nil, e.countError(req.Network, gwerr.New(gwerr.Validation, "invalid spender address: %s", req.Spender))
	}
	spender := common.HexToAddress(req.Spender)

	// Amount zero asks for an unlimited approval.
	amount := contracts.MaxUint256
	if req.Amount > 0 {
		amount = token.ToRaw(req.Amount)
	}

	release, err := e.acquireWallet(ctx, req.Network, req.WalletAddress)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	defer release()

	data, err := contracts.PackApprove(spender, amount)
	if err != nil {
		return nil, e.countError(req.Network, gwerr.Wrap(gwerr.Internal, err, "could not encode approval"))
	}
	hash, err := e.sendEvmTx(ctx, net, common.HexToAddress(token.Address), big.NewInt(0), data, chainclient.ApproveGasLimit)
	if err != nil {
		return nil, e.countError(req.Network, err)
	}
	metrics.ApprovalsSubmitted.WithLabelValues(req.Network).Inc()

	receipt, err := e.awaitEvmReceipt(ctx, net, hash, e.cfg.Confirm.Timeout)
	if err != nil {
		return nil, e.countError(req.Network, gwerr.Classify(err).WithTxHash(hash.Hex()))
	}

	resp := &models.ApproveResponse{
		Signature: hash.Hex(),
		Status:    receipt.Status,
		Token:     token.Symbol,
		Spender:   spender.Hex(),
		Fee:       receipt.FeeNative(),
	}
	if receipt.Status == models.TxFailed {
		return resp, e.countError(req.Network,
			gwerr.New(gwerr.Internal, "approval transaction reverted").WithTxHash(hash.Hex()))
	}
	return resp, nil
}
