package executor

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// awaitEvmReceipt polls for a receipt until the budget runs out. Transient
// poll errors are logged and retried; only the budget expiring ends the wait,
// reporting the transaction as still pending. An immediate poll runs before
// the first tick so fast chains confirm without waiting an interval.
func (e *Executor) awaitEvmReceipt(ctx context.Context, net *Network, hash common.Hash, budget time.Duration) (*chainclient.Receipt, error) {
	network := net.Config.Name
	deadline := time.Now().Add(budget)

	ticker := time.NewTicker(e.cfg.Confirm.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := net.Evm.PollReceipt(ctx, hash)
		if err != nil {
			e.logger.DebugWithNetwork(network, "Receipt poll for %s failed: %v", hash.Hex(), err)
		} else if receipt.Found {
			metrics.Confirmations.WithLabelValues(network, receipt.Status.String()).Inc()
			e.logger.InfoWithNetwork(network, "Transaction %s %s in block %d",
				hash.Hex(), receipt.Status, receipt.BlockNumber)
			return receipt, nil
		}

		if time.Now().After(deadline) {
			metrics.Confirmations.WithLabelValues(network, models.TxPending.String()).Inc()
			e.logger.NoticeWithNetwork(network, "Transaction %s still pending after %s", hash.Hex(), budget)
			return &chainclient.Receipt{Found: false, Status: models.TxPending}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// awaitSvmStatus polls a signature until it reaches a terminal state or the
// budget runs out. The settled fee is returned in native units alongside the
// status.
func (e *Executor) awaitSvmStatus(ctx context.Context, net *Network, signature string, budget time.Duration) (models.TxStatus, float64, error) {
	network := net.Config.Name
	deadline := time.Now().Add(budget)

	ticker := time.NewTicker(e.cfg.Confirm.PollInterval)
	defer ticker.Stop()

	for {
		status, err := net.Svm.SignatureStatus(ctx, signature)
		if err != nil {
			e.logger.DebugWithNetwork(network, "Status poll for %s failed: %v", signature, err)
		} else if status.Found && status.Failed {
			metrics.Confirmations.WithLabelValues(network, models.TxFailed.String()).Inc()
			e.logger.ErrorWithNetwork(network, "Transaction %s failed: %s", signature, status.ErrText)
			return models.TxFailed, 0, nil
		} else if status.Found && status.Finalized {
			metrics.Confirmations.WithLabelValues(network, models.TxConfirmed.String()).Inc()
			fee, _ := net.Svm.TransactionFee(ctx, signature)
			e.logger.InfoWithNetwork(network, "Transaction %s confirmed in slot %d", signature, status.Slot)
			return models.TxConfirmed, lamportsToNative(fee), nil
		}

		if time.Now().After(deadline) {
			metrics.Confirmations.WithLabelValues(network, models.TxPending.String()).Inc()
			e.logger.NoticeWithNetwork(network, "Transaction %s still pending after %s", signature, budget)
			return models.TxPending, 0, nil
		}

		select {
		case <-ctx.Done():
			return models.TxPending, 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reports the chain's current view of a submitted transaction in a
// single round trip, without waiting.
func (e *Executor) Poll(ctx context.Context, network, signature string) (*models.PollResponse, error) {
	net, err := e.Network(network)
	if err != nil {
		return nil, err
	}
	if signature == "" {
		return nil, gwerr.New(gwerr.Validation, "signature is required")
	}

	if net.IsAccountNonce() {
		receipt, err := net.Evm.PollReceipt(ctx, common.HexToHash(signature))
		if err != nil {
			return nil, gwerr.Classify(err)
		}
		resp := &models.PollResponse{Signature: signature, Status: receipt.Status}
		if receipt.Found {
			resp.Fee = receipt.FeeNative()
			resp.BlockNumber = receipt.BlockNumber
		}
		return resp, nil
	}

	status, err := net.Svm.SignatureStatus(ctx, signature)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	resp := &models.PollResponse{Signature: signature, Status: models.TxPending}
	switch {
	case status.Found && status.Failed:
		resp.Status = models.TxFailed
	case status.Found && status.Finalized:
		resp.Status = models.TxConfirmed
		fee, _ := net.Svm.TransactionFee(ctx, signature)
		resp.Fee = lamportsToNative(fee)
		resp.BlockNumber = status.Slot
	}
	return resp, nil
}

func lamportsToNative(lamports uint64) float64 {
	return float64(lamports) / 1e9
}
