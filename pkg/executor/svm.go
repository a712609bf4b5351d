package executor

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// Swap program instruction tags, matching the Raydium-style layout.
const (
	svmSwapBaseInTag  = 9
	svmSwapBaseOutTag = 11
)

// svmPriorityFeeLamports is the whole-transaction priority fee budget, spread
// over the compute-unit limit by the compute budget program.
const svmPriorityFeeLamports = 10_000

// executeSvmSwap runs the signature-hash swap pipeline. There is no nonce to
// coordinate; the recent blockhash anchors the transaction and expires on its
// own, so a failed submission leaves nothing to roll back.
func (e *Executor) executeSvmSwap(ctx context.Context, net *Network, route *dex.Route) (*models.SwapExecuteResponse, error) {
	wallet := chainclient.Base58Encode(net.SvmSigner.PublicKey())
	network := net.Config.Name

	if net.Breaker != nil && net.Breaker.IsOpen() {
		return nil, gwerr.New(gwerr.Expired, "submissions to %s are suspended by the circuit breaker", network)
	}

	required := route.RequiredInput()
	balance, err := net.Svm.TokenBalance(ctx, wallet, route.TokenIn.Address)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	if balance.Cmp(required) < 0 {
		return nil, gwerr.New(gwerr.InsufficientFunds, "%s", shortfall(route.TokenIn, balance, required))
	}

	instructions, err := e.svmSwapInstructions(net, wallet, route)
	if err != nil {
		return nil, err
	}

	blockhash, err := net.Svm.LatestBlockhash(ctx)
	if err != nil {
		return nil, gwerr.Classify(err)
	}

	message, err := chainclient.BuildSvmMessage(wallet, blockhash, instructions)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "could not build transaction")
	}
	sig, err := net.SvmSigner.SignMessage(ctx, message)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	txBase64 := chainclient.EncodeSvmTransaction(sig, message)

	if err := net.Svm.SimulateTransaction(ctx, txBase64); err != nil {
		e.logger.DebugWithNetwork(network, "Simulation rejected transaction: %v", err)
		return nil, gwerr.Classify(err)
	}

	signature, err := net.Svm.SendTransaction(ctx, txBase64)
	if err != nil {
		if net.Breaker != nil {
			net.Breaker.RecordFailure()
		}
		return nil, gwerr.Classify(err)
	}
	e.logger.InfoWithNetwork(network, "Submitted %s", signature)

	status, fee, err := e.awaitSvmStatus(ctx, net, signature, e.cfg.Confirm.Timeout)
	if err != nil {
		return nil, gwerr.Classify(err).WithTxHash(signature)
	}

	resp := &models.SwapExecuteResponse{Signature: signature, Status: status}
	if status == models.TxConfirmed {
		resp.Data = swapData(route, fee)
	}
	if status == models.TxFailed {
		return resp, gwerr.New(gwerr.Internal, "swap transaction failed on chain").WithTxHash(signature)
	}
	return resp, nil
}

// svmSwapInstructions assembles the compute budget pair and the swap call.
func (e *Executor) svmSwapInstructions(net *Network, wallet string, route *dex.Route) ([]chainclient.SvmInstruction, error) {
	var units uint32 = chainclient.AmmComputeUnits
	program := net.Config.RouterAddress
	if route.Pool.Type == dex.PoolTypeClmm {
		units = chainclient.ClmmComputeUnits
		if net.Config.ClmmRouter != "" {
			program = net.Config.ClmmRouter
		}
	}

	data, err := svmSwapData(route)
	if err != nil {
		return nil, err
	}

	swap := chainclient.SvmInstruction{
		ProgramID: program,
		Accounts: []chainclient.SvmAccountMeta{
			{Pubkey: wallet, Signer: true, Writable: true},
			{Pubkey: route.Pool.Address, Writable: true},
			{Pubkey: route.TokenIn.Address},
			{Pubkey: route.TokenOut.Address},
		},
		Data: data,
	}

	return []chainclient.SvmInstruction{
		chainclient.ComputeUnitLimitInstruction(units),
		chainclient.ComputeUnitPriceInstruction(chainclient.PriorityFeePerComputeUnit(svmPriorityFeeLamports, units)),
		swap,
	}, nil
}

// svmSwapData encodes the swap instruction payload: a one-byte tag followed by
// the two u64 amounts, exact side first.
func svmSwapData(route *dex.Route) ([]byte, error) {
	data := make([]byte, 17)
	if route.Side == models.SideSell {
		data[0] = svmSwapBaseInTag
		if err := putU64(data[1:9], route.AmountIn); err != nil {
			return nil, err
		}
		if err := putU64(data[9:17], route.MinAmountOut); err != nil {
			return nil, err
		}
	} else {
		data[0] = svmSwapBaseOutTag
		if err := putU64(data[1:9], route.MaxAmountIn); err != nil {
			return nil, err
		}
		if err := putU64(data[9:17], route.AmountOut); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func putU64(dst []byte, amount *big.Int) error {
	if !amount.IsUint64() {
		return gwerr.New(gwerr.Validation, "amount %s does not fit the swap instruction", amount)
	}
	binary.LittleEndian.PutUint64(dst, amount.Uint64())
	return nil
}
