// Package chainclient wraps per-network RPC connections behind the narrow
// read/submit surfaces the rest of the gateway consumes. Account-nonce
// networks are served by EvmClient on go-ethereum's ethclient; signature-hash
// networks by SvmClient on a raw JSON-RPC connection.
package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

// Receipt is the normalized view of a mined transaction. Found is false while
// the chain has not seen the hash in a block yet.
type Receipt struct {
	Found       bool
	Status      models.TxStatus
	GasUsed     uint64
	GasPrice    *big.Int
	BlockNumber uint64
}

// FeeNative returns the transaction fee in native token units.
func (r *Receipt) FeeNative() float64 {
	if r == nil || r.GasPrice == nil {
		return 0
	}
	fee := new(big.Float).SetInt(new(big.Int).Mul(r.GasPrice, new(big.Int).SetUint64(r.GasUsed)))
	fee.Quo(fee, big.NewFloat(1e18))
	value, _ := fee.Float64()
	return value
}

// EvmBackend is everything the gateway needs from an account-nonce chain.
// *EvmClient is the production implementation; tests substitute fakes.
type EvmBackend interface {
	ChainID() *big.Int
	PendingNonce(ctx context.Context, address string) (uint64, error)
	NativeBalance(ctx context.Context, address common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	SuggestFees(ctx context.Context) (*GasFees, error)
	Simulate(ctx context.Context, msg ethereum.CallMsg) error
	SubmitTx(ctx context.Context, tx *types.Transaction) error
	PollReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	Caller() bind.ContractCaller
}

// EvmClient connects to one account-nonce network.
type EvmClient struct {
	network string
	chainID *big.Int
	client  *ethclient.Client
	policy  GasPolicy
	logger  logger.Logger

	mu          sync.RWMutex
	currentFees *GasFees
}

var _ EvmBackend = (*EvmClient)(nil)

// NewEvmClient dials the RPC endpoint and verifies the chain id matches the
// configured one, so a copy-pasted RPC URL for the wrong network fails fast.
func NewEvmClient(ctx context.Context, network, rpcURL string, chainID int64, policy GasPolicy, log logger.Logger) (*EvmClient, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network %s: %v", network, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id for network %s: %v", network, err)
	}
	if remoteID.Int64() != chainID {
		return nil, fmt.Errorf("network %s expects chain id %d but RPC reports %s", network, chainID, remoteID)
	}

	return &EvmClient{
		network: network,
		chainID: remoteID,
		client:  client,
		policy:  policy,
		logger:  log,
	}, nil
}

// ChainID returns the connected chain's id.
func (c *EvmClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Network returns the network name the client serves.
func (c *EvmClient) Network() string {
	return c.network
}

// PendingNonce returns the chain's pending transaction count for an address.
func (c *EvmClient) PendingNonce(ctx context.Context, address string) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "pending_nonce").Inc()
		return 0, fmt.Errorf("failed to get pending nonce: %v", err)
	}
	return nonce, nil
}

// NativeBalance returns the raw native-token balance of an address.
func (c *EvmClient) NativeBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, address, nil)
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "balance").Inc()
		return nil, fmt.Errorf("failed to get balance: %v", err)
	}
	return balance, nil
}

// TokenBalance returns the raw ERC-20 balance of an owner.
func (c *EvmClient) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	balance, err := contracts.NewERC20(token, c.client).BalanceOf(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "token_balance").Inc()
		return nil, fmt.Errorf("failed to get token balance: %v", err)
	}
	return balance, nil
}

// Allowance returns the raw amount a spender may move on behalf of an owner.
func (c *EvmClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	allowance, err := contracts.NewERC20(token, c.client).Allowance(&bind.CallOpts{Context: ctx}, owner, spender)
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "allowance").Inc()
		return nil, fmt.Errorf("failed to get allowance: %v", err)
	}
	return allowance, nil
}

// SuggestFees returns the current fee estimate with the gas policy applied.
// A cached value from the refresh routine is preferred; the chain is queried
// only when no cached estimate exists yet.
func (c *EvmClient) SuggestFees(ctx context.Context) (*GasFees, error) {
	c.mu.RLock()
	cached := c.currentFees
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return c.RefreshFees(ctx)
}

// RefreshFees queries the chain for a fresh fee estimate, applies the gas
// policy, and stores the result for SuggestFees.
func (c *EvmClient) RefreshFees(ctx context.Context) (*GasFees, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gasPrice, err := c.client.SuggestGasPrice(timeoutCtx)
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "gas_price").Inc()
		return nil, fmt.Errorf("failed to get gas price: %v", err)
	}

	tipCap, err := c.client.SuggestGasTipCap(timeoutCtx)
	if err != nil {
		// Legacy nodes without EIP-1559 support still serve SuggestGasPrice;
		// fall back to a zero tip rather than failing the submission.
		c.logger.DebugWithNetwork(c.network, "Tip cap unavailable, using zero: %v", err)
		tipCap = big.NewInt(0)
	}

	fees := c.policy.Apply(gasPrice, tipCap)

	c.mu.Lock()
	c.currentFees = fees
	c.mu.Unlock()

	metrics.GasPrice.WithLabelValues(c.network).Set(weiToGwei(fees.GasFeeCap))
	return fees, nil
}

// Simulate executes the call against pending state without submitting it. A
// nil return means the node expects the transaction to succeed.
func (c *EvmClient) Simulate(ctx context.Context, msg ethereum.CallMsg) error {
	if _, err := c.client.CallContract(ctx, msg, nil); err != nil {
		return err
	}
	return nil
}

// SubmitTx broadcasts a signed transaction.
func (c *EvmClient) SubmitTx(ctx context.Context, tx *types.Transaction) error {
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "submit").Inc()
		return err
	}
	return nil
}

// PollReceipt fetches the receipt for a hash. A transaction the chain has not
// mined yet reports Found=false without error.
func (c *EvmClient) PollReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err == ethereum.NotFound {
		return &Receipt{Found: false, Status: models.TxPending}, nil
	}
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "receipt").Inc()
		return nil, fmt.Errorf("failed to get receipt: %v", err)
	}

	status := models.TxConfirmed
	if receipt.Status == types.ReceiptStatusFailed {
		status = models.TxFailed
	}
	return &Receipt{
		Found:       true,
		Status:      status,
		GasUsed:     receipt.GasUsed,
		GasPrice:    receipt.EffectiveGasPrice,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// Caller exposes the underlying connection for contract bindings.
func (c *EvmClient) Caller() bind.ContractCaller {
	return c.client
}

// LatestBlockNumber returns the chain head height, used by readiness checks.
func (c *EvmClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// Close tears down the RPC connection.
func (c *EvmClient) Close() {
	c.client.Close()
}
