package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/metrics"
)

// SvmSignatureStatus is the chain's view of a submitted signature.
type SvmSignatureStatus struct {
	Found     bool
	Finalized bool
	Failed    bool
	ErrText   string
	Slot      uint64
}

// SvmBackend is everything the gateway needs from a signature-hash chain.
// *SvmClient is the production implementation; tests substitute fakes.
type SvmBackend interface {
	LatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
	SimulateTransaction(ctx context.Context, txBase64 string) error
	SignatureStatus(ctx context.Context, signature string) (*SvmSignatureStatus, error)
	Balance(ctx context.Context, pubkey string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error)
	AccountOwner(ctx context.Context, pubkey string) (string, error)
	TransactionFee(ctx context.Context, signature string) (uint64, error)
}

// SvmClient connects to one signature-hash network over plain JSON-RPC. The
// node's API is close enough to JSON-RPC 2.0 that go-ethereum's transport
// works unchanged; only the method names and result shapes differ.
type SvmClient struct {
	network string
	client  *rpc.Client
	logger  logger.Logger
}

var _ SvmBackend = (*SvmClient)(nil)

// NewSvmClient dials the RPC endpoint.
func NewSvmClient(ctx context.Context, network, rpcURL string, log logger.Logger) (*SvmClient, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network %s: %v", network, err)
	}
	return &SvmClient{network: network, client: client, logger: log}, nil
}

// Network returns the network name the client serves.
func (c *SvmClient) Network() string {
	return c.network
}

// LatestBlockhash returns a recent blockhash to anchor a new transaction.
func (c *SvmClient) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.client.CallContext(ctx, &result, "getLatestBlockhash"); err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "blockhash").Inc()
		return "", fmt.Errorf("failed to get latest blockhash: %v", err)
	}
	return result.Value.Blockhash, nil
}

// SendTransaction broadcasts a base64-encoded signed transaction and returns
// its signature.
func (c *SvmClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	var signature string
	err := c.client.CallContext(ctx, &signature, "sendTransaction", txBase64,
		map[string]interface{}{"encoding": "base64"})
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "submit").Inc()
		return "", err
	}
	return signature, nil
}

// SimulateTransaction runs the transaction against current state. A nil
// return means the node expects it to succeed; otherwise the simulation error
// text is returned for classification.
func (c *SvmClient) SimulateTransaction(ctx context.Context, txBase64 string) error {
	var result struct {
		Value struct {
			Err  json.RawMessage `json:"err"`
			Logs []string        `json:"logs"`
		} `json:"value"`
	}
	err := c.client.CallContext(ctx, &result, "simulateTransaction", txBase64,
		map[string]interface{}{"encoding": "base64", "sigVerify": false, "replaceRecentBlockhash": true})
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "simulate").Inc()
		return err
	}
	if len(result.Value.Err) > 0 && string(result.Value.Err) != "null" {
		// Program logs carry the human-readable failure; the err object alone
		// is usually just an instruction index.
		detail := string(result.Value.Err)
		for _, line := range result.Value.Logs {
			detail += "; " + line
		}
		return fmt.Errorf("simulation failed: %s", detail)
	}
	return nil
}

// SignatureStatus reports whether a signature reached a terminal state.
func (c *SvmClient) SignatureStatus(ctx context.Context, signature string) (*SvmSignatureStatus, error) {
	var result struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			Err                json.RawMessage `json:"err"`
			ConfirmationStatus string          `json:"confirmationStatus"`
		} `json:"value"`
	}
	err := c.client.CallContext(ctx, &result, "getSignatureStatuses", []string{signature},
		map[string]interface{}{"searchTransactionHistory": true})
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "signature_status").Inc()
		return nil, fmt.Errorf("failed to get signature status: %v", err)
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return &SvmSignatureStatus{Found: false}, nil
	}

	entry := result.Value[0]
	status := &SvmSignatureStatus{
		Found:     true,
		Slot:      entry.Slot,
		Finalized: entry.ConfirmationStatus == "confirmed" || entry.ConfirmationStatus == "finalized",
	}
	if len(entry.Err) > 0 && string(entry.Err) != "null" {
		status.Failed = true
		status.ErrText = string(entry.Err)
	}
	return status, nil
}

// Balance returns the native balance of an account in lamports.
func (c *SvmClient) Balance(ctx context.Context, pubkey string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.client.CallContext(ctx, &result, "getBalance", pubkey); err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "balance").Inc()
		return 0, fmt.Errorf("failed to get balance: %v", err)
	}
	return result.Value, nil
}

// TokenBalance sums the raw balances of the owner's token accounts for one
// mint.
func (c *SvmClient) TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error) {
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	err := c.client.CallContext(ctx, &result, "getTokenAccountsByOwner", owner,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{"encoding": "jsonParsed"})
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "token_balance").Inc()
		return nil, fmt.Errorf("failed to get token accounts: %v", err)
	}

	total := big.NewInt(0)
	for _, account := range result.Value {
		amount, ok := new(big.Int).SetString(account.Account.Data.Parsed.Info.TokenAmount.Amount, 10)
		if !ok {
			continue
		}
		total.Add(total, amount)
	}
	return total, nil
}

// AccountOwner returns the program that owns an account. Pool routing uses it
// to tell which swap program a pool belongs to.
func (c *SvmClient) AccountOwner(ctx context.Context, pubkey string) (string, error) {
	var result struct {
		Value *struct {
			Owner string `json:"owner"`
		} `json:"value"`
	}
	err := c.client.CallContext(ctx, &result, "getAccountInfo", pubkey,
		map[string]interface{}{"encoding": "base64"})
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.network, "account_info").Inc()
		return "", fmt.Errorf("failed to get account info: %v", err)
	}
	if result.Value == nil {
		return "", fmt.Errorf("account does not exist: %s", pubkey)
	}
	return result.Value.Owner, nil
}

// TransactionFee returns the fee paid by a settled transaction in lamports.
func (c *SvmClient) TransactionFee(ctx context.Context, signature string) (uint64, error) {
	var result struct {
		Meta *struct {
			Fee uint64 `json:"fee"`
		} `json:"meta"`
	}
	err := c.client.CallContext(ctx, &result, "getTransaction", signature,
		map[string]interface{}{"encoding": "json", "maxSupportedTransactionVersion": 0})
	if err != nil || result.Meta == nil {
		// Fee lookup is best effort; confirmation does not depend on it.
		return 0, nil
	}
	return result.Meta.Fee, nil
}

// Close tears down the RPC connection.
func (c *SvmClient) Close() {
	c.client.Close()
}
