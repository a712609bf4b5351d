package executor

import (
	"context"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/nonces"
	"github.com/dexgate-hq/dexgate/pkg/quotes"
	"github.com/dexgate-hq/dexgate/pkg/signer"
)

// 32-byte ed25519 seed, hex. Throwaway.
const testSeedHex = "1111111111111111111111111111111111111111111111111111111111111111"

func key32(b byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = b
	}
	return chainclient.Base58Encode(raw)
}

var (
	svmAmmProgram = key32(3)
	svmPoolAddr   = key32(4)
	wsolMint      = key32(5)
	svmUsdcMint   = key32(6)
)

// fakeSvm is an in-memory SvmBackend.
type fakeSvm struct {
	wallet       string
	walletBal    *big.Int
	reserveBase  *big.Int
	reserveQuote *big.Int
	failed       bool

	sent []string
}

func (f *fakeSvm) LatestBlockhash(_ context.Context) (string, error) {
	return key32(9), nil
}

func (f *fakeSvm) SendTransaction(_ context.Context, txBase64 string) (string, error) {
	f.sent = append(f.sent, txBase64)
	return "5sigExample", nil
}

func (f *fakeSvm) SimulateTransaction(_ context.Context, _ string) error {
	return nil
}

func (f *fakeSvm) SignatureStatus(_ context.Context, _ string) (*chainclient.SvmSignatureStatus, error) {
	if f.failed {
		return &chainclient.SvmSignatureStatus{Found: true, Failed: true, ErrText: "slippage exceeded"}, nil
	}
	return &chainclient.SvmSignatureStatus{Found: true, Finalized: true, Slot: 555}, nil
}

func (f *fakeSvm) Balance(_ context.Context, _ string) (uint64, error) {
	return 1_000_000_000, nil
}

func (f *fakeSvm) TokenBalance(_ context.Context, owner, mint string) (*big.Int, error) {
	if owner == svmPoolAddr {
		if mint == wsolMint {
			return f.reserveBase, nil
		}
		return f.reserveQuote, nil
	}
	if mint == wsolMint {
		return f.walletBal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeSvm) AccountOwner(_ context.Context, _ string) (string, error) {
	return svmAmmProgram, nil
}

func (f *fakeSvm) TransactionFee(_ context.Context, _ string) (uint64, error) {
	return 5000, nil
}

func newSvmRig(t *testing.T) (*Executor, *fakeSvm, string) {
	t.Helper()

	key, err := signer.NewSoftwareSvmSigner(testSeedHex)
	require.NoError(t, err)
	wallet := chainclient.Base58Encode(key.PublicKey())

	fake := &fakeSvm{
		wallet:       wallet,
		walletBal:    big.NewInt(50_000_000_000),     // 50 SOL in raw units
		reserveBase:  big.NewInt(10_000_000_000_000), // 10k SOL
		reserveQuote: big.NewInt(1_500_000_000_000),  // 1.5M USDC, pricing SOL at 150
	}

	cfg := &config.Config{
		DefaultSlippageBps: 100,
		Confirm: config.ConfirmConfig{
			Timeout:      150 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			ApproveWait:  150 * time.Millisecond,
		},
	}
	networks := map[string]*Network{
		"mainnet-beta": {
			Config: config.NetworkConfig{
				Name:          "mainnet-beta",
				Family:        config.FamilySolana,
				RouterAddress: svmAmmProgram,
				WrappedNative: "SOL",
				Tokens: []config.TokenConfig{
					tokenCfg("SOL", wsolMint, 9, false),
					tokenCfg("USDC", svmUsdcMint, 6, false),
				},
				Pools: []config.PoolConfig{
					{Address: svmPoolAddr, Base: "SOL", Quote: "USDC", Type: "amm"},
				},
			},
			Svm:       fake,
			SvmSigner: key,
		},
	}

	exec := New(cfg, networks, locks.NewRegistry(time.Minute, nil),
		nonces.NewCache(10, time.Minute, nil), quotes.NewCache(time.Minute), nil)
	return exec, fake, wallet
}

func svmSellRequest(wallet string) models.SwapRequest {
	return models.SwapRequest{
		Network:       "mainnet-beta",
		WalletAddress: wallet,
		BaseToken:     "SOL",
		QuoteToken:    "USDC",
		Amount:        1,
		Side:          models.SideSell,
	}
}

func TestSvmQuoteFromVaultBalances(t *testing.T) {
	exec, _, wallet := newSvmRig(t)

	result, err := exec.QuoteSwap(context.Background(), dex.PoolTypeAmm, svmSellRequest(wallet))
	require.NoError(t, err)

	// 10k SOL against 1.5M USDC prices SOL at ~150, less fee and impact.
	assert.InDelta(t, 150, result.AmountOut, 2)
	assert.Equal(t, svmPoolAddr, result.PoolAddress)
}

func TestSvmExecuteSwapConfirms(t *testing.T) {
	exec, fake, wallet := newSvmRig(t)

	resp, err := exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, svmSellRequest(wallet))
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	assert.Equal(t, "5sigExample", resp.Signature)
	require.NotNil(t, resp.Data)
	assert.InDelta(t, 0.000005, resp.Data.Fee, 1e-9)

	// The broadcast transaction is valid base64 with a 64-byte signature
	// section in front of the message.
	require.Len(t, fake.sent, 1)
	raw, err := base64.StdEncoding.DecodeString(fake.sent[0])
	require.NoError(t, err)
	assert.Equal(t, byte(1), raw[0], "one signature")
	assert.Greater(t, len(raw), 65)
}

func TestSvmExecuteSwapReportsFailure(t *testing.T) {
	exec, fake, wallet := newSvmRig(t)
	fake.failed = true

	resp, err := exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, svmSellRequest(wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.Internal, gwerr.KindOf(err))

	var ge *gwerr.Error
	require.ErrorAs(t, err, &ge)
	require.NotNil(t, resp)
	assert.Equal(t, resp.Signature, ge.TxHash)
	assert.Equal(t, models.TxFailed, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestSvmExecuteSwapInsufficientBalance(t *testing.T) {
	exec, fake, wallet := newSvmRig(t)
	fake.walletBal = big.NewInt(100)

	_, err := exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, svmSellRequest(wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.InsufficientFunds, gwerr.KindOf(err))
	assert.Empty(t, fake.sent)
}
