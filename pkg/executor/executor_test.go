package executor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/nonces"
	"github.com/dexgate-hq/dexgate/pkg/quotes"
	"github.com/dexgate-hq/dexgate/pkg/signer"
)

// Well-known throwaway development key; the address it controls is the test
// wallet everywhere below.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const (
	wethAddr   = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdcAddr   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	poolAddr   = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
	routerAddr = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
)

var (
	ammPairABI  = mustABI(contracts.AmmPairABI)
	erc20ABI    = mustABI(contracts.ERC20ABI)
	wethDefault = tokenCfg("WETH", wethAddr, 18, false)
	usdcDefault = tokenCfg("USDC", usdcAddr, 6, false)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func tokenCfg(symbol, address string, decimals uint8, native bool) config.TokenConfig {
	return config.TokenConfig{Symbol: symbol, Address: address, Decimals: decimals, Native: native}
}

// fakeEvm is an in-memory EvmBackend. Pool reads are answered through Caller
// by selector, the way a node would.
type fakeEvm struct {
	pending     uint64
	nativeBal   *big.Int
	tokenBal    map[common.Address]*big.Int
	allowance   *big.Int
	reserve0    *big.Int
	reserve1    *big.Int
	token0      common.Address
	simulateErr error
	submitErr   error
	pendingOnly bool
	reverted    bool

	submitted []*types.Transaction
}

func newFakeEvm() *fakeEvm {
	weth := common.HexToAddress(wethAddr)
	reserveBase, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 WETH
	return &fakeEvm{
		pending:   10,
		nativeBal: big.NewInt(0),
		tokenBal: map[common.Address]*big.Int{
			weth: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		},
		allowance: big.NewInt(0),
		reserve0:  reserveBase,
		reserve1:  big.NewInt(2_000_000_000_000), // 2M USDC
		token0:    weth,
	}
}

func (f *fakeEvm) ChainID() *big.Int { return big.NewInt(1) }

func (f *fakeEvm) PendingNonce(_ context.Context, _ string) (uint64, error) {
	return f.pending, nil
}

func (f *fakeEvm) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return f.nativeBal, nil
}

func (f *fakeEvm) TokenBalance(_ context.Context, token, _ common.Address) (*big.Int, error) {
	if bal, ok := f.tokenBal[token]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeEvm) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakeEvm) SuggestFees(_ context.Context) (*chainclient.GasFees, error) {
	return &chainclient.GasFees{GasFeeCap: big.NewInt(30_000_000_000), GasTipCap: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeEvm) Simulate(_ context.Context, _ ethereum.CallMsg) error {
	return f.simulateErr
}

func (f *fakeEvm) SubmitTx(_ context.Context, tx *types.Transaction) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, tx)
	f.pending = tx.Nonce() + 1
	return nil
}

func (f *fakeEvm) PollReceipt(_ context.Context, _ common.Hash) (*chainclient.Receipt, error) {
	if f.pendingOnly {
		return &chainclient.Receipt{Found: false, Status: models.TxPending}, nil
	}
	status := models.TxConfirmed
	if f.reverted {
		status = models.TxFailed
	}
	return &chainclient.Receipt{
		Found:       true,
		Status:      status,
		GasUsed:     100_000,
		GasPrice:    big.NewInt(2_000_000_000),
		BlockNumber: 123,
	}, nil
}

func (f *fakeEvm) Caller() bind.ContractCaller { return &fakeCaller{f} }

// fakeCaller answers pool reads by selector. Unknown selectors error, which is
// what makes the detector classify the pool as constant-product.
type fakeCaller struct {
	f *fakeEvm
}

func (c *fakeCaller) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{1}, nil
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("missing selector")
	}
	switch {
	case bytesEqual(msg.Data[:4], ammPairABI.Methods["getReserves"].ID):
		return ammPairABI.Methods["getReserves"].Outputs.Pack(c.f.reserve0, c.f.reserve1, uint32(0))
	case bytesEqual(msg.Data[:4], ammPairABI.Methods["token0"].ID):
		return ammPairABI.Methods["token0"].Outputs.Pack(c.f.token0)
	default:
		return nil, errors.New("execution reverted")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type testRig struct {
	exec   *Executor
	fake   *fakeEvm
	locks  *locks.Registry
	nonces *nonces.Cache
	quotes *quotes.Cache
	wallet string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	key, err := signer.NewSoftwareEvmSigner(testKeyHex)
	require.NoError(t, err)

	fake := newFakeEvm()
	cfg := &config.Config{
		DefaultSlippageBps: 100,
		Confirm: config.ConfirmConfig{
			Timeout:      150 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			ApproveWait:  150 * time.Millisecond,
		},
	}
	networks := map[string]*Network{
		"mainnet": {
			Config: config.NetworkConfig{
				Name:          "mainnet",
				Family:        config.FamilyEthereum,
				RouterAddress: routerAddr,
				WrappedNative: "WETH",
				Tokens:        []config.TokenConfig{wethDefault, usdcDefault},
				Pools: []config.PoolConfig{
					{Address: poolAddr, Base: "WETH", Quote: "USDC", Type: "amm"},
				},
			},
			Evm:       fake,
			EvmSigner: key,
		},
	}

	lockReg := locks.NewRegistry(time.Minute, nil)
	nonceCache := nonces.NewCache(10, time.Minute, nil)
	quoteCache := quotes.NewCache(time.Minute)

	return &testRig{
		exec:   New(cfg, networks, lockReg, nonceCache, quoteCache, nil),
		fake:   fake,
		locks:  lockReg,
		nonces: nonceCache,
		quotes: quoteCache,
		wallet: key.Address().Hex(),
	}
}

func sellRequest(wallet string) models.SwapRequest {
	return models.SwapRequest{
		Network:       "mainnet",
		WalletAddress: wallet,
		BaseToken:     "WETH",
		QuoteToken:    "USDC",
		Amount:        1,
		Side:          models.SideSell,
	}
}

func TestQuoteSwapPricesAgainstReserves(t *testing.T) {
	rig := newTestRig(t)

	result, err := rig.exec.QuoteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.NoError(t, err)

	assert.NotEmpty(t, result.QuoteID)
	assert.Equal(t, poolAddr, result.PoolAddress)
	assert.Equal(t, "WETH", result.TokenIn)
	assert.Equal(t, "USDC", result.TokenOut)
	assert.InDelta(t, 1992, result.AmountOut, 5)
	assert.InDelta(t, result.AmountOut*0.99, result.MinAmountOut, 1)
	assert.Equal(t, 1.0, result.SlippagePct, "default slippage is 100 bps")

	_, found := rig.quotes.Get(result.QuoteID)
	assert.True(t, found)
}

func TestExecuteSwapApprovesBeforeSwapping(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = big.NewInt(0)

	resp, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	require.NotNil(t, resp.Data)
	assert.InDelta(t, -1, resp.Data.BaseTokenBalanceChange, 0.001)
	assert.Greater(t, resp.Data.QuoteTokenBalanceChange, 0.0)

	// Two transactions: the approval first, then the swap, on consecutive
	// nonces.
	require.Len(t, rig.fake.submitted, 2)
	approve, swap := rig.fake.submitted[0], rig.fake.submitted[1]

	assert.Equal(t, wethAddr, approve.To().Hex())
	assert.Equal(t, bytesEqual(approve.Data()[:4], erc20ABI.Methods["approve"].ID), true)
	assert.Equal(t, routerAddr, swap.To().Hex())

	assert.Equal(t, uint64(10), approve.Nonce())
	assert.Equal(t, uint64(11), swap.Nonce())
}

func TestExecuteSwapSkipsApprovalWhenAllowanceCovers(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256

	resp, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	require.Len(t, rig.fake.submitted, 1)
	assert.Equal(t, routerAddr, rig.fake.submitted[0].To().Hex())
}

// manualApproveSigner signs like a software key but refuses silent approvals,
// the way a hardware-backed signer does.
type manualApproveSigner struct {
	signer.EvmSigner
}

func (manualApproveSigner) AutoApprove() bool { return false }

func TestExecuteSwapReportsAllowanceWhenAutoApproveDisallowed(t *testing.T) {
	rig := newTestRig(t)
	net, err := rig.exec.Network("mainnet")
	require.NoError(t, err)
	net.EvmSigner = manualApproveSigner{net.EvmSigner}
	rig.fake.allowance = big.NewInt(0)

	_, err = rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.AllowanceRequired, gwerr.KindOf(err))

	// The error names the spender and token so the caller can act on it.
	assert.Contains(t, err.Error(), routerAddr)
	assert.Contains(t, err.Error(), wethAddr)
	assert.Empty(t, rig.fake.submitted)
}

func TestExecuteSwapRejectsForeignWallet(t *testing.T) {
	rig := newTestRig(t)

	req := sellRequest("0x0000000000000000000000000000000000000001")
	_, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, req)
	require.Error(t, err)
	assert.Equal(t, gwerr.Validation, gwerr.KindOf(err))
	assert.Empty(t, rig.fake.submitted)
}

func TestExecuteSwapInsufficientBalance(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.tokenBal[common.HexToAddress(wethAddr)] = big.NewInt(0)

	_, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.InsufficientFunds, gwerr.KindOf(err))
	assert.Empty(t, rig.fake.submitted)
}

func TestExecuteSwapReleasesLockAndRollsBackOnFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256
	rig.fake.simulateErr = errors.New("execution reverted: UniswapV2: INSUFFICIENT_OUTPUT_AMOUNT")

	_, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.Error(t, err)

	// The handed-out nonce went back.
	next, ok := rig.nonces.Peek("mainnet", rig.wallet)
	require.True(t, ok)
	assert.Equal(t, uint64(10), next)

	// The wallet lock is free again.
	release, ok := rig.locks.TryAcquire("mainnet", rig.wallet)
	require.True(t, ok)
	release()
}

func TestExecuteSwapSurfacesOnChainRevert(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256
	rig.fake.reverted = true

	resp, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.Internal, gwerr.KindOf(err))

	// The hash still reaches the caller so the revert can be inspected.
	var ge *gwerr.Error
	require.ErrorAs(t, err, &ge)
	require.NotNil(t, resp)
	assert.Equal(t, resp.Signature, ge.TxHash)
	assert.Equal(t, models.TxFailed, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestExecuteSwapInvalidatesNonceCacheOnStaleSubmit(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256
	rig.fake.submitErr = errors.New("nonce too low")

	_, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.Error(t, err)
	assert.Equal(t, gwerr.NonceStale, gwerr.KindOf(err))

	// Stale state is dropped entirely, not rolled back.
	_, ok := rig.nonces.Peek("mainnet", rig.wallet)
	assert.False(t, ok)

	release, ok := rig.locks.TryAcquire("mainnet", rig.wallet)
	require.True(t, ok)
	release()
}

func TestExecuteQuoteConsumesOnlyConfirmedExecutions(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256

	quote, err := rig.exec.QuoteSwap(context.Background(), dex.PoolTypeAmm, sellRequest(rig.wallet))
	require.NoError(t, err)

	execReq := models.ExecuteQuoteRequest{
		Network:       "mainnet",
		WalletAddress: rig.wallet,
		QuoteID:       quote.QuoteID,
	}

	// First execution never confirms inside the budget: the quote survives.
	rig.fake.pendingOnly = true
	resp, err := rig.exec.ExecuteQuote(context.Background(), execReq)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, resp.Status)
	assert.Nil(t, resp.Data)
	_, found := rig.quotes.Get(quote.QuoteID)
	assert.True(t, found, "pending execution must not consume the quote")

	// Second attempt confirms and consumes it.
	rig.fake.pendingOnly = false
	resp, err = rig.exec.ExecuteQuote(context.Background(), execReq)
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	require.NotNil(t, resp.Data)
	_, found = rig.quotes.Get(quote.QuoteID)
	assert.False(t, found, "confirmed execution consumes the quote")

	// Redeeming again is a miss.
	_, err = rig.exec.ExecuteQuote(context.Background(), execReq)
	require.Error(t, err)
	assert.Equal(t, gwerr.NotFound, gwerr.KindOf(err))
}

func TestExecuteQuoteUnknownID(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.exec.ExecuteQuote(context.Background(), models.ExecuteQuoteRequest{
		Network: "mainnet",
		QuoteID: "no-such-quote",
	})
	require.Error(t, err)
	assert.Equal(t, gwerr.NotFound, gwerr.KindOf(err))
}

func TestExecuteSwapWrapsNativeWhenAsked(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.allowance = contracts.MaxUint256
	rig.fake.tokenBal[common.HexToAddress(wethAddr)] = big.NewInt(0)
	rig.fake.nativeBal = new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))

	req := sellRequest(rig.wallet)
	req.UseNativeBalance = true

	resp, err := rig.exec.ExecuteSwap(context.Background(), dex.PoolTypeAmm, req)
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)

	// Wrap first, then the swap.
	require.Len(t, rig.fake.submitted, 2)
	wrap, swap := rig.fake.submitted[0], rig.fake.submitted[1]
	assert.Equal(t, wethAddr, wrap.To().Hex())
	assert.Equal(t, new(big.Int).SetUint64(1e18), wrap.Value())
	assert.Equal(t, routerAddr, swap.To().Hex())
}

func TestPollReportsChainView(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.exec.Poll(context.Background(), "mainnet", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	assert.Equal(t, uint64(123), resp.BlockNumber)
	assert.InDelta(t, 0.0002, resp.Fee, 1e-9)

	rig.fake.pendingOnly = true
	resp, err = rig.exec.Poll(context.Background(), "mainnet", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, resp.Status)
}

func TestWrapAndUnwrap(t *testing.T) {
	rig := newTestRig(t)
	rig.fake.nativeBal = new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))

	resp, err := rig.exec.Wrap(context.Background(), models.WrapRequest{
		Network:       "mainnet",
		WalletAddress: rig.wallet,
		Amount:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	assert.False(t, resp.Unwrapped)

	require.Len(t, rig.fake.submitted, 1)
	assert.Equal(t, new(big.Int).SetUint64(1e18), rig.fake.submitted[0].Value())

	resp, err = rig.exec.Wrap(context.Background(), models.WrapRequest{
		Network:       "mainnet",
		WalletAddress: rig.wallet,
		Amount:        1,
		Unwrap:        true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Unwrapped)
	require.Len(t, rig.fake.submitted, 2)
	assert.Equal(t, big.NewInt(0).String(), rig.fake.submitted[1].Value().String())
}

func TestApproveDefaultsToUnlimited(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.exec.Approve(context.Background(), models.ApproveRequest{
		Network:       "mainnet",
		WalletAddress: rig.wallet,
		Token:         "USDC",
		Spender:       routerAddr,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, resp.Status)
	assert.Equal(t, "USDC", resp.Token)

	require.Len(t, rig.fake.submitted, 1)
	tx := rig.fake.submitted[0]
	assert.Equal(t, usdcAddr, tx.To().Hex())

	args, err := erc20ABI.Methods["approve"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, contracts.MaxUint256, args[1].(*big.Int))
}
