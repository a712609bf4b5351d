package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/circuitbreaker"
	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/executor"
	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/models"
	"github.com/dexgate-hq/dexgate/pkg/nonces"
	"github.com/dexgate-hq/dexgate/pkg/quotes"
)

const testWallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// fakeEvm answers only what the nonce coordination endpoints touch.
type fakeEvm struct {
	mu         sync.Mutex
	pending    uint64
	pendingErr error
}

func (f *fakeEvm) setPending(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = n
}

func (f *fakeEvm) ChainID() *big.Int { return big.NewInt(1) }

func (f *fakeEvm) PendingNonce(_ context.Context, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return 0, f.pendingErr
	}
	return f.pending, nil
}

func (f *fakeEvm) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeEvm) TokenBalance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeEvm) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeEvm) SuggestFees(_ context.Context) (*chainclient.GasFees, error) {
	return &chainclient.GasFees{GasFeeCap: big.NewInt(2_000_000_000), GasTipCap: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeEvm) Simulate(_ context.Context, _ ethereum.CallMsg) error { return nil }

func (f *fakeEvm) SubmitTx(_ context.Context, _ *types.Transaction) error { return nil }

func (f *fakeEvm) PollReceipt(_ context.Context, _ common.Hash) (*chainclient.Receipt, error) {
	return &chainclient.Receipt{Found: false, Status: models.TxPending}, nil
}

func (f *fakeEvm) Caller() bind.ContractCaller { return nil }

type apiRig struct {
	server *Server
	evm    *fakeEvm
	locks  *locks.Registry
	nonces *nonces.Cache
}

func newAPIRig(t *testing.T, mutate func(cfg *config.Config)) *apiRig {
	t.Helper()

	cfg := &config.Config{
		Port:               "15888",
		DefaultSlippageBps: 100,
		Lease: config.LeaseConfig{
			DefaultTTL:      30 * time.Second,
			MinTTL:          10 * time.Millisecond,
			MaxTTL:          time.Minute,
			CleanupInterval: time.Minute,
		},
		Confirm: config.ConfirmConfig{
			Timeout:      150 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			ApproveWait:  150 * time.Millisecond,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	evm := &fakeEvm{pending: 10}
	networks := map[string]*executor.Network{
		"mainnet": {
			Config: config.NetworkConfig{
				Name:          "mainnet",
				Family:        config.FamilyEthereum,
				ChainID:       1,
				RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
				WrappedNative: "WETH",
				Tokens: []config.TokenConfig{
					{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
					{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
				},
			},
			Evm: evm,
		},
	}

	lockReg := locks.NewRegistry(time.Minute, nil)
	nonceCache := nonces.NewCache(5, time.Minute, nil)
	exec := executor.New(cfg, networks, lockReg, nonceCache, quotes.NewCache(30*time.Second), nil)

	return &apiRig{
		server: NewServer(cfg, exec, nil),
		evm:    evm,
		locks:  lockReg,
		nonces: nonceCache,
	}
}

// do runs one request through the full router and decodes the JSON reply.
func (r *apiRig) do(t *testing.T, method, path string, body, into interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.server.http.Handler.ServeHTTP(rec, req)

	if into != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(into),
			"body: %s", rec.Body.String())
	}
	return rec
}

func (r *apiRig) acquire(t *testing.T, ttlMs int64) (models.NonceAcquireResponse, *httptest.ResponseRecorder) {
	t.Helper()
	var resp models.NonceAcquireResponse
	rec := r.do(t, http.MethodPost, "/chains/ethereum/nonce/acquire", models.NonceAcquireRequest{
		Network:       "mainnet",
		WalletAddress: testWallet,
		TTLMs:         ttlMs,
	}, &resp)
	return resp, rec
}

func (r *apiRig) release(t *testing.T, lockID string, sent bool) models.NonceReleaseResponse {
	t.Helper()
	var resp models.NonceReleaseResponse
	rec := r.do(t, http.MethodPost, "/chains/ethereum/nonce/release", models.NonceReleaseRequest{
		Network:         "mainnet",
		WalletAddress:   testWallet,
		LockID:          lockID,
		TransactionSent: sent,
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	return resp
}

func TestNonceAcquireAdvancesAfterSend(t *testing.T) {
	rig := newAPIRig(t, nil)

	first, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(10), first.Nonce)
	assert.NotEmpty(t, first.LockID)
	assert.Greater(t, first.ExpiresAt, time.Now().UnixMilli())

	resp := rig.release(t, first.LockID, true)
	assert.True(t, resp.Success)

	// The chain's pending count has not caught up, but the cache has.
	second, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(11), second.Nonce)
	assert.NotEqual(t, first.LockID, second.LockID)
}

func TestNonceReleaseUnsentRollsBack(t *testing.T) {
	rig := newAPIRig(t, nil)
	rig.evm.setPending(20)

	first, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(20), first.Nonce)

	resp := rig.release(t, first.LockID, false)
	require.True(t, resp.Success)

	second, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(20), second.Nonce, "unconsumed nonce should be handed out again")
}

func TestNonceLeaseExpiryReclaimsLockAndNonce(t *testing.T) {
	rig := newAPIRig(t, nil)

	resp, rec := rig.acquire(t, 20)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(10), resp.Nonce)

	time.Sleep(50 * time.Millisecond)

	var status models.NonceStatusResponse
	rec = rig.do(t, http.MethodGet, "/chains/ethereum/nonce/status", nil, &status)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, status.Locks, 1)
	assert.True(t, status.Locks[0].Expired)

	require.Equal(t, 1, rig.locks.ReapExpired())

	// Releasing the reclaimed id is answered, not erred.
	released := rig.release(t, resp.LockID, true)
	assert.False(t, released.Success)
	assert.Equal(t, "lock not found", released.Message)

	// The reaper rolled the nonce back, so the next acquire repeats it.
	again, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(10), again.Nonce)
}

func TestNonceLeaseTTLClampedToMax(t *testing.T) {
	rig := newAPIRig(t, nil)

	resp, rec := rig.acquire(t, (10 * time.Minute).Milliseconds())
	require.Equal(t, http.StatusOK, rec.Code)

	ceiling := time.Now().Add(time.Minute + time.Second).UnixMilli()
	assert.LessOrEqual(t, resp.ExpiresAt, ceiling)

	rig.release(t, resp.LockID, false)
}

func TestNonceAcquireSerializesPerWallet(t *testing.T) {
	rig := newAPIRig(t, nil)

	first, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)

	done := make(chan models.NonceAcquireResponse, 1)
	go func() {
		resp, _ := rig.acquire(t, 0)
		done <- resp
	}()

	select {
	case <-done:
		t.Fatal("second acquire completed while the first lease was held")
	case <-time.After(50 * time.Millisecond):
	}

	rig.release(t, first.LockID, true)

	select {
	case second := <-done:
		assert.Equal(t, uint64(11), second.Nonce)
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestNonceReleaseTwice(t *testing.T) {
	rig := newAPIRig(t, nil)

	resp, rec := rig.acquire(t, 0)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, rig.release(t, resp.LockID, true).Success)

	second := rig.release(t, resp.LockID, true)
	assert.False(t, second.Success)
	assert.Equal(t, "lock not found", second.Message)
}

func TestNonceInvalidateDropsCache(t *testing.T) {
	rig := newAPIRig(t, nil)

	first, _ := rig.acquire(t, 0)
	require.Equal(t, uint64(10), first.Nonce)
	rig.release(t, first.LockID, true)

	var resp models.NonceInvalidateResponse
	rec := rig.do(t, http.MethodPost, "/chains/ethereum/nonce/invalidate", models.NonceInvalidateRequest{
		Network:       "mainnet",
		WalletAddress: testWallet,
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	// The cached 11 is gone, so the chain's pending count wins again.
	second, _ := rig.acquire(t, 0)
	assert.Equal(t, uint64(10), second.Nonce)
}

func TestNonceAcquireReleasesLockWhenChainReadFails(t *testing.T) {
	rig := newAPIRig(t, nil)
	rig.evm.pendingErr = assert.AnError

	var errResp models.ErrorResponse
	rec := rig.do(t, http.MethodPost, "/chains/ethereum/nonce/acquire", models.NonceAcquireRequest{
		Network:       "mainnet",
		WalletAddress: testWallet,
	}, &errResp)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", errResp.Error)

	// The failed acquire must not strand the wallet lock.
	release, ok := rig.locks.TryAcquire("mainnet", testWallet)
	require.True(t, ok)
	release()
}

func TestNonceAcquireRejectsUnknownNetwork(t *testing.T) {
	rig := newAPIRig(t, nil)

	var errResp models.ErrorResponse
	rec := rig.do(t, http.MethodPost, "/chains/ethereum/nonce/acquire", models.NonceAcquireRequest{
		Network:       "testnet",
		WalletAddress: testWallet,
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errResp.Error)
	assert.False(t, errResp.Retryable)
}

func TestNonceAcquireRejectsFamilyMismatch(t *testing.T) {
	rig := newAPIRig(t, nil)

	var errResp models.ErrorResponse
	rec := rig.do(t, http.MethodPost, "/chains/solana/nonce/acquire", models.NonceAcquireRequest{
		Network:       "mainnet",
		WalletAddress: testWallet,
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errResp.Error)
}

func TestNonceAcquireRejectsUnknownFields(t *testing.T) {
	rig := newAPIRig(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chains/ethereum/nonce/acquire",
		bytes.NewBufferString(`{"network":"mainnet","wallet":"typo"}`))
	rec := httptest.NewRecorder()
	rig.server.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	rig := newAPIRig(t, nil)

	rec := rig.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = rig.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsNetworks(t *testing.T) {
	rig := newAPIRig(t, nil)

	var status map[string]map[string]interface{}
	rec := rig.do(t, http.MethodGet, "/status", nil, &status)
	require.Equal(t, http.StatusOK, rec.Code)

	mainnet, ok := status["mainnet"]
	require.True(t, ok)
	assert.Equal(t, "ethereum", mainnet["family"])
	assert.Equal(t, true, mainnet["connected"])
}

func TestCircuitResetClosesBreaker(t *testing.T) {
	rig := newAPIRig(t, nil)

	net, err := rig.server.exec.Network("mainnet")
	require.NoError(t, err)
	net.Breaker = circuitbreaker.New("mainnet", true, 1, time.Minute, time.Minute, nil)
	net.Breaker.RecordFailure()
	require.True(t, net.Breaker.IsOpen())

	rec := rig.do(t, http.MethodPost, "/circuit/reset?network=mainnet", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, net.Breaker.IsOpen())

	rec = rig.do(t, http.MethodPost, "/circuit/reset", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = rig.do(t, http.MethodPost, "/circuit/reset?network=testnet", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRequiresBearerToken(t *testing.T) {
	rig := newAPIRig(t, func(cfg *config.Config) {
		cfg.MetricsAPIKey = "sekret"
	})

	rec := rig.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	rig.server.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec = httptest.NewRecorder()
	rig.server.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
