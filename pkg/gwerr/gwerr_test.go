package gwerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		errText  string
		expected Kind
	}{
		{
			name:     "nonce too low",
			errText:  "failed to submit: nonce too low",
			expected: NonceStale,
		},
		{
			name:     "replacement underpriced",
			errText:  "replacement transaction underpriced",
			expected: NonceStale,
		},
		{
			name:     "insufficient funds for gas",
			errText:  "insufficient funds for gas * price + value",
			expected: InsufficientFunds,
		},
		{
			name:     "insufficient lamports",
			errText:  "Transfer: insufficient lamports 12, need 100",
			expected: InsufficientFunds,
		},
		{
			name:     "v2 router output amount",
			errText:  "execution reverted: UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT",
			expected: Slippage,
		},
		{
			name:     "clmm too little received",
			errText:  "execution reverted: Too little received",
			expected: Slippage,
		},
		{
			name:     "svm slippage",
			errText:  "custom program error: exceeds desired slippage limit",
			expected: Slippage,
		},
		{
			name:     "blockhash expired",
			errText:  "Blockhash not found",
			expected: Expired,
		},
		{
			name:     "deadline passed",
			errText:  "execution reverted: deadline has passed",
			expected: Expired,
		},
		{
			name:     "allowance revert",
			errText:  "execution reverted: ERC20: transfer amount exceeds allowance",
			expected: AllowanceRequired,
		},
		{
			name:     "device rejected",
			errText:  "ledger: transaction denied by user (0x6985)",
			expected: DeviceRejected,
		},
		{
			name:     "device locked",
			errText:  "device is locked, unlock to continue",
			expected: DeviceLocked,
		},
		{
			name:     "device wrong app",
			errText:  "wrong app open on device, expected Ethereum",
			expected: DeviceWrongApp,
		},
		{
			name:     "pool missing",
			errText:  "pool not found for pair WETH/USDC",
			expected: NotFound,
		},
		{
			name:     "bare revert stays internal",
			errText:  "execution reverted",
			expected: Internal,
		},
		{
			name:     "rpc connection failure stays internal",
			errText:  "connection refused",
			expected: Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(errors.New(tt.errText))
			require.NotNil(t, classified)
			assert.Equal(t, tt.expected, classified.Kind)
		})
	}
}

func TestClassifyPreservesExistingKind(t *testing.T) {
	original := New(Slippage, "quote moved")
	wrapped := fmt.Errorf("executing swap: %w", original)

	classified := Classify(wrapped)
	assert.Equal(t, Slippage, classified.Kind)
	assert.Equal(t, "quote moved", classified.Message)
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(Expired, "quote ttl elapsed"))
	assert.Equal(t, Expired, KindOf(err))
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{Validation, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{InsufficientFunds, http.StatusBadRequest},
		{AllowanceRequired, http.StatusBadRequest},
		{Slippage, http.StatusBadRequest},
		{Expired, http.StatusServiceUnavailable},
		{NonceStale, http.StatusInternalServerError},
		{DeviceRejected, http.StatusBadRequest},
		{DeviceLocked, http.StatusBadRequest},
		{DeviceWrongApp, http.StatusBadRequest},
		{Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.kind))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Expired))
	assert.True(t, Retryable(NonceStale))
	assert.False(t, Retryable(Validation))
	assert.False(t, Retryable(InsufficientFunds))
	assert.False(t, Retryable(Internal))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("rpc: connection reset")
	wrapped := Wrap(Internal, inner, "submitting transaction")

	assert.True(t, errors.Is(wrapped, inner))
	assert.Contains(t, wrapped.Error(), "submitting transaction")
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestWithTxHash(t *testing.T) {
	base := New(Internal, "transaction reverted on chain")
	withHash := base.WithTxHash("0xabc123")

	assert.Equal(t, "0xabc123", withHash.TxHash)
	assert.Empty(t, base.TxHash, "original error must not be mutated")
}
