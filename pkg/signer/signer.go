// Package signer produces signed transactions for both transaction families.
// Software keys sign immediately; hardware wallets route through a device
// session that may take many seconds and can refuse.
package signer

import (
	"context"
	"crypto/ed25519"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EvmSigner signs account-nonce transactions for a single address.
type EvmSigner interface {
	// Address is the account the signer controls.
	Address() common.Address
	// SignTx returns the signed transaction. Hardware implementations block
	// until the user confirms or rejects on the device.
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// AutoApprove reports whether the gateway may submit allowance approvals
	// on the signer's behalf without explicit per-transaction consent.
	AutoApprove() bool
}

// SvmSigner signs signature-hash transaction messages for a single account.
type SvmSigner interface {
	PublicKey() ed25519.PublicKey
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}
