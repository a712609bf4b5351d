package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dexgate-hq/dexgate/pkg/gwerr"
)

// Device is a hardware wallet session. Implementations surface the device's
// own error strings (rejection, locked screen, wrong app) so they can be
// classified for the caller.
type Device interface {
	// Address returns the derived account at the device's active path.
	Address(ctx context.Context) (common.Address, error)
	// SignTx asks the device to display and sign the transaction. Blocks
	// until the user responds or the device session errors.
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// HardwareEvmSigner signs through an attached device. Auto-approval is
// disabled: every transaction, including allowance approvals, must be shown
// on the device, so the gateway reports the required approval to the caller
// instead of submitting one silently.
type HardwareEvmSigner struct {
	device  Device
	address common.Address
}

var _ EvmSigner = (*HardwareEvmSigner)(nil)

// NewHardwareEvmSigner binds to the device's active account.
func NewHardwareEvmSigner(ctx context.Context, device Device) (*HardwareEvmSigner, error) {
	address, err := device.Address(ctx)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	return &HardwareEvmSigner{device: device, address: address}, nil
}

// Address returns the device's active account.
func (s *HardwareEvmSigner) Address() common.Address {
	return s.address
}

// SignTx forwards to the device and classifies device-specific failures.
func (s *HardwareEvmSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := s.device.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, gwerr.Classify(err)
	}
	return signed, nil
}

// AutoApprove is always false for hardware wallets.
func (s *HardwareEvmSigner) AutoApprove() bool {
	return false
}
