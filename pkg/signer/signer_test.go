package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/gwerr"
)

func TestSoftwareEvmSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))

	signer, err := NewSoftwareEvmSigner(keyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.Address())
	assert.True(t, signer.AutoApprove())

	chainID := big.NewInt(1)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasFeeCap: big.NewInt(2_000_000_000),
		GasTipCap: big.NewInt(1_000_000_000),
		Gas:       21_000,
		To:        &common.Address{},
		Value:     big.NewInt(1),
	})
	signed, err := signer.SignTx(context.Background(), tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from, "signature must recover to the signer address")
}

func TestSoftwareEvmSignerRejectsBadKey(t *testing.T) {
	_, err := NewSoftwareEvmSigner("not-a-key")
	assert.Error(t, err)
}

func TestSoftwareSvmSigner(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	signer, err := NewSoftwareSvmSigner(common.Bytes2Hex(seed))
	require.NoError(t, err)

	message := []byte("serialized message bytes")
	sig, err := signer.SignMessage(context.Background(), message)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(signer.PublicKey(), message, sig))

	_, err = NewSoftwareSvmSigner("abcd")
	assert.Error(t, err, "short seeds must be rejected")
}

type fakeDevice struct {
	address common.Address
	signErr error
}

func (d *fakeDevice) Address(context.Context) (common.Address, error) {
	return d.address, nil
}

func (d *fakeDevice) SignTx(_ context.Context, tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	if d.signErr != nil {
		return nil, d.signErr
	}
	return tx, nil
}

func TestHardwareSignerClassifiesDeviceErrors(t *testing.T) {
	device := &fakeDevice{
		address: common.HexToAddress("0x1"),
		signErr: errors.New("Ledger device: Condition of use not satisfied (denied by user) (0x6985)"),
	}
	signer, err := NewHardwareEvmSigner(context.Background(), device)
	require.NoError(t, err)
	assert.False(t, signer.AutoApprove())

	_, err = signer.SignTx(context.Background(), types.NewTx(&types.LegacyTx{}), big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, gwerr.DeviceRejected, gwerr.KindOf(err))
}
