package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SoftwareEvmSigner holds a secp256k1 key in memory.
type SoftwareEvmSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ EvmSigner = (*SoftwareEvmSigner)(nil)

// NewSoftwareEvmSigner parses a hex-encoded private key.
func NewSoftwareEvmSigner(privateKeyHex string) (*SoftwareEvmSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	return &SoftwareEvmSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the account the key controls.
func (s *SoftwareEvmSigner) Address() common.Address {
	return s.address
}

// SignTx signs with the latest signer for the chain.
func (s *SoftwareEvmSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}
	return signed, nil
}

// AutoApprove is always true for software keys: no user is present to
// confirm individual approvals.
func (s *SoftwareEvmSigner) AutoApprove() bool {
	return true
}

// SoftwareSvmSigner holds an ed25519 key in memory.
type SoftwareSvmSigner struct {
	key ed25519.PrivateKey
}

var _ SvmSigner = (*SoftwareSvmSigner)(nil)

// NewSoftwareSvmSigner parses a hex-encoded 32-byte ed25519 seed.
func NewSoftwareSvmSigner(seedHex string) (*SoftwareSvmSigner, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key seed: %v", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &SoftwareSvmSigner{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the account public key.
func (s *SoftwareSvmSigner) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// SignMessage signs a serialized transaction message.
func (s *SoftwareSvmSigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}
