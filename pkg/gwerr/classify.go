package gwerr

import (
	"errors"
	"strings"
)

// ClassifierRule maps error-text fragments to a kind. Rules are checked in
// order and matching is case-insensitive.
type ClassifierRule struct {
	Contains []string
	Kind     Kind
}

// DefaultRules is the substring table used by Classify. Node and wallet error
// strings differ between RPC providers and firmware versions, so the table is
// data rather than code: deployments hitting an unrecognized variant can
// append to it at startup.
var DefaultRules = []ClassifierRule{
	// Hardware wallet outcomes. These must be checked before the generic
	// rules because device errors often embed words like "transaction".
	{Contains: []string{"denied by user", "rejected by user", "user refused", "conditions of use not satisfied", "0x6985"}, Kind: DeviceRejected},
	{Contains: []string{"device is locked", "locked device", "0x5515"}, Kind: DeviceLocked},
	{Contains: []string{"wrong app", "app does not seem to be open", "cla_not_supported", "0x6d00", "0x6e00"}, Kind: DeviceWrongApp},

	// Nonce staleness. Submitting with a nonce the chain already consumed,
	// or one too far ahead of the pending count.
	{Contains: []string{"nonce too low", "nonce too high", "invalid nonce", "replacement transaction underpriced"}, Kind: NonceStale},

	// Expiry. Short-lived validity anchors (EVM deadlines, recent block
	// hashes) that lapsed between build and submit.
	{Contains: []string{"blockhash not found", "block height exceeded", "transaction expired", "deadline has passed", "quote expired"}, Kind: Expired},

	// Allowance shortfalls surfaced by token contracts.
	{Contains: []string{"insufficient allowance", "transfer amount exceeds allowance", "transfer_from_failed"}, Kind: AllowanceRequired},

	// Balance shortfalls, including gas funding.
	{Contains: []string{"insufficient funds", "insufficient balance", "insufficient lamports"}, Kind: InsufficientFunds},

	// Recognizable swap reverts: the pool moved past the slippage bounds or
	// cannot serve the size.
	{Contains: []string{"slippage", "too little received", "too much requested", "insufficient output amount", "excessive input amount", "price limit", "insufficient liquidity"}, Kind: Slippage},

	{Contains: []string{"pool not found", "account does not exist"}, Kind: NotFound},
}

// Classify wraps an unclassified error using the substring table. Errors that
// already carry a kind pass through unchanged; anything unmatched becomes
// Internal so unknown chain errors never masquerade as a known class.
func Classify(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	lower := strings.ToLower(err.Error())
	for _, rule := range DefaultRules {
		for _, fragment := range rule.Contains {
			if strings.Contains(lower, fragment) {
				return Wrap(rule.Kind, err, "chain error")
			}
		}
	}
	return Wrap(Internal, err, "chain error")
}
