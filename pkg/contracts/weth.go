package contracts

import (
	"math/big"
)

// WrappedNativeABI covers the deposit/withdraw pair every canonical wrapped
// native token exposes on top of ERC-20.
const WrappedNativeABI = `[
	{
		"constant": false,
		"inputs": [],
		"name": "deposit",
		"outputs": [],
		"payable": true,
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{
				"name": "wad",
				"type": "uint256"
			}
		],
		"name": "withdraw",
		"outputs": [],
		"type": "function"
	}
]`

var wrappedNativeABI = mustParseABI(WrappedNativeABI)

// PackDeposit encodes a wrap call; the wrapped amount travels as the
// transaction value.
func PackDeposit() ([]byte, error) {
	return wrappedNativeABI.Pack("deposit")
}

// PackWithdraw encodes an unwrap call for the given raw amount.
func PackWithdraw(amount *big.Int) ([]byte, error) {
	return wrappedNativeABI.Pack("withdraw", amount)
}
