package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// AmmRouterABI covers the constant-product router entry points the gateway
// builds calldata for.
const AmmRouterABI = `[
	{
		"inputs": [
			{
				"name": "amountIn",
				"type": "uint256"
			},
			{
				"name": "amountOutMin",
				"type": "uint256"
			},
			{
				"name": "path",
				"type": "address[]"
			},
			{
				"name": "to",
				"type": "address"
			},
			{
				"name": "deadline",
				"type": "uint256"
			}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [
			{
				"name": "amounts",
				"type": "uint256[]"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"name": "amountOut",
				"type": "uint256"
			},
			{
				"name": "amountInMax",
				"type": "uint256"
			},
			{
				"name": "path",
				"type": "address[]"
			},
			{
				"name": "to",
				"type": "address"
			},
			{
				"name": "deadline",
				"type": "uint256"
			}
		],
		"name": "swapTokensForExactTokens",
		"outputs": [
			{
				"name": "amounts",
				"type": "uint256[]"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// AmmPairABI covers the pool reads needed for quoting against a
// constant-product pair.
const AmmPairABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{
				"name": "reserve0",
				"type": "uint112"
			},
			{
				"name": "reserve1",
				"type": "uint112"
			},
			{
				"name": "blockTimestampLast",
				"type": "uint32"
			}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token0",
		"outputs": [
			{
				"name": "",
				"type": "address"
			}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token1",
		"outputs": [
			{
				"name": "",
				"type": "address"
			}
		],
		"type": "function"
	}
]`

var (
	ammRouterABI = mustParseABI(AmmRouterABI)
	ammPairABI   = mustParseABI(AmmPairABI)
)

// AmmPair is a read-only binding to a constant-product pool.
type AmmPair struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewAmmPair creates a pair binding backed by the given caller.
func NewAmmPair(address common.Address, caller bind.ContractCaller) *AmmPair {
	return &AmmPair{
		address:  address,
		contract: bind.NewBoundContract(address, ammPairABI, caller, nil, nil),
	}
}

// GetReserves returns the pool's current raw reserves in token0/token1 order.
func (p *AmmPair) GetReserves(opts *bind.CallOpts) (*big.Int, *big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	return out[0].(*big.Int), out[1].(*big.Int), nil
}

// Token0 returns the pool's first token.
func (p *AmmPair) Token0(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "token0")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Token1 returns the pool's second token.
func (p *AmmPair) Token1(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "token1")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// PackSwapExactTokensForTokens encodes an exact-input swap through the AMM
// router.
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return ammRouterABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

// PackSwapTokensForExactTokens encodes an exact-output swap through the AMM
// router.
func PackSwapTokensForExactTokens(amountOut, amountInMax *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return ammRouterABI.Pack("swapTokensForExactTokens", amountOut, amountInMax, path, to, deadline)
}
