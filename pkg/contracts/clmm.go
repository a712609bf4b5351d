package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ClmmRouterABI covers the concentrated-liquidity router single-pool entry
// points.
const ClmmRouterABI = `[
	{
		"inputs": [
			{
				"components": [
					{
						"name": "tokenIn",
						"type": "address"
					},
					{
						"name": "tokenOut",
						"type": "address"
					},
					{
						"name": "fee",
						"type": "uint24"
					},
					{
						"name": "recipient",
						"type": "address"
					},
					{
						"name": "deadline",
						"type": "uint256"
					},
					{
						"name": "amountIn",
						"type": "uint256"
					},
					{
						"name": "amountOutMinimum",
						"type": "uint256"
					},
					{
						"name": "sqrtPriceLimitX96",
						"type": "uint160"
					}
				],
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactInputSingle",
		"outputs": [
			{
				"name": "amountOut",
				"type": "uint256"
			}
		],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{
						"name": "tokenIn",
						"type": "address"
					},
					{
						"name": "tokenOut",
						"type": "address"
					},
					{
						"name": "fee",
						"type": "uint24"
					},
					{
						"name": "recipient",
						"type": "address"
					},
					{
						"name": "deadline",
						"type": "uint256"
					},
					{
						"name": "amountOut",
						"type": "uint256"
					},
					{
						"name": "amountInMaximum",
						"type": "uint256"
					},
					{
						"name": "sqrtPriceLimitX96",
						"type": "uint160"
					}
				],
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactOutputSingle",
		"outputs": [
			{
				"name": "amountIn",
				"type": "uint256"
			}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// ClmmPoolABI covers the pool reads needed to derive a spot price from a
// concentrated-liquidity pool.
const ClmmPoolABI = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{
				"name": "sqrtPriceX96",
				"type": "uint160"
			},
			{
				"name": "tick",
				"type": "int24"
			},
			{
				"name": "observationIndex",
				"type": "uint16"
			},
			{
				"name": "observationCardinality",
				"type": "uint16"
			},
			{
				"name": "observationCardinalityNext",
				"type": "uint16"
			},
			{
				"name": "feeProtocol",
				"type": "uint8"
			},
			{
				"name": "unlocked",
				"type": "bool"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [
			{
				"name": "",
				"type": "uint128"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token0",
		"outputs": [
			{
				"name": "",
				"type": "address"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token1",
		"outputs": [
			{
				"name": "",
				"type": "address"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "fee",
		"outputs": [
			{
				"name": "",
				"type": "uint24"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	clmmRouterABI = mustParseABI(ClmmRouterABI)
	clmmPoolABI   = mustParseABI(ClmmPoolABI)
)

// ExactInputSingleParams mirrors the router's exactInputSingle tuple.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactOutputSingleParams mirrors the router's exactOutputSingle tuple.
type ExactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

// PackExactInputSingle encodes an exact-input swap through the
// concentrated-liquidity router.
func PackExactInputSingle(params ExactInputSingleParams) ([]byte, error) {
	return clmmRouterABI.Pack("exactInputSingle", params)
}

// PackExactOutputSingle encodes an exact-output swap through the
// concentrated-liquidity router.
func PackExactOutputSingle(params ExactOutputSingleParams) ([]byte, error) {
	return clmmRouterABI.Pack("exactOutputSingle", params)
}

// ClmmPool is a read-only binding to a concentrated-liquidity pool.
type ClmmPool struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewClmmPool creates a pool binding backed by the given caller.
func NewClmmPool(address common.Address, caller bind.ContractCaller) *ClmmPool {
	return &ClmmPool{
		address:  address,
		contract: bind.NewBoundContract(address, clmmPoolABI, caller, nil, nil),
	}
}

// Slot0 returns the pool's current sqrt price in X96 fixed point.
func (p *ClmmPool) Slot0(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "slot0")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Liquidity returns the pool's in-range liquidity.
func (p *ClmmPool) Liquidity(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "liquidity")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Token0 returns the pool's first token.
func (p *ClmmPool) Token0(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "token0")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Token1 returns the pool's second token.
func (p *ClmmPool) Token1(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "token1")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Fee returns the pool's fee tier in hundredths of a basis point.
func (p *ClmmPool) Fee(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "fee")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}
