package dex

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dexgate-hq/dexgate/pkg/contracts"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/tokens"
)

// DetectEvmPoolType probes the pool contract to learn its program family:
// concentrated-liquidity pools answer slot0, constant-product pairs answer
// getReserves. A request routed at the wrong family is forwarded to the
// detected one rather than rejected.
func DetectEvmPoolType(ctx context.Context, caller bind.ContractCaller, address common.Address) (PoolType, error) {
	opts := &bind.CallOpts{Context: ctx}

	if _, err := contracts.NewClmmPool(address, caller).Slot0(opts); err == nil {
		return PoolTypeClmm, nil
	}
	if _, _, err := contracts.NewAmmPair(address, caller).GetReserves(opts); err == nil {
		return PoolTypeAmm, nil
	}
	return "", gwerr.New(gwerr.NotFound, "pool not found: %s", address.Hex())
}

// DetectSvmPoolType maps the pool account's owner program to a family.
func DetectSvmPoolType(owner, ammProgram, clmmProgram string) (PoolType, error) {
	switch owner {
	case ammProgram:
		return PoolTypeAmm, nil
	case clmmProgram:
		return PoolTypeClmm, nil
	}
	return "", gwerr.New(gwerr.NotFound, "pool owner program %s is not a supported venue", owner)
}

// PriceFromSqrtX96 converts a concentrated-liquidity sqrt price into a
// quote-per-base price in token units. baseIsToken0 tells which side of the
// pool the base token sits on.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, baseIsToken0 bool, base, quote tokens.Token) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	sqrt, _ := new(big.Float).SetInt(sqrtPriceX96).Float64()
	ratio := sqrt / math.Pow(2, 96)
	// token1 per token0 in raw units
	rawPrice := ratio * ratio

	if baseIsToken0 {
		return rawPrice * math.Pow(10, float64(base.Decimals)-float64(quote.Decimals))
	}
	if rawPrice == 0 {
		return 0
	}
	return (1 / rawPrice) * math.Pow(10, float64(base.Decimals)-float64(quote.Decimals))
}
