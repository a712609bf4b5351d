package chainclient

import (
	"math/big"
)

// Per-family execution budgets. Signature-hash swaps carry an explicit
// compute-unit limit; account-nonce swaps get a fixed router gas limit.
const (
	AmmComputeUnits  = 300_000
	ClmmComputeUnits = 600_000
	RouterGasLimit   = 500_000
	ApproveGasLimit  = 80_000
	WrapGasLimit     = 60_000
)

// GasFees is an EIP-1559 fee pair after policy adjustment.
type GasFees struct {
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// GasPolicy shapes raw chain estimates: a percentage of headroom on top of
// the suggestion and a hard ceiling in gwei. A zero ceiling means no cap.
type GasPolicy struct {
	MaxGasPriceGwei  float64
	GasMultiplierPct float64
}

// Apply buffers the suggested fee by the multiplier and clamps it to the
// ceiling. The tip cap is buffered the same way but never exceeds the fee cap.
func (p GasPolicy) Apply(suggested, tipCap *big.Int) *GasFees {
	feeCap := applyPct(suggested, p.GasMultiplierPct)
	tip := applyPct(tipCap, p.GasMultiplierPct)

	if p.MaxGasPriceGwei > 0 {
		max := gweiToWei(p.MaxGasPriceGwei)
		if feeCap.Cmp(max) > 0 {
			feeCap = max
		}
	}
	if tip.Cmp(feeCap) > 0 {
		tip = new(big.Int).Set(feeCap)
	}
	return &GasFees{GasFeeCap: feeCap, GasTipCap: tip}
}

func applyPct(value *big.Int, pct float64) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	buffered := new(big.Float).Mul(new(big.Float).SetInt(value), big.NewFloat(1+pct/100))
	out := new(big.Int)
	buffered.Int(out)
	return out
}

func gweiToWei(gwei float64) *big.Int {
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	out := new(big.Int)
	wei.Int(out)
	return out
}

func weiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9))
	value, _ := gwei.Float64()
	return value
}

// PriorityFeePerComputeUnit converts a whole-transaction priority fee in
// lamports into the per-compute-unit micro-lamport price the compute budget
// program expects.
func PriorityFeePerComputeUnit(priorityLamports uint64, computeUnits uint32) uint64 {
	if computeUnits == 0 {
		return 0
	}
	return priorityLamports * 1_000_000 / uint64(computeUnits)
}
