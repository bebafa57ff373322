// Package quote holds the pure price math: Q18 fixed-point prices,
// price-impact basis points, and the per-hop gas heuristic. Nothing in
// this package touches the chain or mutates shared state.
package quote

import (
	"math/big"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// Gas-unit heuristic. Estimates only, never a guaranteed bound.
const (
	GasBase     uint64 = 100_000
	GasPerV2Hop uint64 = 60_000
	GasPerV3Hop uint64 = 90_000
	GasExtraHop uint64 = 25_000
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// ConstantProductOut computes the exact v2 output for amountIn against
// (reserveIn, reserveOut) with the venue fee deducted from the input.
// Returns zero for zero input or empty reserves.
func ConstantProductOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}

	// out = in * (10000-fee) * rOut / (rIn * 10000 + in * (10000-fee))
	feeMul := big.NewInt(int64(10_000 - feeBps))
	inWithFee := new(big.Int).Mul(amountIn, feeMul)
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, common.BpsDenom)
	den.Add(den, inWithFee)
	return num.Div(num, den)
}

// MidPriceFromReserves is the v2 spot price (out per unit in) in Q18.
func MidPriceFromReserves(reserveIn, reserveOut *big.Int) *big.Int {
	if reserveIn.Sign() <= 0 {
		return new(big.Int)
	}
	mid := new(big.Int).Mul(reserveOut, common.Q18)
	return mid.Div(mid, reserveIn)
}

// MidPriceFromSqrtPriceX96 converts a v3 sqrtPriceX96 to a Q18 spot price
// in the swap direction. zeroForOne means token0 in, token1 out.
func MidPriceFromSqrtPriceX96(sqrtPriceX96 *big.Int, zeroForOne bool) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return new(big.Int)
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	if zeroForOne {
		// price1per0 = sqrtP^2 / 2^192, scaled to Q18
		out := new(big.Int).Mul(sq, common.Q18)
		return out.Div(out, q192)
	}
	// inverse direction: 2^192 / sqrtP^2, scaled to Q18
	out := new(big.Int).Mul(q192, common.Q18)
	return out.Div(out, sq)
}

// ApproxOutFromMidPrice estimates output from a Q18 mid-price with a flat
// fee deduction. Used only when exact simulation is unavailable; callers
// must mark the resulting source approximate.
func ApproxOutFromMidPrice(amountIn, midPriceQ18 *big.Int, feeHundredthsBip uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || midPriceQ18.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountIn, midPriceQ18)
	out.Div(out, common.Q18)

	// v3 fee tiers are in hundredths of a bip (1e6 denominator).
	fee := new(big.Int).Mul(out, big.NewInt(int64(feeHundredthsBip)))
	fee.Div(fee, big.NewInt(1_000_000))
	return out.Sub(out, fee)
}

// ExecutionPriceQ18 is actual-output over actual-input in Q18.
func ExecutionPriceQ18(amountIn, amountOut *big.Int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	price := new(big.Int).Mul(amountOut, common.Q18)
	return price.Div(price, amountIn)
}

// PriceImpactBps measures how far the realized output fell from the
// mid-price expectation, in basis points, capped at MaxPriceImpactBps so
// degenerate pools cannot overflow the field.
func PriceImpactBps(midPriceQ18, amountIn, amountOut *big.Int) uint32 {
	if midPriceQ18 == nil || midPriceQ18.Sign() <= 0 || amountIn == nil || amountIn.Sign() <= 0 {
		return 0
	}
	expected := new(big.Int).Mul(amountIn, midPriceQ18)
	expected.Div(expected, common.Q18)
	if expected.Sign() <= 0 {
		return 0
	}

	diff := new(big.Int).Sub(expected, amountOut)
	diff.Abs(diff)

	impact := diff.Mul(diff, common.BpsDenom)
	impact.Div(impact, expected)

	if !impact.IsUint64() || impact.Uint64() > uint64(common.MaxPriceImpactBps) {
		return common.MaxPriceImpactBps
	}
	return uint32(impact.Uint64())
}

// EstimateGasUnits applies the per-hop heuristic for a route.
func EstimateGasUnits(hopVersions []domain.VenueVersion) uint64 {
	if len(hopVersions) == 0 {
		return 0
	}
	gas := GasBase
	for _, v := range hopVersions {
		if v == domain.VenueV3 {
			gas += GasPerV3Hop
		} else {
			gas += GasPerV2Hop
		}
	}
	gas += uint64(len(hopVersions)-1) * GasExtraHop
	return gas
}
