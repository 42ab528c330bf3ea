package routers

import "math/big"

var (
	feeNumV2   = big.NewInt(997)
	feeDenomV2 = big.NewInt(1000)
	ppmDenom   = big.NewInt(1_000_000)
	q96        = new(big.Int).Lsh(big.NewInt(1), 96)
)

// GetV2AmountOut implements the constant-product swap formula with
// Uniswap v2's fixed 0.3% fee:
//
//	amountOut = (amountIn * 997 * reserveOut) / (reserveIn * 1000 + amountIn * 997)
func GetV2AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	amountInWithFee := new(big.Int).Mul(amountIn, feeNumV2)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenomV2)
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}

// GetV3AmountOut is the same constant-product formula with an arbitrary
// ppm fee applied to the input leg, as used for v3 pools' approximated
// reserves:
//
//	amountIn' = amountIn * (1_000_000 - feePPM) / 1_000_000
//	amountOut = (amountIn' * reserveOut) / (reserveIn + amountIn')
func GetV3AmountOut(amountIn, reserveIn, reserveOut *big.Int, feePPM uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	feeAdjusted := new(big.Int).Sub(ppmDenom, big.NewInt(int64(feePPM)))
	amountInAfterFee := new(big.Int).Mul(amountIn, feeAdjusted)
	amountInAfterFee.Div(amountInAfterFee, ppmDenom)

	numerator := new(big.Int).Mul(amountInAfterFee, reserveOut)
	denominator := new(big.Int).Add(reserveIn, amountInAfterFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}

// SynthesizeV3Reserves approximates token0/token1 "reserves" for a v3 pool
// from its current sqrtPriceX96 and liquidity, valid only for small trades
// that do not cross a tick boundary:
//
//	reserve0 ≈ liquidity * Q96 / sqrtPriceX96
//	reserve1 ≈ liquidity * sqrtPriceX96 / Q96
//
// The outer amount-in optimizer's forked-EVM simulation is what actually
// bounds the error this approximation introduces; there is no documented
// accuracy budget beyond "good enough to seed the search".
func SynthesizeV3Reserves(sqrtPriceX96, liquidity *big.Int) (reserve0, reserve1 *big.Int) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	reserve0 = new(big.Int).Mul(liquidity, q96)
	reserve0.Div(reserve0, sqrtPriceX96)

	reserve1 = new(big.Int).Mul(liquidity, sqrtPriceX96)
	reserve1.Div(reserve1, q96)
	return reserve0, reserve1
}
