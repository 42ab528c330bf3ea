package routers

import (
	"math/big"
	"testing"
)

func TestGetV2AmountOut_ZeroInput(t *testing.T) {
	out := GetV2AmountOut(big.NewInt(0), big.NewInt(1000), big.NewInt(1000))
	if out.Sign() != 0 {
		t.Fatalf("expected zero amount out for zero amount in, got %s", out)
	}
}

func TestGetV2AmountOut_Monotonic(t *testing.T) {
	reserveIn := big.NewInt(1_000_000_000)
	reserveOut := big.NewInt(1_000_000_000)

	prev := big.NewInt(0)
	for _, in := range []int64{1000, 10000, 100000, 1000000} {
		out := GetV2AmountOut(big.NewInt(in), reserveIn, reserveOut)
		if out.Cmp(prev) <= 0 {
			t.Fatalf("expected strictly increasing amount out as amount in grows, got %s after %s", out, prev)
		}
		prev = out
	}
}

func TestGetV2AmountOut_HomogeneousInReserves(t *testing.T) {
	amountIn := big.NewInt(5000)
	reserveIn := big.NewInt(1_000_000_000)
	reserveOut := big.NewInt(2_000_000_000)

	base := GetV2AmountOut(amountIn, reserveIn, reserveOut)
	doubled := GetV2AmountOut(amountIn, new(big.Int).Mul(reserveIn, big.NewInt(2)), new(big.Int).Mul(reserveOut, big.NewInt(2)))

	// doubling both reserves should leave the output roughly unchanged for
	// a fixed, small amount in relative to pool depth.
	diff := new(big.Int).Sub(base, doubled)
	diff.Abs(diff)
	tolerance := new(big.Int).Div(base, big.NewInt(1000)) // 0.1%
	if diff.Cmp(tolerance) > 0 {
		t.Fatalf("expected doubling reserves to leave amount out roughly unchanged, got %s vs %s (diff %s > tol %s)", base, doubled, diff, tolerance)
	}
}

func TestGetV3AmountOut_FeeReducesOutputVersusZeroFee(t *testing.T) {
	amountIn := big.NewInt(10000)
	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(1_000_000)

	noFee := GetV3AmountOut(amountIn, reserveIn, reserveOut, 0)
	withFee := GetV3AmountOut(amountIn, reserveIn, reserveOut, 3000)

	if withFee.Cmp(noFee) >= 0 {
		t.Fatalf("expected fee to strictly reduce output, got noFee=%s withFee=%s", noFee, withFee)
	}
}

func TestSynthesizeV3Reserves_ZeroPriceIsZeroReserves(t *testing.T) {
	r0, r1 := SynthesizeV3Reserves(big.NewInt(0), big.NewInt(500))
	if r0.Sign() != 0 || r1.Sign() != 0 {
		t.Fatalf("expected zero reserves for zero sqrtPriceX96, got r0=%s r1=%s", r0, r1)
	}
}

func TestIsKnownSwapSelector(t *testing.T) {
	if !IsKnownSwapSelector(SelectorSwapExactETHForTokens) {
		t.Fatalf("expected %s to be a known swap selector", SelectorSwapExactETHForTokens)
	}
	if IsKnownSwapSelector(SelectorERC20Approve) {
		t.Fatalf("approve selector must not be classified as a swap selector")
	}
}
