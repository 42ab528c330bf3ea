package sandwich

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/sandoo-engine/internal/evmsim"
	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

const (
	sweepIntervals = 5

	// wethTolerance/otherTolerance bound the bisection: once the search
	// window narrows below this, one more round of five sims wouldn't
	// move the needle on a WETH-denominated vs. other main currency.
	wethTolerance  = 100_000_000_000_000 // 1e14 wei
	otherTolerance = 1_000               // 1e3 base units

	// minProfitThresholdWei is the 0.02 ETH profit floor below which a
	// sandwich isn't worth bundling even if net-positive.
	minProfitThresholdWei = 20_000_000_000_000_000
)

var weth = registry.WETH

// Optimize bisects the amount-in space for a single swap opportunity,
// running sweepIntervals+1 parallel simulations per round and narrowing
// the window around whichever input produced the highest revenue (profit
// minus gas cost), until
// the step size falls under tolerance. Returns a zero OptimizedSandwich
// (AmountIn=0) if nothing clears the profit floor.
func Optimize(base *evmsim.Simulator, tokens *registry.TokenRegistry, sw models.SwapInfo, victim models.VictimTx, amountInCeiling *big.Int, opts Options) (models.OptimizedSandwich, error) {
	tolerance := big.NewInt(otherTolerance)
	if sw.MainCurrency == weth {
		tolerance = big.NewInt(wethTolerance)
	}

	minIn := big.NewInt(0)
	maxIn := new(big.Int).Set(amountInCeiling)
	if maxIn.Cmp(minIn) < 0 {
		return models.OptimizedSandwich{AmountIn: big.NewInt(0)}, nil
	}

	var best models.OptimizedSandwich
	best.AmountIn = big.NewInt(0)
	best.MaxRevenue = big.NewInt(0)

	for {
		diff := new(big.Int).Sub(maxIn, minIn)
		step := new(big.Int).Div(diff, big.NewInt(sweepIntervals))
		if step.Cmp(tolerance) <= 0 {
			break
		}

		inputs := make([]*big.Int, sweepIntervals+1)
		for i := 0; i <= sweepIntervals; i++ {
			inputs[i] = new(big.Int).Add(minIn, new(big.Int).Mul(big.NewInt(int64(i)), step))
		}

		results := make([]models.SimulatedSandwich, len(inputs))
		var grp errgroup.Group
		for idx, in := range inputs {
			idx, in := idx, in
			grp.Go(func() error {
				clone := base.Clone()
				batch := models.NewBatchSandwich(common.Address{})
				batch.Add(models.Sandwich{AmountIn: in, SwapInfo: sw, VictimTx: victim})
				res, err := Simulate(clone, tokens, batch, opts)
				if err != nil {
					res = models.SimulatedSandwich{Revenue: big.NewInt(0), Profit: big.NewInt(0), GasCost: big.NewInt(0)}
				}
				results[idx] = res
				return nil
			})
		}
		_ = grp.Wait()

		maxIdx := 0
		improved := false
		for idx, res := range results {
			if res.Revenue.Cmp(best.MaxRevenue) > 0 {
				best.AmountIn = inputs[idx]
				best.MaxRevenue = res.Revenue
				best.FrontGasUsed = res.FrontGasUsed
				best.BackGasUsed = res.BackGasUsed
				best.FrontAccessList = res.FrontAccessList
				best.BackAccessList = res.BackAccessList
				best.FrontCalldata = res.FrontCalldata
				best.BackCalldata = res.BackCalldata
				maxIdx = idx
				improved = true
			}
		}
		if !improved {
			break
		}

		if maxIdx == 0 {
			minIn = big.NewInt(0)
		} else {
			minIn = inputs[maxIdx-1]
		}
		if maxIdx == len(inputs)-1 {
			maxIn = inputs[maxIdx]
		} else {
			maxIn = inputs[maxIdx+1]
		}
	}

	if best.MaxRevenue.Cmp(big.NewInt(minProfitThresholdWei)) < 0 {
		return models.OptimizedSandwich{AmountIn: big.NewInt(0), MaxRevenue: big.NewInt(0)}, nil
	}

	return best, nil
}
