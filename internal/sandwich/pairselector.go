package sandwich

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// PairEvaluation scores one pool's suitability as a sandwich target,
// combining token-registry weight, DEX variant, and decimal-precision
// compatibility between its two tokens.
type PairEvaluation struct {
	Pool             common.Address
	MainToken        common.Address
	TargetToken      common.Address
	SuitabilityScore float64
	Factors          map[string]float64
}

// EvaluatePairs ranks every pool that pairs a registered main currency
// against a target token, highest score first. Pools with neither token
// registered as a main currency are skipped — there is nothing to buy with.
func EvaluatePairs(pools *registry.PoolRegistry, tokens *registry.TokenRegistry) []PairEvaluation {
	all := pools.All()
	evaluations := make([]PairEvaluation, 0, len(all))

	for _, p := range all {
		token0, ok0 := tokens.Get(p.Token0)
		token1, ok1 := tokens.Get(p.Token1)
		if !ok0 || !ok1 {
			continue
		}

		main, target, ok := registry.ReturnMainAndTargetCurrency(token0, token1)
		if !ok {
			continue
		}

		factors := map[string]float64{}

		mainWeight := float64(token0.Weight)
		if float64(token1.Weight) > mainWeight {
			mainWeight = float64(token1.Weight)
		}
		factors["main_weight"] = mainWeight

		// V2 and V3 pools are treated equally — the original gave both
		// variants the same score since both are swappable through the
		// simulator — this factor stays a constant rather than a branch.
		factors["version"] = 5.0

		decimalsDiff := float64(token0.Decimals) - float64(token1.Decimals)
		if decimalsDiff < 0 {
			decimalsDiff = -decimalsDiff
		}
		decimalsFactor := 5.0 - decimalsDiff*0.5
		if decimalsDiff > 10 {
			decimalsFactor = 0.5
		}
		factors["decimals_compatibility"] = decimalsFactor

		var score float64
		for _, f := range factors {
			score += f
		}

		evaluations = append(evaluations, PairEvaluation{
			Pool:             p.Address,
			MainToken:        main.Address,
			TargetToken:      target.Address,
			SuitabilityScore: score,
			Factors:          factors,
		})
	}

	sort.Slice(evaluations, func(i, j int) bool {
		return evaluations[i].SuitabilityScore > evaluations[j].SuitabilityScore
	})

	return evaluations
}

// RecommendedPairs returns up to maxPairs pool addresses scoring at or
// above minScore, in descending-score order.
func RecommendedPairs(pools *registry.PoolRegistry, tokens *registry.TokenRegistry, minScore float64, maxPairs int) []common.Address {
	evaluations := EvaluatePairs(pools, tokens)

	out := make([]common.Address, 0, maxPairs)
	for _, e := range evaluations {
		if e.SuitabilityScore < minScore {
			continue
		}
		out = append(out, e.Pool)
		if len(out) >= maxPairs {
			break
		}
	}
	return out
}

// ScoreFromSwap folds one submitted sandwich's predicted revenue into a
// running PairScore, used by the orchestrator to keep persisted pair
// rankings current as it trades. Score is the average predicted revenue
// per call, in wei.
func ScoreFromSwap(existing models.PairScore, pool common.Address, revenue models.OptimizedSandwich) models.PairScore {
	existing.Pool = pool
	existing.SwapCount++
	existing.LastSeen = time.Now()
	if existing.TotalRevenue == nil {
		existing.TotalRevenue = new(big.Int)
	}
	if revenue.MaxRevenue != nil {
		existing.TotalRevenue.Add(existing.TotalRevenue, revenue.MaxRevenue)
	}
	if existing.SwapCount > 0 {
		avg := new(big.Float).SetInt(existing.TotalRevenue)
		avg.Quo(avg, new(big.Float).SetUint64(existing.SwapCount))
		existing.Score, _ = avg.Float64()
	}
	return existing
}
