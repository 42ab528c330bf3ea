package sandwich

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rawblock/sandoo-engine/internal/evmsim"
	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/internal/routers"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

const simCallGasLimit = 5_000_000

var initialOwnerEthBalance = new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Options carries everything Simulate needs beyond the batch itself: the
// owner/bot addresses and bytecode, the fee schedule to charge, and
// previously-observed access lists to reuse instead of re-tracing.
type Options struct {
	Owner             common.Address
	BotAddress        common.Address
	BotBytecode       []byte
	BaseFee           *big.Int
	MaxFee            *big.Int
	FrontAccessList   types.AccessList
	BackAccessList    types.AccessList
	OwnerFunded       bool // true if Owner already has ETH in the fork; false seeds 100 ETH
}

// Simulate runs the full frontrun → victim replay → backrun sequence
// against a forked Simulator and reports the resulting profit/gas/revenue.
// The simulator passed in is mutated; callers that need to try several
// amounts should pass a fresh Simulator.Clone() per attempt.
func Simulate(sim *evmsim.Simulator, tokens *registry.TokenRegistry, batch *models.BatchSandwich, opts Options) (models.SimulatedSandwich, error) {
	if !opts.OwnerFunded {
		sim.SetEthBalance(opts.Owner, initialOwnerEthBalance)
	}

	reservesBefore, err := readReserves(sim, batch)
	if err != nil {
		return models.SimulatedSandwich{}, err
	}

	nextBlock := sim.NextBlockNumber()

	frontCalldata, victimTxs, startingMC, err := encodeFrontrun(batch, nextBlock, reservesBefore)
	if err != nil {
		return models.SimulatedSandwich{}, err
	}

	botAddress := opts.BotAddress
	if len(opts.BotBytecode) > 0 {
		sim.Deploy(botAddress, opts.BotBytecode)
		sim.InsertAccountStorage(botAddress, common.Hash{}, common.BytesToHash(opts.Owner.Bytes()))
		for mc, amount := range startingMC {
			meta, ok := tokens.Get(mc)
			if !ok || meta.BalanceSlot < 0 {
				continue
			}
			if err := sim.SetTokenBalance(mc, botAddress, meta.BalanceSlot, amount); err != nil {
				return models.SimulatedSandwich{}, fmt.Errorf("sandwich: seed balance for %s: %w", mc, err)
			}
		}
	}

	ethBalanceBefore := sim.GetBalance(opts.Owner)
	mcBalancesBefore := make(map[common.Address]*big.Int, len(startingMC))
	for mc := range startingMC {
		bal, err := sim.GetTokenBalance(mc, botAddress)
		if err != nil {
			bal = big.NewInt(0)
		}
		mcBalancesBefore[mc] = bal
	}

	sim.SetBaseFee(opts.BaseFee)

	frontTx := evmsim.Tx{Caller: opts.Owner, To: botAddress, Data: frontCalldata, Value: big.NewInt(0), GasPrice: opts.BaseFee, GasLimit: simCallGasLimit}
	frontAccessList := opts.FrontAccessList
	if frontAccessList == nil {
		frontAccessList = sim.GetAccessList(frontTx)
	}
	sim.SetAccessList(frontAccessList)

	var frontGasUsed uint64
	if res, err := sim.Call(frontTx); err == nil {
		frontGasUsed = res.GasUsed
	}

	for _, victim := range victimTxs {
		_, _ = sim.Call(evmsim.Tx{
			Caller:   victim.From,
			To:       victim.To,
			Data:     victim.Calldata,
			Value:    victim.Value,
			GasPrice: victim.GasPrice,
			GasLimit: victim.GasLimit,
		})
	}

	sim.SetBaseFee(big.NewInt(0))

	reservesAfter, err := readReserves(sim, batch)
	if err != nil {
		return models.SimulatedSandwich{}, err
	}

	tokenBalances := make(map[common.Address]*big.Int)
	for _, sw := range batch.Sandwiches {
		bal, err := sim.GetTokenBalance(sw.SwapInfo.TargetToken, botAddress)
		if err != nil {
			bal = big.NewInt(0)
		}
		tokenBalances[sw.SwapInfo.TargetToken] = bal
	}

	sim.SetBaseFee(opts.BaseFee)

	backCalldata, err := encodeBackrun(batch, nextBlock, reservesAfter, tokenBalances)
	if err != nil {
		return models.SimulatedSandwich{}, err
	}

	backTx := evmsim.Tx{Caller: opts.Owner, To: botAddress, Data: backCalldata, Value: big.NewInt(0), GasPrice: opts.MaxFee, GasLimit: simCallGasLimit}
	backAccessList := opts.BackAccessList
	if backAccessList == nil {
		backAccessList = sim.GetAccessList(backTx)
	}
	sim.SetAccessList(backAccessList)

	var backGasUsed uint64
	if res, err := sim.Call(backTx); err == nil {
		backGasUsed = res.GasUsed
	}

	sim.SetBaseFee(big.NewInt(0))

	ethBalanceAfter := sim.GetBalance(opts.Owner)
	ethUsedAsGas := new(big.Int).Sub(ethBalanceBefore, ethBalanceAfter)
	if ethUsedAsGas.Sign() < 0 {
		ethUsedAsGas = new(big.Int).Set(ethBalanceBefore)
	}

	wethBefore, wethAfter := big.NewInt(0), big.NewInt(0)
	for mc := range startingMC {
		before := mcBalancesBefore[mc]
		after, err := sim.GetTokenBalance(mc, botAddress)
		if err != nil {
			after = big.NewInt(0)
		}
		nb, na := normalizeToWETH(tokens, mc, before, after)
		wethBefore.Add(wethBefore, nb)
		wethAfter.Add(wethAfter, na)
	}

	profit := new(big.Int).Sub(wethAfter, wethBefore)
	revenue := new(big.Int).Sub(profit, ethUsedAsGas)

	return models.SimulatedSandwich{
		Revenue:         revenue,
		Profit:          profit,
		GasCost:         ethUsedAsGas,
		FrontGasUsed:    frontGasUsed,
		BackGasUsed:     backGasUsed,
		FrontAccessList: frontAccessList,
		BackAccessList:  backAccessList,
		FrontCalldata:   frontCalldata,
		BackCalldata:    backCalldata,
	}, nil
}

// readReserves fetches V2 reserves for V2 pairs and synthesizes V3
// reserves for V3 pools, falling back to the other variant on revert —
// some pools misreport their own version in discovery.
func readReserves(sim *evmsim.Simulator, batch *models.BatchSandwich) (map[common.Address]reservePair, error) {
	out := make(map[common.Address]reservePair)
	for _, sw := range batch.Sandwiches {
		pair := sw.SwapInfo.TargetPair
		if _, done := out[pair]; done {
			continue
		}

		var r0, r1 *big.Int
		if sw.SwapInfo.Variant == models.UniswapV2 {
			var err error
			r0, r1, err = sim.GetPairReserves(pair)
			if err != nil {
				if sqrtP, liq, err2 := sim.GetV3PoolReserves(pair); err2 == nil {
					r0, r1 = routers.SynthesizeV3Reserves(sqrtP, liq)
				}
			}
		} else {
			sqrtP, liq, err := sim.GetV3PoolReserves(pair)
			if err == nil {
				r0, r1 = routers.SynthesizeV3Reserves(sqrtP, liq)
			} else if rv0, rv1, err2 := sim.GetPairReserves(pair); err2 == nil {
				r0, r1 = rv0, rv1
			}
		}

		if r0 == nil || r1 == nil {
			continue
		}
		out[pair] = reservePair{reserve0: r0, reserve1: r1}
	}
	return out, nil
}

// normalizeToWETH converts a main-currency balance to a WETH-denominated
// figure using the registry's last Chainlink-observed USD prices, so
// sandwiches across different numéraires can be compared and summed on
// one profit scale.
func normalizeToWETH(tokens *registry.TokenRegistry, mc common.Address, before, after *big.Int) (*big.Int, *big.Int) {
	weth, ok := tokens.Get(registry.WETH)
	if !ok || weth.USDPrice <= 0 || mc == registry.WETH {
		return before, after
	}
	meta, ok := tokens.Get(mc)
	if !ok || meta.USDPrice <= 0 {
		return before, after
	}
	convert := func(amount *big.Int) *big.Int {
		f := new(big.Float).SetInt(amount)
		f.Mul(f, big.NewFloat(meta.USDPrice))
		f.Quo(f, big.NewFloat(weth.USDPrice))
		out, _ := f.Int(nil)
		return out
	}
	return convert(before), convert(after)
}
