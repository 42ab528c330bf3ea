// Package sandwich runs a BatchSandwich through the forked-EVM simulator
// and sweeps candidate frontrun amounts to find the most profitable one.
package sandwich

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/internal/abicodec"
	"github.com/rawblock/sandoo-engine/internal/routers"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// reservePair is (reserve0, reserve1) as read from the forked state,
// ordered to match Pool.Token0/Token1.
type reservePair struct {
	reserve0 *big.Int
	reserve1 *big.Int
}

// encodeFrontrun builds the packed frontrun calldata for every sandwich in
// the batch: each leg buys the target token with its main currency. It
// also returns the deduplicated victim transactions to replay and the
// total main-currency amount the bot contract needs seeded per currency.
func encodeFrontrun(batch *models.BatchSandwich, blockNumber uint64, reserves map[common.Address]reservePair) ([]byte, []models.VictimTx, map[common.Address]*big.Int, error) {
	startingMC := make(map[common.Address]*big.Int)
	seen := make(map[common.Hash]bool)
	var victimTxs []models.VictimTx
	var entries []abicodec.TradeEntry

	one := big.NewInt(1)
	for _, sw := range batch.Sandwiches {
		if !seen[sw.VictimTx.Hash] {
			seen[sw.VictimTx.Hash] = true
			victimTxs = append(victimTxs, sw.VictimTx)
		}

		zeroForOne := sw.SwapInfo.Token0IsMain
		amountIn := new(big.Int).Sub(sw.AmountIn, one)
		if amountIn.Sign() < 0 {
			amountIn.SetInt64(0)
		}

		res, ok := reserves[sw.SwapInfo.TargetPair]
		if !ok {
			continue
		}
		reserveIn, reserveOut := res.reserve0, res.reserve1
		if !zeroForOne {
			reserveIn, reserveOut = res.reserve1, res.reserve0
		}

		var amountOut *big.Int
		if sw.SwapInfo.Variant == models.UniswapV2 {
			amountOut = routers.GetV2AmountOut(amountIn, reserveIn, reserveOut)
		} else {
			amountOut = routers.GetV3AmountOut(amountIn, reserveIn, reserveOut, sw.SwapInfo.FeePPM)
		}

		if cur, ok := startingMC[sw.SwapInfo.MainCurrency]; ok {
			startingMC[sw.SwapInfo.MainCurrency] = new(big.Int).Add(cur, amountIn)
		} else {
			startingMC[sw.SwapInfo.MainCurrency] = new(big.Int).Set(amountIn)
		}

		entries = append(entries, abicodec.TradeEntry{
			ZeroForOne: zeroForOne,
			Pair:       sw.SwapInfo.TargetPair,
			TokenIn:    sw.SwapInfo.MainCurrency,
			AmountIn:   amountIn,
			AmountOut:  amountOut,
		})
	}

	return abicodec.EncodeTrades(blockNumber, entries), victimTxs, startingMC, nil
}

// encodeBackrun builds the packed backrun calldata: each leg sells back
// whatever target-token balance the frontrun+victim sequence left the bot
// holding, flipping zeroForOne since this is now a sell.
func encodeBackrun(batch *models.BatchSandwich, blockNumber uint64, reserves map[common.Address]reservePair, tokenBalances map[common.Address]*big.Int) ([]byte, error) {
	one := big.NewInt(1)
	var entries []abicodec.TradeEntry

	for _, sw := range batch.Sandwiches {
		balance, ok := tokenBalances[sw.SwapInfo.TargetToken]
		if !ok {
			balance = big.NewInt(0)
		}
		amountIn := new(big.Int).Sub(balance, one)
		if amountIn.Sign() < 0 {
			amountIn.SetInt64(0)
		}

		zeroForOne := sw.SwapInfo.Token0IsMain

		res, ok := reserves[sw.SwapInfo.TargetPair]
		if !ok {
			continue
		}
		// backrun sells target token for main currency: reserves flip
		// relative to the frontrun's direction.
		reserveIn, reserveOut := res.reserve1, res.reserve0
		if !zeroForOne {
			reserveIn, reserveOut = res.reserve0, res.reserve1
		}

		var amountOut *big.Int
		if sw.SwapInfo.Variant == models.UniswapV2 {
			amountOut = routers.GetV2AmountOut(amountIn, reserveIn, reserveOut)
		} else {
			amountOut = routers.GetV3AmountOut(amountIn, reserveIn, reserveOut, sw.SwapInfo.FeePPM)
		}

		entries = append(entries, abicodec.TradeEntry{
			ZeroForOne: !zeroForOne,
			Pair:       sw.SwapInfo.TargetPair,
			TokenIn:    sw.SwapInfo.TargetToken,
			AmountIn:   amountIn,
			AmountOut:  amountOut,
		})
	}

	return abicodec.EncodeTrades(blockNumber, entries), nil
}
