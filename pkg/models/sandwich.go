package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NewBlock carries the head block number and the base-fee pair an
// orchestrator needs to gas-price-gate incoming pending transactions and
// to schedule the next simulation.
type NewBlock struct {
	BlockNumber  uint64
	BaseFee      *big.Int
	NextBaseFee  *big.Int
}

// OptimizedSandwich is the output of the amount-in sweep: the best amount
// found, the revenue it yields, and everything the bundle builder needs to
// assemble frontrun/backrun transactions without re-simulating.
type OptimizedSandwich struct {
	AmountIn         *big.Int
	MaxRevenue       *big.Int
	FrontGasUsed     uint64
	BackGasUsed      uint64
	FrontAccessList  types.AccessList
	BackAccessList   types.AccessList
	FrontCalldata    []byte
	BackCalldata     []byte
}

// Sandwich pairs a victim swap with a candidate frontrun amount. Optimized
// is nil until the amount-in sweep has produced a result for it.
type Sandwich struct {
	AmountIn  *big.Int
	SwapInfo  SwapInfo
	VictimTx  VictimTx
	Optimized *OptimizedSandwich
}

// SimulatedSandwich is the raw result of one forked-EVM simulate() pass,
// before the optimizer decides whether it clears the profit floor.
type SimulatedSandwich struct {
	Revenue         *big.Int // profit - gas_cost, signed
	Profit          *big.Int // signed, native-denominated
	GasCost         *big.Int // signed, native-denominated
	FrontGasUsed    uint64
	BackGasUsed     uint64
	FrontAccessList types.AccessList
	BackAccessList  types.AccessList
	FrontCalldata   []byte
	BackCalldata    []byte
}

// BatchSandwich is an ordered group of Sandwiches sharing one atomic
// bundle and, in flash-loan mode, one borrowed asset.
type BatchSandwich struct {
	Sandwiches     []Sandwich
	FlashloanAsset common.Address
}

// NewBatchSandwich starts an empty batch for the given flash-loan asset.
// Pass the zero address when building a classical (non-flash-loan) bundle.
func NewBatchSandwich(flashloanAsset common.Address) *BatchSandwich {
	return &BatchSandwich{FlashloanAsset: flashloanAsset}
}

// Add appends a sandwich to the batch.
func (b *BatchSandwich) Add(s Sandwich) {
	b.Sandwiches = append(b.Sandwiches, s)
}

// SwapInfos derives the per-leg swap info from the batch's sandwiches on
// demand, rather than carrying a separately-populated field that could
// drift out of sync with Sandwiches.
func (b *BatchSandwich) SwapInfos() []SwapInfo {
	out := make([]SwapInfo, 0, len(b.Sandwiches))
	for _, s := range b.Sandwiches {
		out = append(out, s.SwapInfo)
	}
	return out
}

// VictimTxs collects the victim transactions carried by the batch, in the
// same order as Sandwiches.
func (b *BatchSandwich) VictimTxs() []VictimTx {
	out := make([]VictimTx, 0, len(b.Sandwiches))
	for _, s := range b.Sandwiches {
		out = append(out, s.VictimTx)
	}
	return out
}
