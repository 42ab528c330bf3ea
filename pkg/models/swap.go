package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapDirection is relative to the main currency: Buy spends main currency
// for the target token, Sell spends the target token for main currency.
type SwapDirection string

const (
	Buy  SwapDirection = "buy"
	Sell SwapDirection = "sell"
)

// SwapInfo is one detected swap touch within a pending transaction.
type SwapInfo struct {
	TxHash        common.Hash
	TargetPair    common.Address
	MainCurrency  common.Address
	TargetToken   common.Address
	Variant       DexVariant
	Token0IsMain  bool
	FeePPM        uint32
	Direction     SwapDirection
}

// VictimTx is a replayable snapshot of a mempool transaction. Raw holds
// the original signed RLP exactly as seen over the pending-tx feed — the
// bundle builder forwards these bytes verbatim rather than
// re-encoding/re-signing, since the victim's own signature must survive
// unmodified for the bundle to be valid.
type VictimTx struct {
	Hash     common.Hash
	From     common.Address
	To       common.Address
	Calldata []byte
	Value    *big.Int
	GasPrice *big.Int // legacy gas price, or max fee for 1559 txs
	GasLimit uint64   // 0 = unknown/unset
	Raw      []byte   // original signed RLP, nil if not captured
}

// PendingTxInfo tracks one pending tx from first sight until it is mined
// or pruned. Lifecycle per spec.md §3: removed when head-AddedBlock
// exceeds the pruning threshold (3 for the main sweep, 5 for the
// secondary sweep). A mined tx is not removed any earlier: the block
// handler does not look at the block's transactions.
type PendingTxInfo struct {
	Tx           VictimTx
	AddedBlock   uint64
	TouchedPairs []SwapInfo
}
