// Package classifier turns a pending transaction into the set of swaps it
// touches, using the layered detection scheme spec.md describes: cheap
// checks first, expensive ones (bytecode fetch, trace replay) only when
// the cheap ones are inconclusive.
package classifier

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/internal/routers"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// TxKind is the outcome of the cheap classification pass.
type TxKind int

const (
	KindEthTransfer TxKind = iota
	KindERC20Approve
	KindERC20Transfer
	KindSwap
	KindOther
)

// Classify runs the layered address/selector checks. It only touches the
// network for the bytecode heuristic fallback, and only when selector
// matching was inconclusive.
func Classify(ctx context.Context, client *ethclient.Client, tx models.VictimTx) TxKind {
	if routers.IsKnownRouter(tx.To) {
		return KindSwap
	}
	if len(tx.Calldata) == 0 {
		return KindEthTransfer
	}
	if len(tx.Calldata) < 4 {
		return KindOther
	}

	selector := selectorHex(tx.Calldata)
	switch {
	case routers.IsKnownSwapSelector(selector) || routers.IsDirectPoolSwapSelector(selector):
		return KindSwap
	case selector == routers.SelectorERC20Approve:
		return KindERC20Approve
	case selector == routers.SelectorERC20Transfer:
		return KindERC20Transfer
	}

	if IsRouterLike(ctx, client, tx.To) {
		return KindSwap
	}
	if IsPoolContract(ctx, client, tx.To) {
		return KindSwap
	}
	return KindOther
}

func selectorHex(calldata []byte) string {
	return "0x" + common.Bytes2Hex(calldata[:4])
}
