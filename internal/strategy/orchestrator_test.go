package strategy

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

func TestHandleBlock_PrunesPendingTxsOlderThanThreeBlocks(t *testing.T) {
	o := New(Config{})
	fresh := common.HexToHash("0x1")
	stale := common.HexToHash("0x2")
	o.pendingTxs[fresh] = &models.PendingTxInfo{AddedBlock: 98}
	o.pendingTxs[stale] = &models.PendingTxInfo{AddedBlock: 90}

	o.handleBlock(context.Background(), models.NewBlock{BlockNumber: 100, BaseFee: big.NewInt(1), NextBaseFee: big.NewInt(1)})

	if _, ok := o.pendingTxs[stale]; ok {
		t.Fatalf("expected tx added 10 blocks ago to be pruned")
	}
	if _, ok := o.pendingTxs[fresh]; !ok {
		t.Fatalf("expected tx added 2 blocks ago to survive")
	}
}

func TestHandleBlock_AdvancesCurrentBlock(t *testing.T) {
	o := New(Config{})
	blk := models.NewBlock{BlockNumber: 42, BaseFee: big.NewInt(5), NextBaseFee: big.NewInt(6)}
	o.handleBlock(context.Background(), blk)

	if o.currentBlock.BlockNumber != 42 {
		t.Fatalf("expected current block 42, got %d", o.currentBlock.BlockNumber)
	}
}

func TestAnyRelayAccepted(t *testing.T) {
	cases := []struct {
		name      string
		responses map[string]string
		want      bool
	}{
		{"empty", map[string]string{}, false},
		{"all errors", map[string]string{"flashbots": "error: timeout"}, false},
		{"one success", map[string]string{"flashbots": "error: timeout", "titanbuilder": "0xabc123"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := anyRelayAccepted(tc.responses); got != tc.want {
				t.Fatalf("anyRelayAccepted(%v) = %v, want %v", tc.responses, got, tc.want)
			}
		})
	}
}

func TestHandlePendingTx_GasGateRejectsBelowBaseFee(t *testing.T) {
	o := New(Config{})
	o.currentBlock = models.NewBlock{BlockNumber: 10, BaseFee: big.NewInt(100), NextBaseFee: big.NewInt(110)}

	tx := models.VictimTx{Hash: common.HexToHash("0x3"), GasPrice: big.NewInt(50)}
	o.handlePendingTx(context.Background(), tx)

	if _, ok := o.pendingTxs[tx.Hash]; ok {
		t.Fatalf("expected tx below base fee to be rejected before classification")
	}
}

func TestReserves_GetAfterUpdate(t *testing.T) {
	o := New(Config{})
	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")

	if _, ok := o.GetReserves(pool); ok {
		t.Fatalf("expected no reserves cached before any update")
	}

	o.updateReserves(pool, models.Reserves{Reserve0: big.NewInt(100), Reserve1: big.NewInt(200)})

	r, ok := o.GetReserves(pool)
	if !ok {
		t.Fatalf("expected reserves to be cached after update")
	}
	if r.Reserve0.Cmp(big.NewInt(100)) != 0 || r.Reserve1.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected reserves: %+v", r)
	}

	o.updateReserves(pool, models.Reserves{Reserve0: big.NewInt(150), Reserve1: big.NewInt(175)})
	r, _ = o.GetReserves(pool)
	if r.Reserve0.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected reserves to be overwritten by latest update, got %s", r.Reserve0)
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	o := New(Config{})
	if o.cfg.Mode != ModeClassical {
		t.Fatalf("expected default mode classical, got %s", o.cfg.Mode)
	}
	if o.cfg.MaxAmountInWei == nil || o.cfg.MaxAmountInWei.Sign() <= 0 {
		t.Fatalf("expected a positive default MaxAmountInWei")
	}
	if o.cfg.PriorityFeeWei == nil || o.cfg.PriorityFeeWei.Sign() <= 0 {
		t.Fatalf("expected a positive default PriorityFeeWei")
	}
}
