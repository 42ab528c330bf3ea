package bundle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestCalculateFlashloanFee(t *testing.T) {
	amount := big.NewInt(1_000_000_000) // 1e9
	fee := CalculateFlashloanFee(amount)
	// 9 bps of 1e9 = 900000
	if fee.Cmp(big.NewInt(900_000)) != 0 {
		t.Fatalf("expected fee 900000, got %s", fee)
	}
}

func TestClassicalBundle_Flatten_PreservesOrder(t *testing.T) {
	front := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, To: &common.Address{}})
	back := types.NewTx(&types.LegacyTx{Nonce: 2, Gas: 21000, To: &common.Address{}})
	victim := types.NewTx(&types.LegacyTx{Nonce: 3, Gas: 21000, To: &common.Address{}})

	b := ClassicalBundle{FrontrunTx: front, VictimTxs: []*types.Transaction{victim}, BackrunTx: back}
	flat := b.flatten()
	if len(flat) != 3 {
		t.Fatalf("expected 3 txs, got %d", len(flat))
	}
	if flat[0].Hash() != front.Hash() || flat[1].Hash() != victim.Hash() || flat[2].Hash() != back.Hash() {
		t.Fatalf("expected order [frontrun, victim, backrun]")
	}
}

func TestEncodeBundle_ProducesValidJSON(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1), To: &common.Address{}})
	signer := types.HomesteadSigner{}
	key := mustTestKey(t)
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	body, err := encodeBundle(100, []*types.Transaction{signed})
	if err != nil {
		t.Fatalf("encodeBundle: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("expected non-empty body")
	}
}
