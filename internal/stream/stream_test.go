package stream

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestNextBaseFee_IncreasesWhenGasUsedAboveTarget(t *testing.T) {
	baseFee := big.NewInt(100_000_000_000) // 100 gwei
	next := nextBaseFee(15_000_000, 20_000_000, baseFee)
	if next.Cmp(baseFee) <= 0 {
		t.Fatalf("expected next base fee above %s, got %s", baseFee, next)
	}
}

func TestNextBaseFee_DecreasesWhenGasUsedBelowTarget(t *testing.T) {
	baseFee := big.NewInt(100_000_000_000)
	next := nextBaseFee(2_000_000, 20_000_000, baseFee)
	if next.Cmp(baseFee) >= 0 {
		t.Fatalf("expected next base fee below %s, got %s", baseFee, next)
	}
}

func TestNextBaseFee_NeverNegative(t *testing.T) {
	baseFee := big.NewInt(1)
	next := nextBaseFee(0, 20_000_000, baseFee)
	if next.Sign() < 0 {
		t.Fatalf("expected non-negative base fee, got %s", next)
	}
}

func TestNextBaseFee_ZeroGasLimitFallsBackToTargetOne(t *testing.T) {
	baseFee := big.NewInt(1000)
	next := nextBaseFee(5, 0, baseFee)
	if next == nil {
		t.Fatalf("expected a non-nil result for zero gas limit")
	}
}

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	ev := Event{Kind: KindBlock}
	b.publish(ev)

	select {
	case got := <-ch1:
		if got.Kind != KindBlock {
			t.Fatalf("expected KindBlock, got %v", got.Kind)
		}
	default:
		t.Fatalf("expected ch1 to receive the published event")
	}
	select {
	case got := <-ch2:
		if got.Kind != KindBlock {
			t.Fatalf("expected KindBlock, got %v", got.Kind)
		}
	default:
		t.Fatalf("expected ch2 to receive the published event")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()

	b.publish(Event{Kind: KindPendingTx})

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestToVictimTx_DecodesLegacyTransaction(t *testing.T) {
	key := testKey(t)
	chainID := big.NewInt(1)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(50_000_000_000),
		Gas:      21000,
		Value:    big.NewInt(0),
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}

	victim, err := toVictimTx(signed)
	if err != nil {
		t.Fatalf("toVictimTx: %v", err)
	}
	if victim.Hash != signed.Hash() {
		t.Fatalf("expected hash %s, got %s", signed.Hash(), victim.Hash)
	}
	if victim.From != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("expected recovered sender to match signer")
	}
	if len(victim.Raw) == 0 {
		t.Fatalf("expected Raw to carry the signed RLP")
	}
	if victim.GasPrice == nil || victim.GasPrice.Sign() <= 0 {
		t.Fatalf("expected a positive gas price, got %v", victim.GasPrice)
	}
}

func TestToVictimTx_FallsBackToFeeCapFor1559Tx(t *testing.T) {
	key := testKey(t)
	chainID := big.NewInt(1)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     2,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(80_000_000_000),
		Gas:       21000,
		Value:     big.NewInt(0),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}

	victim, err := toVictimTx(signed)
	if err != nil {
		t.Fatalf("toVictimTx: %v", err)
	}
	if victim.GasPrice == nil || victim.GasPrice.Cmp(big.NewInt(80_000_000_000)) != 0 {
		t.Fatalf("expected gas price to fall back to fee cap, got %v", victim.GasPrice)
	}
}
