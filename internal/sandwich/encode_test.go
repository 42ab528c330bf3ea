package sandwich

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/internal/abicodec"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

func TestEncodeFrontrun_SkipsPairsMissingReserves(t *testing.T) {
	pair := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	mc := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	target := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	batch := models.NewBatchSandwich(common.Address{})
	batch.Add(models.Sandwich{
		AmountIn: big.NewInt(1_000_000),
		SwapInfo: models.SwapInfo{
			TargetPair:   pair,
			MainCurrency: mc,
			TargetToken:  target,
			Variant:      models.UniswapV2,
			Token0IsMain: true,
		},
	})

	calldata, _, startingMC, err := encodeFrontrun(batch, 100, map[common.Address]reservePair{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(startingMC) != 0 {
		t.Fatalf("expected no starting MC entries when reserves are missing, got %d", len(startingMC))
	}
	// With no entry the blob is only the 8-byte block-number header, which
	// DecodeTrades rejects as carrying no trade.
	if len(calldata) != 8 {
		t.Fatalf("expected zero trade entries for a pair with no reserves, got a %d-byte blob", len(calldata))
	}
	if blockNumber := binary.BigEndian.Uint64(calldata); blockNumber != 100 {
		t.Fatalf("expected block 100, got %d", blockNumber)
	}
	if _, _, err := abicodec.DecodeTrades(calldata); err == nil {
		t.Fatalf("expected DecodeTrades to reject a blob with no trade entries")
	}
}

func TestEncodeFrontrun_ProducesOneEntryPerSandwich(t *testing.T) {
	pair := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	mc := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	target := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	batch := models.NewBatchSandwich(common.Address{})
	batch.Add(models.Sandwich{
		AmountIn: big.NewInt(1_000_000),
		SwapInfo: models.SwapInfo{
			TargetPair:   pair,
			MainCurrency: mc,
			TargetToken:  target,
			Variant:      models.UniswapV2,
			Token0IsMain: true,
		},
		VictimTx: models.VictimTx{Hash: common.HexToHash("0x01")},
	})

	reserves := map[common.Address]reservePair{
		pair: {reserve0: big.NewInt(10_000_000_000), reserve1: big.NewInt(20_000_000_000)},
	}

	calldata, victims, startingMC, err := encodeFrontrun(batch, 42, reserves)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(victims) != 1 {
		t.Fatalf("expected 1 deduplicated victim tx, got %d", len(victims))
	}
	if startingMC[mc] == nil || startingMC[mc].Sign() <= 0 {
		t.Fatalf("expected a positive starting main-currency amount, got %v", startingMC[mc])
	}

	_, entries, err := abicodec.DecodeTrades(calldata)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trade entry, got %d", len(entries))
	}
	if !entries[0].ZeroForOne {
		t.Fatalf("expected zeroForOne=true when token0 is the main currency")
	}
	if entries[0].TokenIn != mc {
		t.Fatalf("expected tokenIn to be the main currency on the frontrun leg")
	}
}

func TestEncodeBackrun_FlipsDirection(t *testing.T) {
	pair := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	mc := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	target := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	batch := models.NewBatchSandwich(common.Address{})
	batch.Add(models.Sandwich{
		SwapInfo: models.SwapInfo{
			TargetPair:   pair,
			MainCurrency: mc,
			TargetToken:  target,
			Variant:      models.UniswapV2,
			Token0IsMain: true,
		},
	})

	reserves := map[common.Address]reservePair{
		pair: {reserve0: big.NewInt(10_000_000_000), reserve1: big.NewInt(20_000_000_000)},
	}
	balances := map[common.Address]*big.Int{target: big.NewInt(500_000)}

	calldata, err := encodeBackrun(batch, 42, reserves, balances)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, entries, err := abicodec.DecodeTrades(calldata)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trade entry, got %d", len(entries))
	}
	if entries[0].ZeroForOne {
		t.Fatalf("expected zeroForOne to flip to false on the backrun leg (selling token1)")
	}
	if entries[0].TokenIn != target {
		t.Fatalf("expected tokenIn to be the target token on the backrun leg")
	}
}
