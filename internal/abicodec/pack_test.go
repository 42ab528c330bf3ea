package abicodec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeDecodeTrades_RoundTrip(t *testing.T) {
	entries := []TradeEntry{
		{
			ZeroForOne: true,
			Pair:       common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
			TokenIn:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			AmountIn:   big.NewInt(1_000_000_000_000_000_000),
			AmountOut:  big.NewInt(2_500_000_000),
		},
		{
			ZeroForOne: false,
			Pair:       common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
			TokenIn:    common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			AmountIn:   big.NewInt(2_499_999_999),
			AmountOut:  big.NewInt(990_000_000_000_000_000),
		},
	}

	blob := EncodeTrades(18_000_000, entries)
	if !ValidSandwichBlobLength(len(blob)) {
		t.Fatalf("encoded blob length %d fails the (len-8)%%105==0 invariant", len(blob))
	}

	blockNumber, decoded, err := DecodeTrades(blob)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if blockNumber != 18_000_000 {
		t.Fatalf("expected block number 18000000, got %d", blockNumber)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 decoded entries, got %d", len(decoded))
	}
	if decoded[0].Pair != entries[0].Pair || decoded[0].AmountIn.Cmp(entries[0].AmountIn) != 0 {
		t.Fatalf("first entry mismatch: got %+v", decoded[0])
	}
	if decoded[1].ZeroForOne {
		t.Fatalf("expected second entry zeroForOne=false")
	}
}

func TestDecodeTrades_RejectsBadLength(t *testing.T) {
	if _, _, err := DecodeTrades(make([]byte, 9)); err == nil {
		t.Fatalf("expected error for length violating the (len-8)%%105==0 invariant")
	}
}
