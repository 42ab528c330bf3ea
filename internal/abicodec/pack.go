// Package abicodec is a thin façade over common ABI/packed-encoding
// shapes the simulator and bundle builder need: the fixed-width trade
// entries used in frontrun/backrun calldata, and the flash-loan sandwich
// blob format.
package abicodec

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TradeEntry is one packed leg of a frontrun/backrun call: whether the
// pool is traded zero-for-one, which pair and input token, and the
// amounts computed from the pre-trade reserve read.
type TradeEntry struct {
	ZeroForOne bool
	Pair       common.Address
	TokenIn    common.Address
	AmountIn   *big.Int
	AmountOut  *big.Int
}

// tradeEntrySize is 1 (zeroForOne) + 20 (pair) + 20 (tokenIn) + 32
// (amountIn) + 32 (amountOut) bytes.
const tradeEntrySize = 1 + 20 + 20 + 32 + 32

// EncodeTrades packs blockNumber as a big-endian uint64 followed by one
// fixed-size entry per trade, matching the frontrun/backrun calldata
// format the bot contract expects.
func EncodeTrades(blockNumber uint64, entries []TradeEntry) []byte {
	buf := make([]byte, 8, 8+len(entries)*tradeEntrySize)
	binary.BigEndian.PutUint64(buf, blockNumber)

	for _, e := range entries {
		var flag byte
		if e.ZeroForOne {
			flag = 1
		}
		buf = append(buf, flag)
		buf = append(buf, e.Pair.Bytes()...)
		buf = append(buf, e.TokenIn.Bytes()...)
		buf = append(buf, leftPadTo32(e.AmountIn)...)
		buf = append(buf, leftPadTo32(e.AmountOut)...)
	}
	return buf
}

// DecodeTrades is the inverse of EncodeTrades, validating the
// (len-8)%105==0 invariant the flash-loan bot contract enforces before
// re-entering its callback.
func DecodeTrades(data []byte) (blockNumber uint64, entries []TradeEntry, err error) {
	if len(data) <= 8 || (len(data)-8)%tradeEntrySize != 0 {
		return 0, nil, errors.New("abicodec: malformed trade blob length")
	}
	blockNumber = binary.BigEndian.Uint64(data[:8])

	body := data[8:]
	count := len(body) / tradeEntrySize
	entries = make([]TradeEntry, 0, count)
	for i := 0; i < count; i++ {
		off := i * tradeEntrySize
		entries = append(entries, TradeEntry{
			ZeroForOne: body[off] != 0,
			Pair:       common.BytesToAddress(body[off+1 : off+21]),
			TokenIn:    common.BytesToAddress(body[off+21 : off+41]),
			AmountIn:   new(big.Int).SetBytes(body[off+41 : off+73]),
			AmountOut:  new(big.Int).SetBytes(body[off+73 : off+105]),
		})
	}
	return blockNumber, entries, nil
}

func leftPadTo32(v *big.Int) []byte {
	out := make([]byte, 32)
	if v == nil {
		return out
	}
	b := v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// ValidSandwichBlobLength reports whether a flash-loan sandwich data blob
// satisfies the bot contract's length invariant: (len-8) % 105 == 0 and
// len > 8 (at least one trade entry present).
func ValidSandwichBlobLength(n int) bool {
	return n > 8 && (n-8)%tradeEntrySize == 0
}
