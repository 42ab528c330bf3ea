package classifier

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

func TestClassify_EmptyCalldataIsEthTransfer(t *testing.T) {
	tx := models.VictimTx{
		To:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value: big.NewInt(1),
	}
	if got := Classify(nil, nil, tx); got != KindEthTransfer {
		t.Fatalf("expected KindEthTransfer, got %v", got)
	}
}

func TestClassify_ShortCalldataIsOther(t *testing.T) {
	tx := models.VictimTx{
		To:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Calldata: []byte{0x01, 0x02},
	}
	if got := Classify(nil, nil, tx); got != KindOther {
		t.Fatalf("expected KindOther for <4 byte calldata, got %v", got)
	}
}

func TestClassify_KnownRouterIsAlwaysSwap(t *testing.T) {
	router := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	tx := models.VictimTx{To: router, Calldata: []byte{0xde, 0xad, 0xbe, 0xef}}
	if got := Classify(nil, nil, tx); got != KindSwap {
		t.Fatalf("expected KindSwap for known router, got %v", got)
	}
}

func TestClassify_ApproveSelector(t *testing.T) {
	tx := models.VictimTx{
		To:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Calldata: common.FromHex("0x095ea7b3000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000001"),
	}
	if got := Classify(nil, nil, tx); got != KindERC20Approve {
		t.Fatalf("expected KindERC20Approve, got %v", got)
	}
}

func TestDecodeV2Path_TwoHop(t *testing.T) {
	selector := common.FromHex("7ff36ab5")
	// amountOutMin(32) + offset-to-path(32)=0x40 + length(32)=2 + two addresses
	amountOutMin := make([]byte, 32)
	offset := make([]byte, 32)
	offset[31] = 0x40
	length := make([]byte, 32)
	length[31] = 2
	tokenA := make([]byte, 32)
	copy(tokenA[12:], common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48").Bytes())
	tokenB := make([]byte, 32)
	copy(tokenB[12:], common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2").Bytes())

	calldata := append(append([]byte{}, selector...), amountOutMin...)
	calldata = append(calldata, offset...)
	calldata = append(calldata, length...)
	calldata = append(calldata, tokenA...)
	calldata = append(calldata, tokenB...)

	path := decodeV2Path(calldata)
	if len(path) != 2 {
		t.Fatalf("expected 2-hop path, got %d entries: %v", len(path), path)
	}
}
