package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

func writeCachedPool(t *testing.T, dir string, pool models.Pool) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "cache"), 0o755); err != nil {
		t.Fatalf("mkdir cache dir: %v", err)
	}
	f, err := os.Create(filepath.Join(dir, "cache", ".cached-pools.csv"))
	if err != nil {
		t.Fatalf("create cache file: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("id,address,version,token0,token1,fee,block_number,timestamp\n"); err != nil {
		t.Fatalf("write header: %v", err)
	}
	row := pool.CSVRow()
	line := ""
	for i, v := range row {
		if i > 0 {
			line += ","
		}
		line += v
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("write row: %v", err)
	}
}

func newExtractorFixture(t *testing.T, pool models.Pool, targetSymbol string) *Extractor {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	writeCachedPool(t, dir, pool)

	pools, err := registry.NewPoolRegistry()
	if err != nil {
		t.Fatalf("NewPoolRegistry: %v", err)
	}
	tokens := registry.NewTokenRegistry()
	nonMain := pool.Token0
	if nonMain == registry.WETH {
		nonMain = pool.Token1
	}
	tokens.Register(models.TokenMetadata{Address: nonMain, Symbol: targetSymbol, Decimals: 18})

	return &Extractor{pools: pools, tokens: tokens, blacklist: registry.NewBlacklist()}
}

func v2PathCalldata(tokenIn, tokenOut common.Address) []byte {
	selector := common.FromHex("7ff36ab5") // swapExactETHForTokens-shaped: amountOutMin + path offset
	amountOutMin := make([]byte, 32)
	offset := make([]byte, 32)
	offset[31] = 0x40
	length := make([]byte, 32)
	length[31] = 2
	a := make([]byte, 32)
	copy(a[12:], tokenIn.Bytes())
	b := make([]byte, 32)
	copy(b[12:], tokenOut.Bytes())

	calldata := append(append([]byte{}, selector...), amountOutMin...)
	calldata = append(calldata, offset...)
	calldata = append(calldata, length...)
	calldata = append(calldata, a...)
	calldata = append(calldata, b...)
	return calldata
}

func TestRouterSwap_BuyWhenTokenInIsMainCurrency(t *testing.T) {
	target := common.HexToAddress("0x1111111111111111111111111111111111111111")
	pool := models.Pool{
		ID: 1, Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Variant: models.UniswapV2, Token0: registry.WETH, Token1: target,
		FeePPM: 3000, CreationBlock: 1, CreationTime: time.Unix(1_700_000_000, 0).UTC(),
	}
	e := newExtractorFixture(t, pool, "TGT")

	tx := models.VictimTx{Hash: common.HexToHash("0x1"), Calldata: v2PathCalldata(registry.WETH, target)}
	swaps := e.routerSwap(tx)
	if len(swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(swaps))
	}
	if swaps[0].Direction != models.Buy {
		t.Fatalf("expected Buy when tokenIn is main currency, got %v", swaps[0].Direction)
	}
	if swaps[0].MainCurrency != registry.WETH || swaps[0].TargetToken != target {
		t.Fatalf("unexpected main/target: %+v", swaps[0])
	}
}

func TestRouterSwap_SellWhenTokenInIsTargetToken(t *testing.T) {
	target := common.HexToAddress("0x3333333333333333333333333333333333333333")
	pool := models.Pool{
		ID: 1, Address: common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Variant: models.UniswapV2, Token0: registry.WETH, Token1: target,
		FeePPM: 3000, CreationBlock: 1, CreationTime: time.Unix(1_700_000_000, 0).UTC(),
	}
	e := newExtractorFixture(t, pool, "TGT")

	// path [target, WETH]: the victim sells the target token for the
	// numéraire — this must still surface a SwapInfo, with Direction Sell.
	tx := models.VictimTx{Hash: common.HexToHash("0x2"), Calldata: v2PathCalldata(target, registry.WETH)}
	swaps := e.routerSwap(tx)
	if len(swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(swaps))
	}
	if swaps[0].Direction != models.Sell {
		t.Fatalf("expected Sell when tokenIn is the target token, got %v", swaps[0].Direction)
	}
	if swaps[0].MainCurrency != registry.WETH || swaps[0].TargetToken != target {
		t.Fatalf("unexpected main/target: %+v", swaps[0])
	}
}

func TestTraceSwap_FindsPoolInNestedCallLogs(t *testing.T) {
	poolAddr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	target := common.HexToAddress("0x6666666666666666666666666666666666666666")
	pool := models.Pool{
		ID: 1, Address: poolAddr, Variant: models.UniswapV2, Token0: registry.WETH, Token1: target,
		FeePPM: 3000, CreationBlock: 1, CreationTime: time.Unix(1_700_000_000, 0).UTC(),
	}
	e := newExtractorFixture(t, pool, "TGT")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}

		var result interface{}
		switch req["method"] {
		case "eth_blockNumber":
			result = "0x64"
		case "debug_traceCall":
			result = map[string]interface{}{
				"to": "0x7777777777777777777777777777777777777777",
				"calls": []interface{}{
					map[string]interface{}{
						"to": poolAddr.Hex(),
						"logs": []interface{}{
							map[string]interface{}{"address": poolAddr.Hex()},
						},
					},
				},
			}
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req["id"], "result": result}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := ethclient.Dial(srv.URL)
	if err != nil {
		t.Fatalf("dial test rpc server: %v", err)
	}
	defer client.Close()
	e.client = client

	tx := models.VictimTx{
		Hash:     common.HexToHash("0x3"),
		From:     common.HexToAddress("0x8888888888888888888888888888888888888888"),
		To:       common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Calldata: []byte{0xde, 0xad, 0xbe, 0xef},
	}

	swaps := e.traceSwap(context.Background(), tx)
	if len(swaps) != 1 {
		t.Fatalf("expected 1 swap found via trace fallback, got %d", len(swaps))
	}
	if swaps[0].TargetPair != poolAddr {
		t.Fatalf("expected target pair %s, got %s", poolAddr, swaps[0].TargetPair)
	}
	if swaps[0].Direction != models.Buy {
		t.Fatalf("expected pool_direct_swap-style default Buy, got %v", swaps[0].Direction)
	}
}

func TestCollectCallLogs_FlattensNestedFrames(t *testing.T) {
	addr1 := common.HexToAddress("0x1")
	addr2 := common.HexToAddress("0x2")
	frame := callFrame{
		Logs: []callLog{{Address: addr1}},
		Calls: []callFrame{
			{Logs: []callLog{{Address: addr2}}},
		},
	}
	var logs []callLog
	collectCallLogs(&frame, &logs)
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs flattened, got %d", len(logs))
	}
	if logs[0].Address != addr1 || logs[1].Address != addr2 {
		t.Fatalf("unexpected log order: %+v", logs)
	}
}
