package classifier

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/internal/routers"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// Extractor turns a pending transaction into zero or more SwapInfo
// records, consulting the pool/token registries and blacklist.
type Extractor struct {
	client    *ethclient.Client
	pools     *registry.PoolRegistry
	tokens    *registry.TokenRegistry
	blacklist *registry.Blacklist
}

// NewExtractor builds an Extractor over the given registries.
func NewExtractor(client *ethclient.Client, pools *registry.PoolRegistry, tokens *registry.TokenRegistry, blacklist *registry.Blacklist) *Extractor {
	return &Extractor{client: client, pools: pools, tokens: tokens, blacklist: blacklist}
}

// Extract runs the layered classifier and, for swaps, decodes the
// touched pool(s) into SwapInfo records. It never returns an error on a
// decode failure — per spec, an undecodable swap silently contributes no
// SwapInfo rather than failing the whole event.
func (e *Extractor) Extract(ctx context.Context, tx models.VictimTx) []models.SwapInfo {
	kind := Classify(ctx, e.client, tx)
	if kind != KindSwap {
		return nil
	}
	if e.blacklist.Contains(tx.To) {
		return nil
	}

	if pool, ok := e.pools.Get(tx.To); ok {
		if si, ok := e.directPoolSwap(tx, pool); ok {
			return []models.SwapInfo{si}
		}
		return nil
	}

	if routers.IsKnownRouter(tx.To) {
		return e.routerSwap(tx)
	}

	// Neither a registered pool nor a known router call: the selector
	// matched a swap-looking method, or Classify's bytecode heuristic
	// flagged tx.To as router-/pool-like on a contract this engine does
	// not otherwise recognize. Fall back to a trace replay and scan the
	// call tree's logs for a registered pool — the original's need_trace
	// path, taken whenever `to` isn't a known router.
	return e.traceSwap(ctx, tx)
}

// directPoolSwap builds a SwapInfo for a call straight to a known pool
// address, decoding only enough to tell the selector is a recognized
// swap method; the actual amounts come from the simulator's pre-trade
// reserve read, not from here.
func (e *Extractor) directPoolSwap(tx models.VictimTx, pool models.Pool) (models.SwapInfo, bool) {
	if len(tx.Calldata) < 4 {
		return models.SwapInfo{}, false
	}
	selector := selectorHex(tx.Calldata)
	if !routers.IsDirectPoolSwapSelector(selector) {
		return models.SwapInfo{}, false
	}
	return e.poolSwapInfo(tx.Hash, pool)
}

// poolSwapInfo builds a SwapInfo for a pool touched either by a direct
// call or by a trace replay's logs. Direction defaults to Buy, matching
// the original's pool_direct_swap: a direct pool call's own swap()
// selector does not reveal which side the caller is trading, so without
// decoding amount0Out/amount1Out this can only default rather than infer.
func (e *Extractor) poolSwapInfo(txHash common.Hash, pool models.Pool) (models.SwapInfo, bool) {
	token0, ok0 := e.tokens.Get(pool.Token0)
	token1, ok1 := e.tokens.Get(pool.Token1)
	if !ok0 || !ok1 {
		return models.SwapInfo{}, false
	}
	main, target, ok := registry.ReturnMainAndTargetCurrency(token0, token1)
	if !ok {
		return models.SwapInfo{}, false
	}

	return models.SwapInfo{
		TxHash:       txHash,
		TargetPair:   pool.Address,
		MainCurrency: main.Address,
		TargetToken:  target.Address,
		Variant:      pool.Variant,
		Token0IsMain: main.Address == pool.Token0,
		FeePPM:       pool.FeePPM,
		Direction:    models.Buy,
	}, true
}

// callFrame mirrors just enough of the callTracer JSON-RPC tracer's
// output shape to walk the call tree for emitted logs; the rest of the
// tracer's fields (gas, input, output, value, error) are not needed here.
type callFrame struct {
	To    common.Address `json:"to"`
	Logs  []callLog       `json:"logs"`
	Calls []callFrame     `json:"calls"`
}

type callLog struct {
	Address common.Address `json:"address"`
}

// collectCallLogs flattens a callTracer frame tree's logs in execution
// order, the same recursive walk the original's extract_logs performs
// over a CallFrame.
func collectCallLogs(frame *callFrame, out *[]callLog) {
	*out = append(*out, frame.Logs...)
	for i := range frame.Calls {
		collectCallLogs(&frame.Calls[i], out)
	}
}

// traceSwap replays tx against the current head via debug_traceCall
// (callTracer, logs enabled) and emits a SwapInfo for every registered
// pool whose address shows up in the resulting call tree's logs. This is
// the fallback for transactions Classify flagged as swap-shaped by
// bytecode heuristic alone: calls to contracts that are neither in the
// pool registry nor the known-router set, so no selector/path decode is
// possible and the only way to find the touched pool is to run the call
// and see what it emits.
func (e *Extractor) traceSwap(ctx context.Context, tx models.VictimTx) []models.SwapInfo {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil
	}

	callObj := map[string]interface{}{
		"from": tx.From,
		"to":   tx.To,
		"data": hexutil.Encode(tx.Calldata),
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		callObj["value"] = hexutil.EncodeBig(tx.Value)
	}
	traceConfig := map[string]interface{}{
		"tracer":       "callTracer",
		"tracerConfig": map[string]interface{}{"withLog": true},
	}

	var frame callFrame
	if err := e.client.Client().CallContext(ctx, &frame, "debug_traceCall", callObj, hexutil.EncodeUint64(head), traceConfig); err != nil {
		return nil
	}

	var logs []callLog
	collectCallLogs(&frame, &logs)

	var out []models.SwapInfo
	for _, lg := range logs {
		pool, ok := e.pools.Get(lg.Address)
		if !ok {
			continue
		}
		if si, ok := e.poolSwapInfo(tx.Hash, pool); ok {
			out = append(out, si)
		}
	}
	return out
}

// routerSwap decodes the token path out of a router call and emits one
// SwapInfo per adjacent (tokenIn, tokenOut) pair that resolves to a known
// pool. Paths longer than a single hop are not dropped (an earlier design
// note flagged this as unresolved) — each adjacent pair gets its own
// SwapInfo rather than only the first hop surviving.
func (e *Extractor) routerSwap(tx models.VictimTx) []models.SwapInfo {
	selector := selectorHex(tx.Calldata)
	var path []common.Address

	switch {
	case routers.IsV2PathSelector(selector):
		path = decodeV2Path(tx.Calldata)
	case routers.IsV3PathSelector(selector):
		path = decodeV3Path(tx.Calldata)
	default:
		return nil
	}
	if len(path) < 2 {
		return nil
	}

	var out []models.SwapInfo
	for i := 0; i+1 < len(path); i++ {
		tokenIn, tokenOut := path[i], path[i+1]
		pool, ok := e.poolForPair(tokenIn, tokenOut)
		if !ok {
			continue
		}
		token0, ok0 := e.tokens.Get(pool.Token0)
		token1, ok1 := e.tokens.Get(pool.Token1)
		if !ok0 || !ok1 {
			continue
		}
		main, target, ok := registry.ReturnMainAndTargetCurrency(token0, token1)
		if !ok {
			continue
		}
		// direction = Buy when tokenIn is the resolved main currency,
		// else Sell — the victim-sells-target-for-numéraire case (path
		// [X, WETH], tokenIn=X) must surface too, not just the reverse.
		direction := models.Buy
		if tokenIn != main.Address {
			direction = models.Sell
		}
		out = append(out, models.SwapInfo{
			TxHash:       tx.Hash,
			TargetPair:   pool.Address,
			MainCurrency: main.Address,
			TargetToken:  target.Address,
			Variant:      pool.Variant,
			Token0IsMain: main.Address == pool.Token0,
			FeePPM:       pool.FeePPM,
			Direction:    direction,
		})
	}
	return out
}

func (e *Extractor) poolForPair(a, b common.Address) (models.Pool, bool) {
	for _, p := range e.pools.All() {
		if (p.Token0 == a && p.Token1 == b) || (p.Token0 == b && p.Token1 == a) {
			return p, true
		}
	}
	return models.Pool{}, false
}

// decodeV2Path decodes the address[] path argument shared by the
// swapExact*-style v2 router methods. It returns the first array of 2 to
// 10 addresses found in the arguments, multi-hop paths included; nil if
// none is found.
func decodeV2Path(calldata []byte) []common.Address {
	if len(calldata) < 4+32 {
		return nil
	}
	args := calldata[4:]
	// The path arg's tail offset/length location varies by selector; to
	// stay selector-agnostic we scan for a plausible dynamic-array region:
	// a 32-byte length L followed by L*32 bytes of left-padded addresses.
	for off := 0; off+32 <= len(args); off += 32 {
		length := new(big.Int).SetBytes(args[off : off+32]).Uint64()
		if length < 2 || length > 10 {
			continue
		}
		need := off + 32 + int(length)*32
		if need > len(args) {
			continue
		}
		addrs := make([]common.Address, 0, length)
		for i := uint64(0); i < length; i++ {
			start := off + 32 + int(i)*32
			addrs = append(addrs, common.BytesToAddress(args[start:start+32]))
		}
		return addrs
	}
	return nil
}

// decodeV3Path decodes the packed bytes path v3 exactInput/exactOutput
// take: token(20) ++ fee(3) ++ token(20) ++ fee(3) ++ ... ++ token(20).
func decodeV3Path(calldata []byte) []common.Address {
	if len(calldata) < 4 {
		return nil
	}
	// Locate the packed bytes payload the same way decodeV2Path locates
	// the address array: scan for a length-prefixed region whose length
	// is consistent with a 20/3/20/.../20 packed path.
	args := calldata[4:]
	for off := 0; off+32 <= len(args); off += 32 {
		length := new(big.Int).SetBytes(args[off : off+32]).Uint64()
		if length < 43 || (length-20)%23 != 0 {
			continue
		}
		start := off + 32
		if start+int(length) > len(args) {
			continue
		}
		packed := args[start : start+int(length)]
		hops := (len(packed) - 20) / 23
		addrs := make([]common.Address, 0, hops+1)
		pos := 0
		for i := 0; i <= hops; i++ {
			addrs = append(addrs, common.BytesToAddress(packed[pos:pos+20]))
			pos += 23
		}
		return addrs
	}
	return nil
}
