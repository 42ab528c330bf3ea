package bundle

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// defaultRelays mirrors the builder set the original engine broadcasts
// to: the public Flashbots relay plus the major private block builders
// that accept eth_sendBundle directly.
var defaultRelays = map[string]string{
	"flashbots":    "https://relay.flashbots.net",
	"beaverbuild":  "https://rpc.beaverbuild.org",
	"rsync":        "https://rsync-builder.xyz",
	"titanbuilder": "https://rpc.titanbuilder.xyz",
	"builder0x69":  "https://builder0x69.io",
	"f1b":          "https://rpc.f1b.io",
	"lokibuilder":  "https://rpc.lokibuilder.xyz",
	"eden":         "https://api.edennetwork.io/v1/rpc",
	"penguinbuild": "https://rpc.penguinbuild.org",
	"gambit":       "https://builder.gmbit.co/rpc",
	"idcmev":       "https://rpc.idcmev.xyz",
}

// Broadcaster fans a signed bundle out to every configured relay in
// parallel. It signs each request with a separate "identity" key (kept
// distinct from the owner key that signs the bundle's transactions) the
// way relays expect for reputation tracking, per X-Flashbots-Signature.
type Broadcaster struct {
	identityKey *ecdsa.PrivateKey
	relays      map[string]string
	httpClient  *http.Client
}

func NewBroadcaster(identityKey *ecdsa.PrivateKey, relays map[string]string) *Broadcaster {
	if relays == nil {
		relays = defaultRelays
	}
	return &Broadcaster{
		identityKey: identityKey,
		relays:      relays,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

type bundleParams struct {
	Txs             []string `json:"txs"`
	BlockNumber     string   `json:"blockNumber"`
	MinTimestamp    int64    `json:"minTimestamp,omitempty"`
	MaxTimestamp    int64    `json:"maxTimestamp,omitempty"`
	RevertingTxHash []string `json:"revertingTxHashes,omitempty"`
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// encodeBundle serializes every transaction, in the order given, into the
// eth_sendBundle request body for a target block.
func encodeBundle(targetBlock uint64, txs []*types.Transaction) ([]byte, error) {
	hexTxs := make([]string, 0, len(txs))
	for _, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("bundle: marshal tx %s: %w", tx.Hash(), err)
		}
		hexTxs = append(hexTxs, hexutil.Encode(raw))
	}
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendBundle",
		Params: []interface{}{bundleParams{
			Txs:         hexTxs,
			BlockNumber: hexutil.EncodeUint64(targetBlock),
		}},
	}
	return json.Marshal(req)
}

// flatten lays a ClassicalBundle out as [frontrun, victim..., backrun].
func (c ClassicalBundle) flatten() []*types.Transaction {
	out := make([]*types.Transaction, 0, len(c.VictimTxs)+2)
	out = append(out, c.FrontrunTx)
	out = append(out, c.VictimTxs...)
	out = append(out, c.BackrunTx)
	return out
}

func (f FlashloanBundle) flatten() []*types.Transaction {
	out := make([]*types.Transaction, 0, len(f.VictimTxs)+1)
	out = append(out, f.VictimTxs...)
	out = append(out, f.Tx)
	return out
}

// BroadcastClassical sends a ClassicalBundle to every relay and collects
// per-relay responses; an individual relay failure is recorded but never
// aborts the fan-out.
func (b *Broadcaster) BroadcastClassical(ctx context.Context, bundle ClassicalBundle, targetBlock uint64) map[string]string {
	return b.broadcast(ctx, bundle.flatten(), targetBlock)
}

// BroadcastFlashloan sends a FlashloanBundle to every relay.
func (b *Broadcaster) BroadcastFlashloan(ctx context.Context, bundle FlashloanBundle, targetBlock uint64) map[string]string {
	return b.broadcast(ctx, bundle.flatten(), targetBlock)
}

func (b *Broadcaster) broadcast(ctx context.Context, txs []*types.Transaction, targetBlock uint64) map[string]string {
	body, err := encodeBundle(targetBlock, txs)
	if err != nil {
		return map[string]string{"_error": err.Error()}
	}

	results := make(map[string]string, len(b.relays))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, url := range b.relays {
		name, url := name, url
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := b.send(ctx, url, body)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = "error: " + err.Error()
				return
			}
			results[name] = resp
		}()
	}
	wg.Wait()
	return results
}

func (b *Broadcaster) send(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	sig, err := signBody(b.identityKey, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	return out.String(), nil
}

// signBody produces the "address:signature" header relays use to verify
// the sending identity, independent of whatever key signs the bundle's
// transactions.
func signBody(identityKey *ecdsa.PrivateKey, body []byte) (string, error) {
	hash := crypto.Keccak256Hash([]byte(hexutil.Encode(crypto.Keccak256(body))))
	sig, err := crypto.Sign(hash.Bytes(), identityKey)
	if err != nil {
		return "", err
	}
	addr := crypto.PubkeyToAddress(identityKey.PublicKey)
	return fmt.Sprintf("%s:0x%s", addr.Hex(), hex.EncodeToString(sig)), nil
}
