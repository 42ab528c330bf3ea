package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

const tokenCacheFile = "cache/token_registry.json"

// selectors for the three static calls fetch() tolerates failures on.
var (
	selectorName     = crypto.Keccak256([]byte("name()"))[:4]
	selectorSymbol   = crypto.Keccak256([]byte("symbol()"))[:4]
	selectorDecimals = crypto.Keccak256([]byte("decimals()"))[:4]
)

var selectorLatestRoundData = crypto.Keccak256([]byte("latestRoundData()"))[:4]

// TokenRegistry is the process-wide token metadata store: 7 main
// currencies seeded at startup, everything else fetched lazily on miss.
// Reads take the read lock; mutation (register, price update) takes the
// write lock. Price refresh is periodic and must never block the hot
// classifier/simulator path — callers run it on its own ticker.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[common.Address]models.TokenMetadata

	fetchGroup singleflight.Group
}

// NewTokenRegistry seeds the 7 main currencies and loads the JSON cache
// on top of them, then persists the merged result so a fresh deployment
// gets a cache file on its very first run.
func NewTokenRegistry() *TokenRegistry {
	r := &TokenRegistry{tokens: make(map[common.Address]models.TokenMetadata)}
	for _, t := range SeedMainCurrencies() {
		r.tokens[t.Address] = t
	}
	if err := r.loadCache(); err != nil {
		log.Printf("registry: failed to load token cache, continuing with defaults: %v", err)
	}
	if err := r.saveCache(); err != nil {
		log.Printf("registry: failed to write initial token cache: %v", err)
	}
	return r
}

func (r *TokenRegistry) loadCache() error {
	data, err := os.ReadFile(tokenCacheFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var cached []models.TokenMetadata
	if err := json.Unmarshal(data, &cached); err != nil {
		return fmt.Errorf("decode token cache: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range cached {
		r.tokens[t.Address] = t
	}
	return nil
}

func (r *TokenRegistry) saveCache() error {
	r.mu.RLock()
	snapshot := make([]models.TokenMetadata, 0, len(r.tokens))
	for _, t := range r.tokens {
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(tokenCacheFile), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenCacheFile, data, 0o644)
}

// Get returns the cached metadata for addr, if known.
func (r *TokenRegistry) Get(addr common.Address) (models.TokenMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	return t, ok
}

// MainCurrencies returns every token flagged as a main currency.
func (r *TokenRegistry) MainCurrencies() []models.TokenMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TokenMetadata, 0, 8)
	for _, t := range r.tokens {
		if t.IsMainCurrency {
			out = append(out, t)
		}
	}
	return out
}

// Register inserts or overwrites addr's metadata.
func (r *TokenRegistry) Register(t models.TokenMetadata) {
	r.mu.Lock()
	r.tokens[t.Address] = t
	r.mu.Unlock()
}

// UpdatePrice sets the cached USD price for addr, if already registered.
func (r *TokenRegistry) UpdatePrice(addr common.Address, usd float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[addr]
	if !ok {
		return fmt.Errorf("registry: token %s not registered", addr)
	}
	t.USDPrice = usd
	r.tokens[addr] = t
	return nil
}

// Fetch returns cached metadata for addr, or fetches name()/symbol()/
// decimals() on chain, tolerating decode failures per token (boundary
// behavior: non-conforming bytecode falls back to the Unknown/UNK/18
// placeholder). Concurrent fetches for the same address are collapsed
// into one RPC round trip via singleflight.
func (r *TokenRegistry) Fetch(ctx context.Context, client *ethclient.Client, addr common.Address) (models.TokenMetadata, error) {
	if t, ok := r.Get(addr); ok {
		return t, nil
	}

	result, err, _ := r.fetchGroup.Do(addr.Hex(), func() (interface{}, error) {
		return r.fetchFromChain(ctx, client, addr), nil
	})
	if err != nil {
		return models.TokenMetadata{}, err
	}
	t := result.(models.TokenMetadata)
	r.Register(t)
	return t, nil
}

func (r *TokenRegistry) fetchFromChain(ctx context.Context, client *ethclient.Client, addr common.Address) models.TokenMetadata {
	t := models.UnknownTokenPlaceholder(addr)

	if name, ok := callStringTolerant(ctx, client, addr, selectorName); ok {
		t.Name = name
	}
	if symbol, ok := callStringTolerant(ctx, client, addr, selectorSymbol); ok {
		t.Symbol = symbol
	}
	if decimals, ok := callUint8Tolerant(ctx, client, addr, selectorDecimals); ok {
		t.Decimals = decimals
	}
	return t
}

func callStringTolerant(ctx context.Context, client *ethclient.Client, addr common.Address, selector []byte) (string, bool) {
	out, err := callContract(ctx, client, addr, selector)
	if err != nil || len(out) == 0 {
		return "", false
	}
	s, ok := decodeABIString(out)
	return s, ok
}

func callUint8Tolerant(ctx context.Context, client *ethclient.Client, addr common.Address, selector []byte) (uint8, bool) {
	out, err := callContract(ctx, client, addr, selector)
	if err != nil || len(out) < 32 {
		return 0, false
	}
	v := new(big.Int).SetBytes(out[:32])
	return uint8(v.Uint64()), true
}

func callContract(ctx context.Context, client *ethclient.Client, addr common.Address, selector []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &addr, Data: selector}
	return client.CallContract(ctx, msg, nil)
}

// decodeABIString decodes a dynamic ABI string return value: a 32-byte
// offset (ignored, always 0x20 for a single return value), a 32-byte
// length, then the UTF-8 bytes padded to a 32-byte boundary.
func decodeABIString(out []byte) (string, bool) {
	if len(out) < 64 {
		return "", false
	}
	length := new(big.Int).SetBytes(out[32:64]).Uint64()
	start := uint64(64)
	end := start + length
	if end > uint64(len(out)) {
		return "", false
	}
	return string(out[start:end]), true
}

// UpdatePricesFromChainlink calls latestRoundData() on every token with a
// configured feed and caches the resulting USD price (8-decimal signed
// Chainlink answer). Best-effort: per-token failures are logged and
// skipped rather than aborting the whole refresh.
func (r *TokenRegistry) UpdatePricesFromChainlink(ctx context.Context, client *ethclient.Client) {
	r.mu.RLock()
	feeds := make(map[common.Address]common.Address, len(r.tokens))
	for addr, t := range r.tokens {
		if t.HasFeed {
			feeds[addr] = t.ChainlinkFeed
		}
	}
	r.mu.RUnlock()

	for addr, feed := range feeds {
		out, err := callContract(ctx, client, feed, selectorLatestRoundData)
		if err != nil || len(out) < 96 {
			log.Printf("registry: chainlink price fetch failed for %s: %v", addr, err)
			continue
		}
		answer := new(big.Int).SetBytes(out[32:64])
		priceUSD := new(big.Float).Quo(new(big.Float).SetInt(answer), big.NewFloat(1e8))
		f, _ := priceUSD.Float64()
		if err := r.UpdatePrice(addr, f); err != nil {
			log.Printf("registry: failed to cache price for %s: %v", addr, err)
		}
	}

	if err := r.saveCache(); err != nil {
		log.Printf("registry: failed to persist token cache after price update: %v", err)
	}
}
