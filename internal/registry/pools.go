package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math/big"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

const (
	poolCacheDir  = "cache"
	poolCacheFile = "cache/.cached-pools.csv"

	// DefaultScanChunk is the default number of blocks scanned per
	// eth_getLogs call when discovering new pools.
	DefaultScanChunk = 50_000

	poolCSVFeePPM = 3000
)

var poolCSVHeader = []string{"id", "address", "version", "token0", "token1", "fee", "block_number", "timestamp"}

// pairCreatedSig is the topic0 of Uniswap v2 factory's
// PairCreated(address,address,address,uint256).
var pairCreatedSig = common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")

// poolCreatedSig is the topic0 of Uniswap v3 factory's
// PoolCreated(address,address,uint24,int24,address).
var poolCreatedSig = common.HexToHash("0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118")

// PoolRegistry holds the process-wide pool set, backed by an append-only
// CSV cache keyed by a monotonic id. Many readers, one writer: reads take
// the RWMutex's read lock, the discovery scan takes the write lock once
// per run to append newly-found pools.
type PoolRegistry struct {
	mu        sync.RWMutex
	byAddress map[common.Address]models.Pool
	nextID    int64
}

// NewPoolRegistry loads the CSV cache from disk, if present, and returns a
// registry ready for ScanForNewPools to bring it up to the chain head.
func NewPoolRegistry() (*PoolRegistry, error) {
	r := &PoolRegistry{
		byAddress: make(map[common.Address]models.Pool),
		nextID:    0,
	}
	if err := r.loadCache(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PoolRegistry) loadCache() error {
	f, err := os.Open(poolCacheFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: open pool cache: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("registry: read pool cache: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	maxID := int64(-1)
	for _, row := range rows[1:] { // skip header
		pool, err := models.PoolFromCSVRow(row)
		if err != nil {
			log.Printf("registry: skipping malformed pool cache row: %v", err)
			continue
		}
		r.byAddress[pool.Address] = pool
		if pool.ID > maxID {
			maxID = pool.ID
		}
	}
	r.nextID = maxID + 1
	return nil
}

// LastCreationBlock returns the highest creation block among cached pools,
// or fromBlock if the cache is empty, so the scan resumes where it left off.
func (r *PoolRegistry) LastCreationBlock(fromBlock uint64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max uint64
	found := false
	for _, p := range r.byAddress {
		if !found || p.CreationBlock > max {
			max = p.CreationBlock
			found = true
		}
	}
	if !found {
		return fromBlock
	}
	return max + 1
}

// Get returns the pool at addr, if known.
func (r *PoolRegistry) Get(addr common.Address) (models.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byAddress[addr]
	return p, ok
}

// All returns a snapshot of every known pool.
func (r *PoolRegistry) All() []models.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Pool, 0, len(r.byAddress))
	for _, p := range r.byAddress {
		out = append(out, p)
	}
	return out
}

// ScanForNewPools discovers PairCreated events from fromBlock through the
// current head in chunks, assigns monotonic ids to anything new, appends
// them to the CSV cache, and merges them into the in-memory registry.
func (r *PoolRegistry) ScanForNewPools(ctx context.Context, client *ethclient.Client, fromBlock uint64, chunk uint64) (int, error) {
	if chunk == 0 {
		chunk = DefaultScanChunk
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("registry: get head block: %w", err)
	}
	if fromBlock > head {
		return 0, nil
	}

	var discovered []models.Pool
	blockTimestamps := make(map[uint64]time.Time)

	for start := fromBlock; start <= head; start += chunk {
		end := start + chunk - 1
		if end > head {
			end = head
		}
		found, err := r.scanV2Range(ctx, client, start, end, blockTimestamps)
		if err != nil {
			log.Printf("registry: pool scan [%d,%d] failed: %v", start, end, err)
			continue
		}
		discovered = append(discovered, found...)
	}

	sort.Slice(discovered, func(i, j int) bool { return discovered[i].CreationBlock < discovered[j].CreationBlock })

	r.mu.Lock()
	added := make([]models.Pool, 0, len(discovered))
	for _, p := range discovered {
		if _, exists := r.byAddress[p.Address]; exists {
			continue
		}
		p.ID = r.nextID
		r.nextID++
		r.byAddress[p.Address] = p
		added = append(added, p)
	}
	r.mu.Unlock()

	if len(added) > 0 {
		if err := r.appendCache(added); err != nil {
			log.Printf("registry: failed to persist %d new pools: %v", len(added), err)
		}
	}
	return len(added), nil
}

func (r *PoolRegistry) scanV2Range(ctx context.Context, client *ethclient.Client, from, to uint64, blockTimestamps map[uint64]time.Time) ([]models.Pool, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Topics:    [][]common.Hash{{pairCreatedSig}},
	}
	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	pools := make([]models.Pool, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}
		token0 := common.BytesToAddress(lg.Topics[1].Bytes())
		token1 := common.BytesToAddress(lg.Topics[2].Bytes())
		pairAddr, ok := decodeAddressFromData(lg.Data)
		if !ok {
			continue
		}

		ts, ok := blockTimestamps[lg.BlockNumber]
		if !ok {
			header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
			if err != nil {
				log.Printf("registry: failed to fetch block %d timestamp: %v", lg.BlockNumber, err)
				continue
			}
			ts = time.Unix(int64(header.Time), 0).UTC()
			blockTimestamps[lg.BlockNumber] = ts
		}

		pools = append(pools, models.Pool{
			ID:            -1,
			Address:       pairAddr,
			Variant:       models.UniswapV2,
			Token0:        token0,
			Token1:        token1,
			FeePPM:        poolCSVFeePPM,
			CreationBlock: lg.BlockNumber,
			CreationTime:  ts,
		})
	}
	return pools, nil
}

// decodeAddressFromData extracts the 32-byte-padded address ABI-encoded
// in a PairCreated log's data field (the "pair" parameter).
func decodeAddressFromData(data []byte) (common.Address, bool) {
	if len(data) < 32 {
		return common.Address{}, false
	}
	return common.BytesToAddress(data[12:32]), true
}

func (r *PoolRegistry) appendCache(pools []models.Pool) error {
	if err := os.MkdirAll(poolCacheDir, 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(poolCacheFile)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(poolCacheFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(poolCSVHeader); err != nil {
			return err
		}
	}
	for _, p := range pools {
		if err := w.Write(p.CSVRow()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
