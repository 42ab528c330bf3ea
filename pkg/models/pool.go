// Package models holds the shared data types passed between the registry,
// classifier, simulator, and strategy layers.
package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DexVariant tags which AMM math and reserve-reading path a pool uses.
type DexVariant string

const (
	UniswapV2 DexVariant = "v2"
	UniswapV3 DexVariant = "v3"
)

// Pool is immutable after discovery. token0/token1 order is fixed at
// creation and determines the ordering of on-chain reserves.
type Pool struct {
	ID               int64
	Address          common.Address
	Variant          DexVariant
	Token0           common.Address
	Token1           common.Address
	FeePPM           uint32 // parts-per-million; 3000 for V2
	CreationBlock    uint64
	CreationTime     time.Time
}

// CSVRow renders the pool in the cache/.cached-pools.csv column order:
// id,address,version,token0,token1,fee,block_number,timestamp
func (p Pool) CSVRow() []string {
	return []string{
		itoa64(p.ID),
		p.Address.Hex(),
		string(p.Variant),
		p.Token0.Hex(),
		p.Token1.Hex(),
		itoa64(int64(p.FeePPM)),
		itoa64(int64(p.CreationBlock)),
		itoa64(p.CreationTime.Unix()),
	}
}

// PoolFromCSVRow parses a row in the same column order CSVRow emits.
func PoolFromCSVRow(row []string) (Pool, error) {
	if len(row) != 8 {
		return Pool{}, errInvalidCSVRow
	}
	id, err := parseInt64(row[0])
	if err != nil {
		return Pool{}, err
	}
	fee, err := parseInt64(row[5])
	if err != nil {
		return Pool{}, err
	}
	block, err := parseInt64(row[6])
	if err != nil {
		return Pool{}, err
	}
	ts, err := parseInt64(row[7])
	if err != nil {
		return Pool{}, err
	}
	return Pool{
		ID:            id,
		Address:       common.HexToAddress(row[1]),
		Variant:       DexVariant(row[2]),
		Token0:        common.HexToAddress(row[3]),
		Token1:        common.HexToAddress(row[4]),
		FeePPM:        uint32(fee),
		CreationBlock: uint64(block),
		CreationTime:  time.Unix(ts, 0).UTC(),
	}, nil
}

// Reserves holds a pool's current token0/token1 reserve amounts, whether
// read directly (V2 getReserves) or synthesized (V3 sqrtPriceX96/liquidity).
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}
