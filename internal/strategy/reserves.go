package strategy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

// syncEventSig is the topic0 of Uniswap v2's Sync(uint112,uint112), the
// event every pair emits on every reserve-changing swap/mint/burn.
var syncEventSig = common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")

// GetReserves reads the orchestrator's live reserves cache, populated by
// StreamReserveSync. This is the one genuinely shared registry the
// strategy layer keeps: unlike the original engine's task-local Sync
// subscription (never exposed outside the task that built it), this
// cache is a mutex-guarded field any part of the orchestrator can read.
func (o *Orchestrator) GetReserves(pool common.Address) (models.Reserves, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.reserves[pool]
	return r, ok
}

func (o *Orchestrator) updateReserves(pool common.Address, r models.Reserves) {
	o.mu.Lock()
	o.reserves[pool] = r
	o.mu.Unlock()
}

// StreamReserveSync subscribes to Sync events from every pool the
// registry currently knows about and keeps the live reserves cache
// current as they fire. It runs until ctx is cancelled or the
// subscription errors.
func (o *Orchestrator) StreamReserveSync(ctx context.Context, client *ethclient.Client) error {
	pools := o.cfg.Pools.All()
	if len(pools) == 0 {
		return nil
	}
	addrs := make([]common.Address, len(pools))
	for i, p := range pools {
		addrs[i] = p.Address
	}

	query := ethereum.FilterQuery{
		Addresses: addrs,
		Topics:    [][]common.Hash{{syncEventSig}},
	}

	logs := make(chan types.Log, 256)
	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			if len(lg.Data) < 64 {
				continue
			}
			reserve0 := new(big.Int).SetBytes(lg.Data[0:32])
			reserve1 := new(big.Int).SetBytes(lg.Data[32:64])
			o.updateReserves(lg.Address, models.Reserves{Reserve0: reserve0, Reserve1: reserve1})
		}
	}
}
