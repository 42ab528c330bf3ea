// Package stream turns the two live Ethereum subscriptions the strategy
// loop depends on — new block headers and pending transactions — into one
// typed event feed, generalizing the teacher's websocket broadcast Hub from
// raw []byte payloads to a closed Event sum type.
package stream

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

// Kind distinguishes the two event shapes carried over the bus.
type Kind int

const (
	KindBlock Kind = iota
	KindPendingTx
)

// Event is the closed sum type the strategy loop selects on. Exactly one
// of Block/PendingTx is populated, per Kind.
type Event struct {
	Kind      Kind
	Block     models.NewBlock
	PendingTx models.VictimTx
}

// Bus fans Block and PendingTx events out to every subscriber, mirroring
// the teacher's Hub: a mutex-guarded subscriber set, each subscriber with
// its own buffered channel, so one slow subscriber can't stall the producers.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and an unsubscribe func. The
// channel is buffered so a momentarily slow consumer doesn't block the
// publisher; if it ever fills, the event is dropped for that subscriber
// rather than blocking the whole bus.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 2048)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("stream: subscriber channel full, dropping %v event", ev.Kind)
		}
	}
}

// StreamBlocks subscribes to new heads and publishes a Block event per
// head, computing the next block's base fee with the same EIP-1559
// formula plus a small random jitter the original engine adds to avoid
// being trivially front-run on its own base-fee guess.
func (b *Bus) StreamBlocks(ctx context.Context, client *ethclient.Client) error {
	headers := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, headers)
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
		case h := <-headers:
			baseFee := h.BaseFee
			if baseFee == nil {
				baseFee = big.NewInt(0)
			}
			next := nextBaseFee(h.GasUsed, h.GasLimit, baseFee)
			b.publish(Event{Kind: KindBlock, Block: models.NewBlock{
				BlockNumber: h.Number.Uint64(),
				BaseFee:     baseFee,
				NextBaseFee: next,
			}})
		}
	}
}

// nextBaseFee estimates the following block's base fee per EIP-1559,
// perturbed by a small non-deterministic jitter so the engine's own
// base-fee assumptions aren't a predictable function of the prior block.
func nextBaseFee(gasUsed, gasLimit uint64, baseFee *big.Int) *big.Int {
	target := gasLimit / 2
	if target == 0 {
		target = 1
	}

	next := new(big.Int).Set(baseFee)
	if gasUsed > target {
		delta := new(big.Int).Mul(baseFee, big.NewInt(int64(gasUsed-target)))
		delta.Div(delta, big.NewInt(int64(target)))
		delta.Div(delta, big.NewInt(8))
		next.Add(next, delta)
	} else {
		delta := new(big.Int).Mul(baseFee, big.NewInt(int64(target-gasUsed)))
		delta.Div(delta, big.NewInt(int64(target)))
		delta.Div(delta, big.NewInt(8))
		next.Sub(next, delta)
		if next.Sign() < 0 {
			next.SetInt64(0)
		}
	}

	jitter, err := rand.Int(rand.Reader, big.NewInt(9))
	if err == nil {
		next.Add(next, jitter)
	}
	return next
}

// StreamPendingTxs subscribes to the full pending-transaction feed and
// publishes a PendingTx event per transaction, decoding each into a
// VictimTx and capturing its original signed RLP so the bundle builder can
// forward it byte-for-byte later.
func (b *Bus) StreamPendingTxs(ctx context.Context, client *ethclient.Client) error {
	txs := make(chan *types.Transaction, 256)
	sub, err := client.SubscribeFullPendingTransactions(ctx, txs)
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
		case tx := <-txs:
			victim, err := toVictimTx(tx)
			if err != nil {
				log.Printf("stream: skipping pending tx %s: %v", tx.Hash(), err)
				continue
			}
			b.publish(Event{Kind: KindPendingTx, PendingTx: victim})
		}
	}
}

func toVictimTx(tx *types.Transaction) (models.VictimTx, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return models.VictimTx{}, err
	}

	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, tx)
	if err != nil {
		return models.VictimTx{}, err
	}

	to := common.Address{}
	if tx.To() != nil {
		to = *tx.To()
	}

	gasPrice := tx.GasPrice()
	if gasPrice == nil {
		gasPrice = tx.GasFeeCap()
	}

	return models.VictimTx{
		Hash:     tx.Hash(),
		From:     from,
		To:       to,
		Calldata: tx.Data(),
		Value:    tx.Value(),
		GasPrice: gasPrice,
		GasLimit: tx.Gas(),
		Raw:      raw,
	}, nil
}
