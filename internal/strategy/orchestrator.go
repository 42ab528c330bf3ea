// Package strategy wires the registries, classifier, simulator, bundle
// builder and relay broadcaster together into the engine's main decision
// loop: for every pending transaction that clears the gas-price gate and
// decodes into a swap, simulate a sandwich, optimize its amount-in, and —
// if it clears the profit floor — build, sign and broadcast a bundle.
package strategy

import (
	"context"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/rawblock/sandoo-engine/internal/abicodec"
	"github.com/rawblock/sandoo-engine/internal/alert"
	"github.com/rawblock/sandoo-engine/internal/bundle"
	"github.com/rawblock/sandoo-engine/internal/classifier"
	"github.com/rawblock/sandoo-engine/internal/db"
	"github.com/rawblock/sandoo-engine/internal/evmsim"
	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/internal/sandwich"
	"github.com/rawblock/sandoo-engine/internal/shadow"
	"github.com/rawblock/sandoo-engine/internal/stream"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// Mode selects which bundle shape the orchestrator builds when a
// sandwich clears the profit floor.
type Mode string

const (
	ModeClassical Mode = "classical"
	ModeFlashloan Mode = "flashloan"
)

const (
	// pendingTxPruneBlocks matches the original engine's primary cleanup:
	// a pending tx is dropped once the head is more than this many blocks
	// past the block it was first seen in.
	pendingTxPruneBlocks = 3

	// pendingTxFlushBlocks is the secondary, coarser safety-net sweep,
	// applied on every block and after every pending tx that is tracked:
	// a pending tx is dropped once the head is more than this many blocks
	// past the block it was first seen in.
	pendingTxFlushBlocks = 5

	recentBundleCap = 30
)

// Config carries every dependency the orchestrator needs. Optional
// dependencies (DB, Alerts, Backtest) may be nil; the orchestrator
// degrades to "skip that side effect" rather than failing.
type Config struct {
	Client      *ethclient.Client
	Pools       *registry.PoolRegistry
	Tokens      *registry.TokenRegistry
	Classifier  *classifier.Extractor
	Builder     *bundle.Builder
	Broadcaster *bundle.Broadcaster
	Alerts      *alert.Manager
	DB          *db.PostgresStore
	Backtest    *shadow.BacktestRunner

	Owner          common.Address
	BotAddress     common.Address
	BotBytecode    []byte
	FlashloanAsset common.Address
	Mode           Mode

	// MaxAmountInWei caps the frontrun amount-in the optimizer is
	// allowed to sweep up to, regardless of main currency — the
	// original's own ceiling-computation helper was not available to
	// ground this on, so a configured cap stands in its place.
	MaxAmountInWei *big.Int

	// PriorityFeeWei is the backrun's bribe-derived priority fee; the
	// frontrun always pays zero priority fee per bundle.Builder.
	PriorityFeeWei *big.Int
}

type trackedBundle struct {
	id          string
	targetBlock uint64
	predicted   *big.Int
	included    bool
	batch       *models.BatchSandwich
	opts        sandwich.Options
}

// Orchestrator runs the main Block/PendingTx event loop.
type Orchestrator struct {
	cfg Config

	mu            sync.Mutex
	pendingTxs    map[common.Hash]*models.PendingTxInfo
	recentBundles []string
	pairScores    map[common.Address]models.PairScore
	tracked       []trackedBundle
	currentBlock  models.NewBlock

	// reserves is the live reserves cache kept current by
	// StreamReserveSync — unlike the original's task-local Sync
	// subscription, this is a field any part of the orchestrator can
	// read through GetReserves.
	reserves map[common.Address]models.Reserves
}

// New builds an Orchestrator from its dependencies. Caller is
// responsible for subscribing it to a stream.Bus via Run.
func New(cfg Config) *Orchestrator {
	if cfg.MaxAmountInWei == nil {
		cfg.MaxAmountInWei = new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000_000_000_000))
	}
	if cfg.PriorityFeeWei == nil {
		cfg.PriorityFeeWei = big.NewInt(2_000_000_000) // 2 gwei
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeClassical
	}
	return &Orchestrator{
		cfg:        cfg,
		pendingTxs: make(map[common.Hash]*models.PendingTxInfo),
		pairScores: make(map[common.Address]models.PairScore),
		reserves:   make(map[common.Address]models.Reserves),
	}
}

// Run consumes Block/PendingTx events from bus until ctx is cancelled or
// the bus closes its subscription channel.
func (o *Orchestrator) Run(ctx context.Context, bus *stream.Bus) error {
	if ranked := sandwich.RecommendedPairs(o.cfg.Pools, o.cfg.Tokens, 0, 25); len(ranked) > 0 {
		log.Printf("[strategy] %d candidate pairs ranked at startup", len(ranked))
	}

	if o.cfg.Client != nil {
		go func() {
			if err := o.StreamReserveSync(ctx, o.cfg.Client); err != nil && ctx.Err() == nil {
				log.Printf("[strategy] reserve sync subscription ended: %v", err)
			}
		}()
	}

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case stream.KindBlock:
				o.handleBlock(ctx, ev.Block)
			case stream.KindPendingTx:
				o.handlePendingTx(ctx, ev.PendingTx)
			}
		}
	}
}

// handleBlock advances the orchestrator's view of the chain head, prunes
// stale pending transactions, and settles any bundle whose target block
// has now landed.
func (o *Orchestrator) handleBlock(ctx context.Context, blk models.NewBlock) {
	o.mu.Lock()
	o.currentBlock = blk
	for hash, info := range o.pendingTxs {
		if blk.BlockNumber > info.AddedBlock+pendingTxPruneBlocks {
			delete(o.pendingTxs, hash)
		}
	}
	o.flushStaleLocked(blk.BlockNumber)

	var settling []trackedBundle
	remaining := o.tracked[:0]
	for _, tb := range o.tracked {
		if blk.BlockNumber > tb.targetBlock {
			settling = append(settling, tb)
		} else {
			remaining = append(remaining, tb)
		}
	}
	o.tracked = remaining
	o.mu.Unlock()

	for _, tb := range settling {
		o.settleBundle(ctx, tb)
	}

	log.Printf("[strategy] block #%d: %d pending txs tracked", blk.BlockNumber, len(o.pendingTxs))
}

// flushStaleLocked applies the coarser safety-net cutoff; caller must
// hold o.mu.
func (o *Orchestrator) flushStaleLocked(blockNumber uint64) {
	var cutoff uint64
	if blockNumber > pendingTxFlushBlocks {
		cutoff = blockNumber - pendingTxFlushBlocks
	}
	for hash, info := range o.pendingTxs {
		if info.AddedBlock < cutoff {
			delete(o.pendingTxs, hash)
		}
	}
}

// handlePendingTx gas-price-gates the transaction, classifies it into
// swaps, and attempts a sandwich for each swap found. There is no
// force_check-style bypass of the gas gate: a transaction that cannot
// clear the next block's base fee is never worth sandwiching and is
// dropped before classification runs.
func (o *Orchestrator) handlePendingTx(ctx context.Context, tx models.VictimTx) {
	o.mu.Lock()
	baseFee := o.currentBlock.BaseFee
	blockNumber := o.currentBlock.BlockNumber
	o.mu.Unlock()

	if baseFee == nil || tx.GasPrice == nil || tx.GasPrice.Cmp(baseFee) < 0 {
		return
	}

	swaps := o.cfg.Classifier.Extract(ctx, tx)
	if len(swaps) == 0 {
		return
	}

	info := &models.PendingTxInfo{Tx: tx, AddedBlock: blockNumber, TouchedPairs: swaps}
	o.mu.Lock()
	o.pendingTxs[tx.Hash] = info
	o.flushStaleLocked(blockNumber)
	o.mu.Unlock()

	for _, sw := range swaps {
		o.attemptSandwich(ctx, sw, tx)
	}
}

// attemptSandwich forks state at the current head, optimizes the
// amount-in for one swap, and — if profitable — builds and broadcasts a
// bundle against it.
func (o *Orchestrator) attemptSandwich(ctx context.Context, sw models.SwapInfo, victim models.VictimTx) {
	o.mu.Lock()
	blk := o.currentBlock
	o.mu.Unlock()
	if blk.BaseFee == nil || blk.NextBaseFee == nil {
		return
	}

	base := evmsim.New(ctx, o.cfg.Client, o.cfg.Owner, blk.BlockNumber)
	opts := sandwich.Options{
		Owner:       o.cfg.Owner,
		BotAddress:  o.cfg.BotAddress,
		BotBytecode: o.cfg.BotBytecode,
		BaseFee:     blk.BaseFee,
		MaxFee:      blk.NextBaseFee,
	}

	result, err := sandwich.Optimize(base, o.cfg.Tokens, sw, victim, o.cfg.MaxAmountInWei, opts)
	if err != nil {
		log.Printf("[strategy] optimize error for pair %s: %v", sw.TargetPair, err)
		return
	}
	if result.AmountIn.Sign() == 0 {
		return
	}

	flashloanAsset := common.Address{}
	if o.cfg.Mode == ModeFlashloan {
		flashloanAsset = o.cfg.FlashloanAsset
	}
	batch := models.NewBatchSandwich(flashloanAsset)
	batch.Add(models.Sandwich{AmountIn: result.AmountIn, SwapInfo: sw, VictimTx: victim, Optimized: &result})

	sim := models.SimulatedSandwich{
		Revenue:         result.MaxRevenue,
		Profit:          result.MaxRevenue,
		GasCost:         big.NewInt(0),
		FrontGasUsed:    result.FrontGasUsed,
		BackGasUsed:     result.BackGasUsed,
		FrontAccessList: result.FrontAccessList,
		BackAccessList:  result.BackAccessList,
		FrontCalldata:   result.FrontCalldata,
		BackCalldata:    result.BackCalldata,
	}

	nonce, err := o.cfg.Client.PendingNonceAt(ctx, o.cfg.Owner)
	if err != nil {
		log.Printf("[strategy] read nonce: %v", err)
		return
	}

	targetBlock := blk.BlockNumber + 1
	maxFeePerGas := new(big.Int).Add(blk.NextBaseFee, o.cfg.PriorityFeeWei)

	var relayResponses map[string]string
	var mode string
	switch o.cfg.Mode {
	case ModeFlashloan:
		mode = string(ModeFlashloan)
		_, frontEntries, err := abicodec.DecodeTrades(sim.FrontCalldata)
		if err != nil {
			log.Printf("[strategy] decode frontrun trades: %v", err)
			return
		}
		_, backEntries, err := abicodec.DecodeTrades(sim.BackCalldata)
		if err != nil {
			log.Printf("[strategy] decode backrun trades: %v", err)
			return
		}
		fb, err := o.cfg.Builder.BuildFlashloan(ctx, &o.cfg.FlashloanAsset, frontEntries, backEntries,
			batch.VictimTxs(), nonce, blk.BaseFee, o.cfg.PriorityFeeWei, maxFeePerGas)
		if err != nil {
			log.Printf("[strategy] build flashloan bundle: %v", err)
			return
		}
		relayResponses = o.cfg.Broadcaster.BroadcastFlashloan(ctx, fb, targetBlock)
	default:
		mode = string(ModeClassical)
		cb, err := o.cfg.Builder.BuildClassical(ctx, sim, batch.VictimTxs(), nonce, blk.BaseFee, o.cfg.PriorityFeeWei, maxFeePerGas)
		if err != nil {
			log.Printf("[strategy] build classical bundle: %v", err)
			return
		}
		relayResponses = o.cfg.Broadcaster.BroadcastClassical(ctx, cb, targetBlock)
	}

	bundleID := uuid.NewString()
	o.recordBundle(ctx, bundleID, targetBlock, mode, result.MaxRevenue, relayResponses, batch, opts, victim.Hash)
}

// recordBundle fans the outcome of a submitted bundle out to every
// side-effect: audit persistence, dashboard alert, pair score, recent-id
// FIFO, and shadow-replay tracking for once the target block lands.
func (o *Orchestrator) recordBundle(ctx context.Context, bundleID string, targetBlock uint64, mode string,
	predictedRevenue *big.Int, relayResponses map[string]string, batch *models.BatchSandwich, opts sandwich.Options, victimHash common.Hash) {

	included := anyRelayAccepted(relayResponses)

	o.mu.Lock()
	o.recentBundles = append(o.recentBundles, bundleID)
	if len(o.recentBundles) > recentBundleCap {
		o.recentBundles = o.recentBundles[len(o.recentBundles)-recentBundleCap:]
	}
	o.tracked = append(o.tracked, trackedBundle{
		id: bundleID, targetBlock: targetBlock, predicted: predictedRevenue,
		included: included, batch: batch, opts: opts,
	})

	pool := batch.Sandwiches[0].SwapInfo.TargetPair
	existing := o.pairScores[pool]
	updated := sandwich.ScoreFromSwap(existing, pool, models.OptimizedSandwich{MaxRevenue: predictedRevenue})
	o.pairScores[pool] = updated
	o.mu.Unlock()

	if o.cfg.DB != nil {
		rec := models.BundleAuditRecord{
			ID: bundleID, BlockNumber: targetBlock, VictimTxHashes: []common.Hash{victimHash},
			Mode: mode, PredictedRevenue: predictedRevenue, GasCost: big.NewInt(0),
			RelayResponses: relayResponses,
		}
		if err := o.cfg.DB.SaveBundleAudit(ctx, rec); err != nil {
			log.Printf("[strategy] persist bundle audit: %v", err)
		}
		if err := o.cfg.DB.UpsertPairScore(ctx, updated); err != nil {
			log.Printf("[strategy] persist pair score: %v", err)
		}
	}

	if o.cfg.Alerts != nil {
		o.cfg.Alerts.Emit(alert.BundleSent(bundleID, victimHash, predictedRevenue))
	}

	log.Printf("[strategy] bundle %s (%s) targeting block %d, predicted revenue %s wei, %d relay responses",
		bundleID, mode, targetBlock, predictedRevenue, len(relayResponses))
}

// settleBundle re-simulates a landed bundle's sandwich against the now-
// final block and feeds the prediction/outcome pair into the backtest
// runner.
func (o *Orchestrator) settleBundle(ctx context.Context, tb trackedBundle) {
	if o.cfg.Backtest == nil {
		return
	}

	realized := big.NewInt(0)
	landed := evmsim.New(ctx, o.cfg.Client, o.cfg.Owner, tb.targetBlock)
	settled, err := sandwich.Simulate(landed, o.cfg.Tokens, tb.batch, tb.opts)
	if err == nil {
		realized = settled.Revenue
	}

	if _, err := o.cfg.Backtest.Compare(ctx, tb.id, tb.predicted, realized, tb.included); err != nil {
		log.Printf("[strategy] shadow compare for bundle %s: %v", tb.id, err)
	}
}

// anyRelayAccepted reports whether at least one relay responded without
// an error string — confirming actual block inclusion would require
// tracing the landed block's transaction list, which this engine does
// not do; this is a best-effort stand-in used only to label a tracked
// bundle for the shadow-replay comparison.
func anyRelayAccepted(responses map[string]string) bool {
	for _, resp := range responses {
		if resp != "" && !strings.Contains(strings.ToLower(resp), "error") {
			return true
		}
	}
	return false
}
