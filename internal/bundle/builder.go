// Package bundle assembles frontrun/victim/backrun sequences into signed
// transaction bundles — a classical three-transaction form sharing
// consecutive nonces, and a flash-loan form collapsed into a single
// transaction against the Aave v3-integrated bot contract — and fans them
// out to builder relays.
package bundle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/sandoo-engine/internal/abicodec"
	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

const (
	transferOutGasLimit  = 600_000
	frontrunGasLimitCap  = 500_000
	backrunGasLimitCap   = 500_000
	flashloanGasLimitCap = 900_000
)

// ClassicalBundle is the three-tx form: frontrun and backrun execute
// under the bot's owner key at consecutive nonces, sandwiching the
// victim transactions exactly as they arrived in the mempool.
type ClassicalBundle struct {
	FrontrunTx *types.Transaction
	VictimTxs  []*types.Transaction
	BackrunTx  *types.Transaction
}

// FlashloanBundle is the single-tx form: one call into the Aave
// v3-integrated bot contract that borrows, sandwiches, and repays
// atomically.
type FlashloanBundle struct {
	Tx        *types.Transaction
	VictimTxs []*types.Transaction
}

// Builder signs bundles under the bot owner's key. Chain ID is fixed at
// construction since this engine targets one chain per process.
type Builder struct {
	ownerKey   *ecdsa.PrivateKey
	owner      common.Address
	botAddress common.Address
	chainID    *big.Int
	client     *ethclient.Client
}

func NewBuilder(ownerKey *ecdsa.PrivateKey, botAddress common.Address, chainID *big.Int, client *ethclient.Client) *Builder {
	return &Builder{
		ownerKey:   ownerKey,
		owner:      crypto.PubkeyToAddress(ownerKey.PublicKey),
		botAddress: botAddress,
		chainID:    chainID,
		client:     client,
	}
}

func (b *Builder) sign(tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(b.chainID)
	return types.SignTx(tx, signer, b.ownerKey)
}

// BuildClassical constructs and signs the frontrun/backrun pair: the
// frontrun pays zero priority fee (it only needs to land ahead of the
// victim within the same block, not out-bid anyone), the backrun pays
// the bribe-derived priority fee that actually wins block inclusion.
func (b *Builder) BuildClassical(ctx context.Context, sim models.SimulatedSandwich, victims []models.VictimTx, nonce uint64, baseFee, backrunPriorityFee, maxFeePerGas *big.Int) (ClassicalBundle, error) {
	frontrunGas := sim.FrontGasUsed
	if frontrunGas == 0 || frontrunGas > frontrunGasLimitCap {
		frontrunGas = frontrunGasLimitCap
	}
	backrunGas := sim.BackGasUsed
	if backrunGas == 0 || backrunGas > backrunGasLimitCap {
		backrunGas = backrunGasLimitCap
	}

	frontrunTx, err := b.sign(types.NewTx(&types.DynamicFeeTx{
		ChainID:    b.chainID,
		Nonce:      nonce,
		GasTipCap:  big.NewInt(0),
		GasFeeCap:  baseFee,
		Gas:        frontrunGas,
		To:         &b.botAddress,
		Value:      big.NewInt(0),
		Data:       sim.FrontCalldata,
		AccessList: sim.FrontAccessList,
	}))
	if err != nil {
		return ClassicalBundle{}, fmt.Errorf("bundle: sign frontrun: %w", err)
	}

	backrunTx, err := b.sign(types.NewTx(&types.DynamicFeeTx{
		ChainID:    b.chainID,
		Nonce:      nonce + 1,
		GasTipCap:  backrunPriorityFee,
		GasFeeCap:  maxFeePerGas,
		Gas:        backrunGas,
		To:         &b.botAddress,
		Value:      big.NewInt(0),
		Data:       sim.BackCalldata,
		AccessList: sim.BackAccessList,
	}))
	if err != nil {
		return ClassicalBundle{}, fmt.Errorf("bundle: sign backrun: %w", err)
	}

	victimTxs, err := decodeVictimTxs(victims)
	if err != nil {
		return ClassicalBundle{}, err
	}

	return ClassicalBundle{FrontrunTx: frontrunTx, VictimTxs: victimTxs, BackrunTx: backrunTx}, nil
}

// CalculateFlashloanFee is the Aave v3 flash-loan fee (9 basis points) on
// the borrowed amount.
func CalculateFlashloanFee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(registry.FlashloanFeeBasisPoints))
	return fee.Div(fee, big.NewInt(registry.BasisPointsDivisor))
}

// BuildFlashloan constructs the single collapsed flash-loan transaction.
// blockNumber is fetched from the live chain rather than hardcoded, since
// the packed blob's leading uint64 is read by the bot contract as the
// block it expects to execute in.
func (b *Builder) BuildFlashloan(ctx context.Context, asset *common.Address, frontEntries, backEntries []abicodec.TradeEntry, victims []models.VictimTx, nonce uint64, baseFee, priorityFee, maxFeePerGas *big.Int) (FlashloanBundle, error) {
	blockNumber, err := b.client.BlockNumber(ctx)
	if err != nil {
		return FlashloanBundle{}, fmt.Errorf("bundle: read block number: %w", err)
	}

	// One blob: a single block-number header, then the frontrun entries
	// followed by the backrun entries.
	entries := append(append([]abicodec.TradeEntry{}, frontEntries...), backEntries...)
	data := abicodec.EncodeTrades(blockNumber+1, entries)

	tx, err := b.sign(types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.chainID,
		Nonce:     nonce,
		GasTipCap: priorityFee,
		GasFeeCap: maxFeePerGas,
		Gas:       flashloanGasLimitCap,
		To:        &b.botAddress,
		Value:     big.NewInt(0),
		Data:      data,
	}))
	if err != nil {
		return FlashloanBundle{}, fmt.Errorf("bundle: sign flashloan tx: %w", err)
	}

	victimTxs, err := decodeVictimTxs(victims)
	if err != nil {
		return FlashloanBundle{}, err
	}

	return FlashloanBundle{Tx: tx, VictimTxs: victimTxs}, nil
}

// decodeVictimTxs turns captured raw RLP back into *types.Transaction so
// the bundle's victim slots carry the exact bytes seen over the wire;
// a victim missing its raw capture is dropped rather than reconstructed,
// since any re-encoding would invalidate its signature.
func decodeVictimTxs(victims []models.VictimTx) ([]*types.Transaction, error) {
	out := make([]*types.Transaction, 0, len(victims))
	for _, v := range victims {
		if len(v.Raw) == 0 {
			continue
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(v.Raw); err != nil {
			return nil, fmt.Errorf("bundle: decode victim tx %s: %w", v.Hash, err)
		}
		out = append(out, tx)
	}
	return out, nil
}
