// Package evmsim is the forked-EVM simulator: a snapshot/restore state
// database backed by an RPC node, wired into go-ethereum's core/vm to run
// the frontrun/victim/backrun sequence entirely off-chain.
package evmsim

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
)

// remoteAccount is the overlay state kept per touched address: anything
// set here shadows what RemoteStateDB would otherwise fetch from the node.
type remoteAccount struct {
	balance     *uint256.Int
	nonce       uint64
	code        []byte
	codeHash    common.Hash
	storage     map[common.Hash]common.Hash
	destructed  bool
	created     bool
}

func newRemoteAccount() *remoteAccount {
	return &remoteAccount{storage: make(map[common.Hash]common.Hash)}
}

func (a *remoteAccount) clone() *remoteAccount {
	clone := &remoteAccount{
		nonce:      a.nonce,
		code:       a.code,
		codeHash:   a.codeHash,
		destructed: a.destructed,
		created:    a.created,
		storage:    make(map[common.Hash]common.Hash, len(a.storage)),
	}
	if a.balance != nil {
		clone.balance = new(uint256.Int).Set(a.balance)
	}
	for k, v := range a.storage {
		clone.storage[k] = v
	}
	return clone
}

// RemoteStateDB is a copy-on-write overlay over a node's state at a fixed
// block: reads fall through to the RPC node on a cache miss, writes never
// touch the node. Clone() gives the simulator its snapshot semantics (a
// snapshot is a clone kept aside and swapped back in) — cheap because
// only touched accounts are ever copied.
type RemoteStateDB struct {
	mu          sync.Mutex
	client      *ethclient.Client
	blockNumber *big.Int
	ctx         context.Context

	accounts map[common.Address]*remoteAccount
	refund   uint64
	logs     []*types.Log

	accessListAddrs map[common.Address]struct{}
	accessListSlots map[common.Address]map[common.Hash]struct{}

	journal []journalEntry
}

type journalEntry func(db *RemoteStateDB)

// NewRemoteStateDB forks state at blockNumber: every read that isn't
// already overlaid is fetched from client as of that block.
func NewRemoteStateDB(ctx context.Context, client *ethclient.Client, blockNumber *big.Int) *RemoteStateDB {
	return &RemoteStateDB{
		ctx:             ctx,
		client:          client,
		blockNumber:     blockNumber,
		accounts:        make(map[common.Address]*remoteAccount),
		accessListAddrs: make(map[common.Address]struct{}),
		accessListSlots: make(map[common.Address]map[common.Hash]struct{}),
	}
}

// Clone returns a deep copy of the overlay suitable for an independent
// what-if branch (the optimizer's parallel amount-in sweeps each take
// their own clone rather than sharing mutable state).
func (db *RemoteStateDB) Clone() *RemoteStateDB {
	db.mu.Lock()
	defer db.mu.Unlock()

	clone := NewRemoteStateDB(db.ctx, db.client, db.blockNumber)
	for addr, acc := range db.accounts {
		clone.accounts[addr] = acc.clone()
	}
	return clone
}

func (db *RemoteStateDB) account(addr common.Address) *remoteAccount {
	acc, ok := db.accounts[addr]
	if !ok {
		acc = newRemoteAccount()
		db.accounts[addr] = acc
	}
	return acc
}

func (db *RemoteStateDB) fetchBalance(addr common.Address) *uint256.Int {
	bal, err := db.client.BalanceAt(db.ctx, addr, db.blockNumber)
	if err != nil || bal == nil {
		return uint256.NewInt(0)
	}
	v, _ := uint256.FromBig(bal)
	return v
}

func (db *RemoteStateDB) fetchNonce(addr common.Address) uint64 {
	n, err := db.client.NonceAt(db.ctx, addr, db.blockNumber)
	if err != nil {
		return 0
	}
	return n
}

func (db *RemoteStateDB) fetchCode(addr common.Address) []byte {
	code, err := db.client.CodeAt(db.ctx, addr, db.blockNumber)
	if err != nil {
		return nil
	}
	return code
}

func (db *RemoteStateDB) fetchStorage(addr common.Address, slot common.Hash) common.Hash {
	val, err := db.client.StorageAt(db.ctx, addr, slot, db.blockNumber)
	if err != nil {
		return common.Hash{}
	}
	return common.BytesToHash(val)
}

// GetBalance returns addr's balance, falling through to the node if the
// account has never been touched in this overlay.
func (db *RemoteStateDB) GetBalance(addr common.Address) *uint256.Int {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc, ok := db.accounts[addr]
	if !ok || acc.balance == nil {
		bal := db.fetchBalance(addr)
		db.account(addr).balance = bal
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int).Set(acc.balance)
}

// SetBalance overwrites addr's balance in the overlay without touching
// the node — used for the synthetic funding steps the simulator performs
// before encoding the frontrun call (crediting the bot's owner 100 native
// units, seeding the bot's main-currency balance per entry amount).
func (db *RemoteStateDB) SetBalance(addr common.Address, amount *uint256.Int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.account(addr).balance = new(uint256.Int).Set(amount)
}

// GetNonce, SetNonce mirror GetBalance/SetBalance for the account nonce.
func (db *RemoteStateDB) GetNonce(addr common.Address) uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc, ok := db.accounts[addr]
	if !ok {
		n := db.fetchNonce(addr)
		db.account(addr).nonce = n
		return n
	}
	return acc.nonce
}

func (db *RemoteStateDB) SetNonce(addr common.Address, nonce uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.account(addr).nonce = nonce
}

// GetCode returns addr's runtime bytecode.
func (db *RemoteStateDB) GetCode(addr common.Address) []byte {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc, ok := db.accounts[addr]
	if !ok || (acc.code == nil && !acc.created) {
		code := db.fetchCode(addr)
		db.account(addr).code = code
		return code
	}
	return acc.code
}

// SetCode deploys bytecode at addr directly into the overlay — how the
// bot contract gets installed before simulation without a real deploy tx.
func (db *RemoteStateDB) SetCode(addr common.Address, code []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc := db.account(addr)
	acc.code = code
	acc.created = true
	acc.codeHash = common.BytesToHash(code)
}

// GetState reads a storage slot, falling through to the node on miss.
func (db *RemoteStateDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc := db.account(addr)
	if v, ok := acc.storage[slot]; ok {
		return v
	}
	v := db.fetchStorage(addr, slot)
	acc.storage[slot] = v
	return v
}

// SetState overwrites a storage slot in the overlay — used both by live
// execution and by the ERC-20 storage-trick balance override.
func (db *RemoteStateDB) SetState(addr common.Address, slot, value common.Hash) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.account(addr).storage[slot] = value
}

// TouchedStorage returns every storage slot this overlay has read or
// written for addr, used by GetBalanceSlot's brute-force probe.
func (db *RemoteStateDB) TouchedStorage(addr common.Address) map[common.Hash]common.Hash {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc, ok := db.accounts[addr]
	if !ok {
		return nil
	}
	out := make(map[common.Hash]common.Hash, len(acc.storage))
	for k, v := range acc.storage {
		out[k] = v
	}
	return out
}

// AddRefund/SubRefund/Refund track gas refund accounting across a call.
func (db *RemoteStateDB) AddRefund(gas uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.refund += gas
}

func (db *RemoteStateDB) SubRefund(gas uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if gas > db.refund {
		db.refund = 0
		return
	}
	db.refund -= gas
}

func (db *RemoteStateDB) Refund() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.refund
}

// AddLog records an emitted event for the caller to inspect after a call.
func (db *RemoteStateDB) AddLog(l *types.Log) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.logs = append(db.logs, l)
}

// Logs drains and returns every log recorded since the last call.
func (db *RemoteStateDB) Logs() []*types.Log {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := db.logs
	db.logs = nil
	return out
}
