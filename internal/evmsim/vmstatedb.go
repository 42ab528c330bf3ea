package evmsim

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// vmAdapter exposes RemoteStateDB through the subset of go-ethereum's
// core/vm.StateDB surface the simulator's Call/StaticCall path drives:
// balance/nonce/code/storage access, refund accounting, logs, and
// snapshot/revert. Self-destruct and access-list bookkeeping are tracked
// but never observed by the domain operations this simulator runs
// (reserve reads, ERC-20 balance manipulation, bot-contract calls), so
// they're kept minimal rather than fully general.
type vmAdapter struct {
	db        *RemoteStateDB
	snapshots []*RemoteStateDB
}

func newVMAdapter(db *RemoteStateDB) *vmAdapter {
	return &vmAdapter{db: db}
}

func (a *vmAdapter) CreateAccount(addr common.Address) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.accounts[addr] = newRemoteAccount()
}

func (a *vmAdapter) SubBalance(addr common.Address, amount *uint256.Int) {
	cur := a.db.GetBalance(addr)
	cur.Sub(cur, amount)
	a.db.SetBalance(addr, cur)
}

func (a *vmAdapter) AddBalance(addr common.Address, amount *uint256.Int) {
	cur := a.db.GetBalance(addr)
	cur.Add(cur, amount)
	a.db.SetBalance(addr, cur)
}

func (a *vmAdapter) GetBalance(addr common.Address) *uint256.Int { return a.db.GetBalance(addr) }
func (a *vmAdapter) GetNonce(addr common.Address) uint64         { return a.db.GetNonce(addr) }
func (a *vmAdapter) SetNonce(addr common.Address, nonce uint64)  { a.db.SetNonce(addr, nonce) }

func (a *vmAdapter) GetCodeHash(addr common.Address) common.Hash {
	code := a.db.GetCode(addr)
	if len(code) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(code)
}

func (a *vmAdapter) GetCode(addr common.Address) []byte   { return a.db.GetCode(addr) }
func (a *vmAdapter) SetCode(addr common.Address, c []byte) { a.db.SetCode(addr, c) }
func (a *vmAdapter) GetCodeSize(addr common.Address) int   { return len(a.db.GetCode(addr)) }

func (a *vmAdapter) AddRefund(gas uint64)  { a.db.AddRefund(gas) }
func (a *vmAdapter) SubRefund(gas uint64)  { a.db.SubRefund(gas) }
func (a *vmAdapter) GetRefund() uint64     { return a.db.Refund() }

func (a *vmAdapter) GetCommittedState(addr common.Address, slot common.Hash) common.Hash {
	return a.db.GetState(addr, slot)
}
func (a *vmAdapter) GetState(addr common.Address, slot common.Hash) common.Hash {
	return a.db.GetState(addr, slot)
}
func (a *vmAdapter) SetState(addr common.Address, slot, value common.Hash) {
	a.db.SetState(addr, slot, value)
}

func (a *vmAdapter) SelfDestruct(common.Address)            {}
func (a *vmAdapter) HasSelfDestructed(common.Address) bool  { return false }
func (a *vmAdapter) Exist(addr common.Address) bool {
	return len(a.db.GetCode(addr)) > 0 || a.db.GetNonce(addr) > 0 || a.db.GetBalance(addr).Sign() > 0
}
func (a *vmAdapter) Empty(addr common.Address) bool { return !a.Exist(addr) }

func (a *vmAdapter) AddressInAccessList(addr common.Address) bool {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	_, ok := a.db.accessListAddrs[addr]
	return ok
}

func (a *vmAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	_, addrOk := a.db.accessListAddrs[addr]
	slots, ok := a.db.accessListSlots[addr]
	if !ok {
		return addrOk, false
	}
	_, slotOk := slots[slot]
	return addrOk, slotOk
}

func (a *vmAdapter) AddAddressToAccessList(addr common.Address) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.accessListAddrs[addr] = struct{}{}
}

func (a *vmAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.accessListAddrs[addr] = struct{}{}
	if a.db.accessListSlots[addr] == nil {
		a.db.accessListSlots[addr] = make(map[common.Hash]struct{})
	}
	a.db.accessListSlots[addr][slot] = struct{}{}
}

// Snapshot/RevertToSnapshot give the EVM the snapshot pair it expects,
// built on the overlay's Clone(); indices index into a.snapshots, each entry a deep copy
// of the overlay at that point.
func (a *vmAdapter) Snapshot() int {
	a.snapshots = append(a.snapshots, a.db.Clone())
	return len(a.snapshots) - 1
}

func (a *vmAdapter) RevertToSnapshot(id int) {
	if id < 0 || id >= len(a.snapshots) {
		return
	}
	restored := a.snapshots[id]
	a.db.mu.Lock()
	a.db.accounts = restored.accounts
	a.db.mu.Unlock()
	a.snapshots = a.snapshots[:id]
}

func (a *vmAdapter) AddLog(l *types.Log)             { a.db.AddLog(l) }
func (a *vmAdapter) AddPreimage(common.Hash, []byte) {}
