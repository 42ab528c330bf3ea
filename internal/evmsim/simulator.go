package evmsim

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Tx is the internal call shape every Simulator entry point takes,
// mirroring the teacher-adjacent evm.rs Tx type: caller/target/data/value
// plus a gas price and limit for the block context.
type Tx struct {
	Caller     common.Address
	To         common.Address
	Data       []byte
	Value      *big.Int
	GasPrice   *big.Int
	GasLimit   uint64
	AccessList types.AccessList
}

// TxResult is what Call/StaticCall return: the raw return data, any logs
// emitted, and gas accounting. REVERT/HALT propagate as a returned error
// carrying the revert reason bytes rather than a typed result.
type TxResult struct {
	Output      []byte
	Logs        []*types.Log
	GasUsed     uint64
	GasRefunded uint64
}

const defaultGasLimit = 5_000_000

// Simulator owns one forked EVM state exclusively: pre-reserve read,
// frontrun, victim replay, post-reserve read, and backrun all execute in
// sequence against this single instance, never concurrently. Parallel
// what-if branches (the optimizer's amount-in sweep) each get their own
// Simulator via Clone.
type Simulator struct {
	client      *ethclient.Client
	owner       common.Address
	blockNumber uint64
	db          *RemoteStateDB
	baseFee     *big.Int
	chainConfig *params.ChainConfig
}

// New forks state at blockNumber for owner (the synthetic bot/wallet
// address every simulated call is sent from).
func New(ctx context.Context, client *ethclient.Client, owner common.Address, blockNumber uint64) *Simulator {
	return &Simulator{
		client:      client,
		owner:       owner,
		blockNumber: blockNumber,
		db:          NewRemoteStateDB(ctx, client, new(big.Int).SetUint64(blockNumber)),
		baseFee:     big.NewInt(0),
		chainConfig: params.MainnetChainConfig,
	}
}

// Clone snapshots the simulator's state for an independent branch: the
// amount-in optimizer runs one clone per candidate amount so the six
// parallel simulations never see each other's mutations.
func (s *Simulator) Clone() *Simulator {
	return &Simulator{
		client:      s.client,
		owner:       s.owner,
		blockNumber: s.blockNumber,
		db:          s.db.Clone(),
		baseFee:     new(big.Int).Set(s.baseFee),
		chainConfig: s.chainConfig,
	}
}

// SetBaseFee sets the simulated block's base fee; zero during victim
// replay to avoid double-charging the EIP-1559 burn the victim already
// paid on the real chain.
func (s *Simulator) SetBaseFee(fee *big.Int) { s.baseFee = new(big.Int).Set(fee) }

// SetEthBalance directly overwrites an address's native balance in the
// overlay — used to fund the synthetic owner before the bot contract is
// deployed and before each leg's flash-loan-style balance seed.
func (s *Simulator) SetEthBalance(addr common.Address, amount *big.Int) {
	v, _ := uint256.FromBig(amount)
	s.db.SetBalance(addr, v)
}

// GetBalance reads an address's native balance from the overlay.
func (s *Simulator) GetBalance(addr common.Address) *big.Int {
	return s.db.GetBalance(addr).ToBig()
}

// InsertAccountStorage sets a single storage slot on an account directly,
// bypassing execution — the mechanism behind the ERC-20 balance override.
func (s *Simulator) InsertAccountStorage(addr common.Address, slot, value common.Hash) {
	s.db.SetState(addr, slot, value)
}

// Deploy installs bytecode at addr, leaving its balance and nonce as they
// are, the way
// the bot contract is made available to the fork without a real
// CREATE transaction.
func (s *Simulator) Deploy(addr common.Address, code []byte) {
	s.db.SetCode(addr, code)
}

// NextBlockNumber is the block this simulator's calls execute against —
// one past the forked base block.
func (s *Simulator) NextBlockNumber() uint64 { return s.blockNumber + 1 }

// SetAccessList pre-warms the overlay's access-list bookkeeping with a
// previously observed list, so a second pass (e.g. the backrun call,
// which reuses the frontrun's warm slots) doesn't re-pay cold-access gas
// in the gas accounting this simulator reports.
func (s *Simulator) SetAccessList(list types.AccessList) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, tuple := range list {
		s.db.accessListAddrs[tuple.Address] = struct{}{}
		if len(tuple.StorageKeys) == 0 {
			continue
		}
		slots, ok := s.db.accessListSlots[tuple.Address]
		if !ok {
			slots = make(map[common.Hash]struct{})
			s.db.accessListSlots[tuple.Address] = slots
		}
		for _, key := range tuple.StorageKeys {
			slots[key] = struct{}{}
		}
	}
}

func (s *Simulator) blockContext() vm.BlockContext {
	return vm.BlockContext{
		CanTransfer: func(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db vm.StateDB, sender, recipient common.Address, amount *uint256.Int) {
			db.SubBalance(sender, amount)
			db.AddBalance(recipient, amount)
		},
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		BlockNumber: new(big.Int).SetUint64(s.blockNumber + 1),
		Time:        0,
		Difficulty:  big.NewInt(0),
		BaseFee:     s.baseFee,
		GasLimit:    30_000_000,
	}
}

func (s *Simulator) run(tx Tx, commit bool) (TxResult, error) {
	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}
	value, _ := uint256.FromBig(tx.Value)
	if tx.Value == nil {
		value = uint256.NewInt(0)
	}

	adapter := newVMAdapter(s.db)
	txCtx := vm.TxContext{Origin: tx.Caller, GasPrice: gasPrice}

	evm := vm.NewEVM(s.blockContext(), txCtx, adapter, s.chainConfig, vm.Config{NoBaseFee: !commit})

	gas := gasLimit
	out, leftover, err := evm.Call(vm.AccountRef(tx.Caller), tx.To, tx.Data, gas, value)
	if err != nil {
		return TxResult{}, fmt.Errorf("evmsim: call reverted: %w (output=%x)", err, out)
	}
	gasUsed := gas - leftover
	return TxResult{
		Output:      out,
		Logs:        s.db.Logs(),
		GasUsed:     gasUsed,
		GasRefunded: s.db.Refund(),
	}, nil
}

// StaticCall runs a read-only call: state changes are discarded.
func (s *Simulator) StaticCall(tx Tx) (TxResult, error) {
	before := s.db.Clone()
	res, err := s.run(tx, false)
	s.db = before
	return res, err
}

// Call runs a state-mutating call and commits its effects to the
// simulator's overlay.
func (s *Simulator) Call(tx Tx) (TxResult, error) {
	return s.run(tx, true)
}

// GetAccessList runs the same call purely to observe which
// addresses/slots it touches, returning an empty list if the call fails
// rather than aborting the sandwich — access lists are an optimization,
// not a correctness requirement.
func (s *Simulator) GetAccessList(tx Tx) types.AccessList {
	snapshot := s.db.Clone()
	defer func() { s.db = snapshot }()

	if _, err := s.run(tx, true); err != nil {
		return types.AccessList{}
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	list := make(types.AccessList, 0, len(s.db.accessListAddrs))
	for addr := range s.db.accessListAddrs {
		entry := types.AccessTuple{Address: addr}
		if slots, ok := s.db.accessListSlots[addr]; ok {
			for slot := range slots {
				entry.StorageKeys = append(entry.StorageKeys, slot)
			}
		}
		list = append(list, entry)
	}
	return list
}

// GetTokenBalance reads balanceOf(owner) on an ERC-20 token via a
// staticcall.
func (s *Simulator) GetTokenBalance(token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	res, err := s.StaticCall(Tx{Caller: s.owner, To: token, Data: data, GasLimit: defaultGasLimit})
	if err != nil {
		return nil, err
	}
	vals, err := erc20ABI.Unpack("balanceOf", res.Output)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("evmsim: decode balanceOf: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// SetTokenBalance writes owner's balance directly into token's storage
// at the known slot, the ERC-20 storage-trick override used to fund the
// bot without a real transfer.
func (s *Simulator) SetTokenBalance(token, owner common.Address, slot int32, amount *big.Int) error {
	if slot < 0 {
		return fmt.Errorf("evmsim: unknown balance slot for token %s", token)
	}
	key := crypto.Keccak256(append(common.LeftPadBytes(owner.Bytes(), 32), common.LeftPadBytes(big.NewInt(int64(slot)).Bytes(), 32)...))
	s.InsertAccountStorage(token, common.BytesToHash(key), common.BigToHash(amount))
	return nil
}

// GetPairReserves reads getReserves() on a v2 pair.
func (s *Simulator) GetPairReserves(pair common.Address) (reserve0, reserve1 *big.Int, err error) {
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return nil, nil, err
	}
	res, err := s.StaticCall(Tx{Caller: s.owner, To: pair, Data: data, GasLimit: defaultGasLimit})
	if err != nil {
		return nil, nil, err
	}
	vals, err := pairABI.Unpack("getReserves", res.Output)
	if err != nil || len(vals) < 2 {
		return nil, nil, fmt.Errorf("evmsim: decode getReserves: %w", err)
	}
	return vals[0].(*big.Int), vals[1].(*big.Int), nil
}

// GetV3PoolReserves reads slot0.sqrtPriceX96 and liquidity() from a v3
// pool and returns them as read; callers pass these into
// routers.SynthesizeV3Reserves to get reserve figures.
func (s *Simulator) GetV3PoolReserves(pool common.Address) (sqrtPriceX96, liquidity *big.Int, err error) {
	slot0Data, err := v3PoolABI.Pack("slot0")
	if err != nil {
		return nil, nil, err
	}
	slot0Res, err := s.StaticCall(Tx{Caller: s.owner, To: pool, Data: slot0Data, GasLimit: defaultGasLimit})
	if err != nil {
		return nil, nil, err
	}
	slot0Vals, err := v3PoolABI.Unpack("slot0", slot0Res.Output)
	if err != nil || len(slot0Vals) == 0 {
		return nil, nil, fmt.Errorf("evmsim: decode slot0: %w", err)
	}

	liqData, err := v3PoolABI.Pack("liquidity")
	if err != nil {
		return nil, nil, err
	}
	liqRes, err := s.StaticCall(Tx{Caller: s.owner, To: pool, Data: liqData, GasLimit: defaultGasLimit})
	if err != nil {
		return nil, nil, err
	}
	liqVals, err := v3PoolABI.Unpack("liquidity", liqRes.Output)
	if err != nil || len(liqVals) == 0 {
		return nil, nil, fmt.Errorf("evmsim: decode liquidity: %w", err)
	}

	return slot0Vals[0].(*big.Int), liqVals[0].(*big.Int), nil
}

// GetBalanceSlot brute-forces a token's ERC-20 balance storage slot by
// probing keccak256(owner ++ i) for i in [0,30) and returning the first
// slot balanceOf(owner) actually reads. Takes owner explicitly rather
// than assuming it equals the token address, which earlier revisions of
// this probe conflated.
func (s *Simulator) GetBalanceSlot(token, owner common.Address) (int32, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return -1, err
	}

	// Run the call on the live overlay and read the touched slots before
	// restoring it: StaticCall would discard the touches along with the db.
	before := s.db.TouchedStorage(token)
	snapshot := s.db.Clone()
	_, err = s.run(Tx{Caller: s.owner, To: token, Data: data, GasLimit: defaultGasLimit}, false)
	after := s.db.TouchedStorage(token)
	s.db = snapshot
	if err != nil {
		return -1, err
	}

	for i := int32(0); i < 30; i++ {
		key := crypto.Keccak256(common.LeftPadBytes(owner.Bytes(), 32), common.LeftPadBytes(big.NewInt(int64(i)).Bytes(), 32))
		slot := common.BytesToHash(key)
		if _, wasBefore := before[slot]; wasBefore {
			continue
		}
		if _, touched := after[slot]; touched {
			return i, nil
		}
	}
	return -1, nil
}

var erc20ABI, pairABI, v3PoolABI abi.ABI

func init() {
	erc20ABI = mustParseABI(`[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`)
	pairABI = mustParseABI(`[
		{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]}
	]`)
	v3PoolABI = mustParseABI(`[
		{"name":"slot0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"},{"name":"observationIndex","type":"uint16"},{"name":"observationCardinality","type":"uint16"},{"name":"observationCardinalityNext","type":"uint16"},{"name":"feeProtocol","type":"uint8"},{"name":"unlocked","type":"bool"}]},
		{"name":"liquidity","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]}
	]`)
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("evmsim: invalid embedded ABI: %v", err))
	}
	return parsed
}
