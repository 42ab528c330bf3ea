package registry

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

// Blacklist is a concurrent-safe set of token and router addresses the
// classifier and strategy layer must refuse to act on — rug-pull tokens,
// sanctioned routers, known honeypots. Reads happen on every classified
// swap, so lookups use a read lock over a plain map.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[common.Address]models.BlacklistEntry
}

// NewBlacklist returns an empty blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{entries: make(map[common.Address]models.BlacklistEntry)}
}

// Add blocks addr with a reason.
func (b *Blacklist) Add(addr common.Address, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[addr] = models.BlacklistEntry{Address: addr, Reason: reason, AddedAt: time.Now()}
}

// Remove unblocks addr.
func (b *Blacklist) Remove(addr common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, addr)
}

// Contains reports whether addr is blocked.
func (b *Blacklist) Contains(addr common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[addr]
	return ok
}

// All returns every blocked entry.
func (b *Blacklist) All() []models.BlacklistEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.BlacklistEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	return out
}
