package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata mirrors spec.md §3's token metadata record: persisted in
// token_registry.json, seeded at startup for the main currencies and
// lazily fetched on miss for everything else.
type TokenMetadata struct {
	Address        common.Address `json:"address"`
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name"`
	Decimals       uint8          `json:"decimals"`
	BalanceSlot    int32          `json:"balanceSlot"` // -1 = unknown
	ChainlinkFeed  common.Address `json:"chainlinkFeed,omitempty"`
	HasFeed        bool           `json:"hasFeed"`
	IsMainCurrency bool           `json:"isMainCurrency"`
	Weight         uint8          `json:"weight"` // 0..7, higher = preferred numéraire
	USDPrice       float64        `json:"usdPrice"`
}

// UnknownTokenPlaceholder is returned by the registry when fetch() cannot
// decode name()/symbol()/decimals() from non-conforming bytecode (spec.md
// §8 boundary behavior).
func UnknownTokenPlaceholder(addr common.Address) TokenMetadata {
	return TokenMetadata{
		Address:     addr,
		Symbol:      "UNK",
		Name:        "Unknown",
		Decimals:    18,
		BalanceSlot: -1,
	}
}
