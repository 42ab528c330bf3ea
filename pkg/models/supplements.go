package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BlacklistEntry marks a token or router address the classifier and
// strategy layer should refuse to build sandwiches against or through
// (rug-pull tokens, sanctioned routers, known honeypots).
type BlacklistEntry struct {
	Address common.Address
	Reason  string
	AddedAt time.Time
}

// PairScore ranks a pool's suitability as a sandwich target, combining
// observed swap frequency with simulated profitability history.
type PairScore struct {
	Pool        common.Address
	SwapCount   uint64
	TotalRevenue *big.Int
	LastSeen    time.Time
	Score       float64
}

// BundleAuditRecord is a persisted record of one bundle submission attempt,
// independent of whether any relay included it in a block.
type BundleAuditRecord struct {
	ID              string
	BlockNumber     uint64
	VictimTxHashes  []common.Hash
	Mode            string // "classical" or "flashloan"
	PredictedRevenue *big.Int
	GasCost          *big.Int
	RelayResponses   map[string]string
	CreatedAt        time.Time
}

// ShadowResult records the divergence, if any, between a sandwich's
// predicted revenue at simulation time and its realized outcome once the
// target block lands on chain. Never feeds back into live decisions; it
// exists purely to evaluate the simulator's accuracy.
type ShadowResult struct {
	BundleID         string
	PredictedRevenue *big.Int
	RealizedRevenue  *big.Int
	Delta            *big.Int
	Included         bool
	CreatedAt        time.Time
}

// WebhookEndpoint is one configured alert sink.
type WebhookEndpoint struct {
	Name        string
	URL         string
	Enabled     bool
	Headers     map[string]string
	MinSeverity AlertSeverity
}

// AlertSeverity orders alerts for webhook min-severity filtering.
type AlertSeverity int

const (
	SeverityInfo AlertSeverity = iota
	SeverityWarning
	SeverityCritical
)

// Alert is one notification emitted by the strategy layer: a bundle sent,
// a relay failure, a simulation error worth surfacing.
type Alert struct {
	ID          string
	Timestamp   time.Time
	Severity    AlertSeverity
	Title       string
	Description string
	TxHash      common.Hash
}
