package classifier

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	pairToken0Selector = []byte{0x0d, 0xfe, 0x16, 0x81} // token0()
	pairToken1Selector = []byte{0xd2, 0x12, 0x20, 0xa7} // token1()
)

// poolLikeMinLength and routerLikeMinLength are the bytecode-length
// heuristic thresholds: a contract exposing both token0()/token1()
// selectors with at least this much code is treated as a pool; anything
// bigger than routerLikeMinLength is treated as a router.
const (
	poolLikeMinLength   = 100
	routerLikeMinLength = 1000
)

// IsPoolContract reports whether addr's bytecode looks like an AMM pool:
// long enough to be a real contract and containing both the token0() and
// token1() selectors. RPC failures are treated as "not a pool".
func IsPoolContract(ctx context.Context, client *ethclient.Client, addr common.Address) bool {
	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil || len(code) < poolLikeMinLength {
		return false
	}
	return bytes.Contains(code, pairToken0Selector) && bytes.Contains(code, pairToken1Selector)
}

// IsRouterLike reports whether addr's bytecode is long enough to plausibly
// be a router (a crude but cheap fallback when selector matching fails).
func IsRouterLike(ctx context.Context, client *ethclient.Client, addr common.Address) bool {
	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false
	}
	return len(code) > routerLikeMinLength
}
