// Package routers catalogs the known DEX routers, pools, and method
// selectors the classifier matches against, plus the pure constant-product
// math shared by the simulator and optimizer.
package routers

import "github.com/ethereum/go-ethereum/common"

// Known router addresses. A direct call to one of these is classified as
// a Swap without needing a bytecode heuristic check.
var KnownRouters = map[common.Address]string{
	common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"): "uniswap_v2",
	common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"): "uniswap_v3",
	common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"): "sushiswap",
	common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"): "uniswap_universal",
	common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582"): "oneinch_v5",
	common.HexToAddress("0x1111111254fb6c44bAC0beD2854e76F90643097d"): "oneinch_v4",
	common.HexToAddress("0xDef1C0ded9bec7F1a1670819833240f027b25EfF"): "0x_protocol",
}

// IsKnownRouter reports whether addr is a curated router.
func IsKnownRouter(addr common.Address) bool {
	_, ok := KnownRouters[addr]
	return ok
}

// ERC-20 selectors the classifier short-circuits on before attempting a
// swap match.
const (
	SelectorERC20Approve  = "0x095ea7b3"
	SelectorERC20Transfer = "0xa9059cbb"
)

// Uniswap-v2-family router selectors.
const (
	SelectorSwapExactETHForTokens          = "0x7ff36ab5"
	SelectorSwapETHForExactTokens          = "0xfb3bdb41"
	SelectorSwapExactTokensForETH          = "0x18cbafe5"
	SelectorSwapExactTokensForTokens       = "0x38ed1739"
	SelectorSwapTokensForExactTokens       = "0x8803dbee"
	SelectorSwapExactETHForTokensFee       = "0xb6f9de95"
	SelectorSwapExactTokensForETHFee       = "0x791ac947"
	SelectorSwapExactTokensForTokensFee    = "0x5c11d795"
	SelectorSwapTokensForExactETH          = "0x472b43f3"
)

// Uniswap-v3-family router selectors.
const (
	SelectorV3ExactTokensForTokens = "0xe8e33700"
	SelectorV3ExactETHForTokens    = "0xdf2ab5bb"
	SelectorV3ExactInputSingle    = "0x414bf389"
	SelectorV3ExactOutputSingle   = "0xdb3e2198"
	SelectorV3ExactInput          = "0xb858183f"
	SelectorV3ExactOutput         = "0x09b81346"
)

// SushiSwap and 1inch/aggregator selectors.
const (
	SelectorSushiSwapExactTokensForETH = "0xddd8a0f2"
	SelectorSushiSwapExactETHForTokens = "0xb39bea41"
	Selector1inchSwap                  = "0x12aa3caf"
	Selector1inchBatchFill              = "0xac9650d8"
	Selector1inchUnoswap                = "0xe449022e"
	SelectorGenericSwap1                = "0x90411a32"
	SelectorGenericSwap2                = "0x58b7f47f"
	SelectorGenericUnoswap               = "0x2e95b6c8"
	SelectorGenericFillOrder             = "0x5a099843"
)

// Direct pool-call selectors: a tx to a known pool address decoded against
// this set is a swap without needing router-path decoding.
const (
	SelectorUniswapV2PairSwap = "0x022c0d9f"
	SelectorSwapFor0          = "0xcdd6cda9"
	SelectorSwapFor1          = "0xd50e6fcd"
	SelectorUniswapV3PoolSwap = "0x128acb08"
)

// V2SwapEventID holds the first four bytes of the topic0 of the Uniswap-v2
// Swap event. The classifier's debug_traceCall fallback does not read it.
const V2SwapEventID = "0xd78ad95f"

var v2SwapSelectors = map[string]bool{
	SelectorSwapExactETHForTokens:       true,
	SelectorSwapETHForExactTokens:       true,
	SelectorSwapExactTokensForETH:       true,
	SelectorSwapExactTokensForTokens:    true,
	SelectorSwapTokensForExactTokens:    true,
	SelectorSwapExactETHForTokensFee:    true,
	SelectorSwapExactTokensForETHFee:    true,
	SelectorSwapExactTokensForTokensFee: true,
	SelectorSwapTokensForExactETH:       true,
	SelectorSushiSwapExactTokensForETH:  true,
	SelectorSushiSwapExactETHForTokens:  true,
}

var v3SwapSelectors = map[string]bool{
	SelectorV3ExactTokensForTokens: true,
	SelectorV3ExactETHForTokens:    true,
	SelectorV3ExactInputSingle:     true,
	SelectorV3ExactOutputSingle:    true,
	SelectorV3ExactInput:           true,
	SelectorV3ExactOutput:          true,
}

var aggregatorSwapSelectors = map[string]bool{
	Selector1inchSwap:         true,
	Selector1inchBatchFill:    true,
	Selector1inchUnoswap:      true,
	SelectorGenericSwap1:      true,
	SelectorGenericSwap2:      true,
	SelectorGenericUnoswap:    true,
	SelectorGenericFillOrder:  true,
}

var directPoolSwapSelectors = map[string]bool{
	SelectorUniswapV2PairSwap: true,
	SelectorSwapFor0:          true,
	SelectorSwapFor1:          true,
	SelectorUniswapV3PoolSwap: true,
}

// IsKnownSwapSelector reports whether selector (lowercase "0x"-prefixed
// 4-byte hex) matches any router-level swap method in the v2, v3 or
// aggregator catalogs. Only the v2 and v3 families have a token-path
// decoder (see IsV2PathSelector); aggregator methods match without one.
func IsKnownSwapSelector(selector string) bool {
	return v2SwapSelectors[selector] || v3SwapSelectors[selector] || aggregatorSwapSelectors[selector]
}

// IsV2PathSelector reports whether selector takes an address[] path arg.
func IsV2PathSelector(selector string) bool {
	return v2SwapSelectors[selector]
}

// IsV3PathSelector reports whether selector takes a packed-bytes path arg.
func IsV3PathSelector(selector string) bool {
	return v3SwapSelectors[selector]
}

// IsDirectPoolSwapSelector reports whether selector is a pool-level swap
// call (decoded without any router path at all).
func IsDirectPoolSwapSelector(selector string) bool {
	return directPoolSwapSelectors[selector]
}
