// Package registry owns the process-wide pool and token registries: the
// pool discovery scan and CSV cache (C4), the token metadata store and
// JSON cache (C5), and the token/router blacklist.
package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

// Well-known mainnet addresses the simulator and bundle builder reference
// directly, independent of the token registry.
var (
	WETH            = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDT            = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	USDC            = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	WBTC            = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	DAI             = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	LINK            = common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")
	MKR             = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	CoinbaseAddress = common.HexToAddress("0xDAFEA492D9c6733ae3d56b7Ed1ADB60692c98Bc5")
)

// Chainlink USD price-feed addresses, one per main currency.
var (
	ChainlinkETHUSD  = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	ChainlinkBTCUSD  = common.HexToAddress("0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c")
	ChainlinkUSDTUSD = common.HexToAddress("0x3E7d1eAB13ad0104d2750B8863b489D65364e32D")
	ChainlinkUSDCUSD = common.HexToAddress("0x8fFfFfd4AfB6115b954Bd326cbe7B4BA576818f6")
	ChainlinkDAIUSD  = common.HexToAddress("0xAed0c38402a5d19df6E4c03F4E2DceD6e29c1ee9")
	ChainlinkLINKUSD = common.HexToAddress("0x2c1d072e956AFFC0D435Cb7AC38EF18d24d9127c")
	ChainlinkMKRUSD  = common.HexToAddress("0xec1D1B3b0443256cc3860e24a46F108e699484Aa")
)

// FlashloanFeeBasisPoints and BasisPointsDivisor give the Aave v3
// flash-loan fee rate: amount * FlashloanFeeBasisPoints / BasisPointsDivisor.
const (
	FlashloanFeeBasisPoints = 9
	BasisPointsDivisor      = 10000
)

// SeedMainCurrencies returns the 7 built-in main currencies with their
// hardcoded balance slots, decimals, weights, and Chainlink feeds. Weight
// ranks WETH highest (7) and MKR lowest (1); return_main_and_target_currency
// logic in the classifier breaks token0/token1 ties by this weight.
func SeedMainCurrencies() []models.TokenMetadata {
	return []models.TokenMetadata{
		{Address: WETH, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18, BalanceSlot: 3, ChainlinkFeed: ChainlinkETHUSD, HasFeed: true, IsMainCurrency: true, Weight: 7},
		{Address: USDT, Symbol: "USDT", Name: "Tether USD", Decimals: 6, BalanceSlot: 2, ChainlinkFeed: ChainlinkUSDTUSD, HasFeed: true, IsMainCurrency: true, Weight: 5},
		{Address: USDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6, BalanceSlot: 9, ChainlinkFeed: ChainlinkUSDCUSD, HasFeed: true, IsMainCurrency: true, Weight: 4},
		{Address: WBTC, Symbol: "WBTC", Name: "Wrapped BTC", Decimals: 8, BalanceSlot: 0, ChainlinkFeed: ChainlinkBTCUSD, HasFeed: true, IsMainCurrency: true, Weight: 6},
		{Address: DAI, Symbol: "DAI", Name: "Dai Stablecoin", Decimals: 18, BalanceSlot: 2, ChainlinkFeed: ChainlinkDAIUSD, HasFeed: true, IsMainCurrency: true, Weight: 3},
		{Address: LINK, Symbol: "LINK", Name: "ChainLink Token", Decimals: 18, BalanceSlot: 1, ChainlinkFeed: ChainlinkLINKUSD, HasFeed: true, IsMainCurrency: true, Weight: 2},
		{Address: MKR, Symbol: "MKR", Name: "Maker", Decimals: 18, BalanceSlot: 1, ChainlinkFeed: ChainlinkMKRUSD, HasFeed: true, IsMainCurrency: true, Weight: 1},
	}
}

// ReturnMainAndTargetCurrency picks which side of a pool is the main
// currency (numéraire) and which is the target. If neither side is a main
// currency it returns ok=false. If both sides are main currencies, the
// higher-weight one wins.
func ReturnMainAndTargetCurrency(token0, token1 models.TokenMetadata) (main, target models.TokenMetadata, ok bool) {
	switch {
	case token0.IsMainCurrency && token1.IsMainCurrency:
		if token0.Weight >= token1.Weight {
			return token0, token1, true
		}
		return token1, token0, true
	case token0.IsMainCurrency:
		return token0, token1, true
	case token1.IsMainCurrency:
		return token1, token0, true
	default:
		return models.TokenMetadata{}, models.TokenMetadata{}, false
	}
}
