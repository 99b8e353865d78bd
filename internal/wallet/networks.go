package wallet

import (
	"fmt"
	"strings"
)

// NativeAddress marks a network's native coin in token lists.
const NativeAddress = "native"

const (
	OFFCAddress  = "0xaf62c16e46238c14ab8eda78285feb724e7d4444"
	OFFCPair     = "0xb8c3cd64fc8ff7220506c9f576b6bdcb8c271bfb"
	OFFCSymbol   = "OFFC"
	OFFCDecimals = 18
)

type Network struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	RPCURL        string `json:"rpcUrl"`
	ChainID       int64  `json:"chainId"`
	BlockExplorer string `json:"blockExplorer"`
	LogoURL       string `json:"logoUrl,omitempty"`
}

type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	LogoURL  string `json:"logoUrl,omitempty"`
}

func (t Token) IsNative() bool { return t.Address == NativeAddress }

func (t Token) key() string { return strings.ToLower(t.Address) }

// networkOrder is the display and iteration order of the built-in networks.
var networkOrder = []string{"ethereum", "bsc", "arbitrum", "polygon", "base", "optimism"}

func defaultNetworks() map[string]Network {
	return map[string]Network{
		"ethereum": {ID: "ethereum", Name: "Ethereum", Symbol: "ETH", RPCURL: "https://eth.llamarpc.com", ChainID: 1, BlockExplorer: "https://etherscan.io"},
		"bsc":      {ID: "bsc", Name: "Binance Smart Chain", Symbol: "BNB", RPCURL: "https://bsc-dataseed.binance.org", ChainID: 56, BlockExplorer: "https://bscscan.com"},
		"arbitrum": {ID: "arbitrum", Name: "Arbitrum One", Symbol: "ETH", RPCURL: "https://arb1.arbitrum.io/rpc", ChainID: 42161, BlockExplorer: "https://arbiscan.io"},
		"polygon":  {ID: "polygon", Name: "Polygon", Symbol: "ETH", RPCURL: "https://polygon-rpc.com", ChainID: 137, BlockExplorer: "https://polygonscan.com"},
		"base":     {ID: "base", Name: "Base", Symbol: "ETH", RPCURL: "https://mainnet.base.org", ChainID: 8453, BlockExplorer: "https://basescan.org"},
		"optimism": {ID: "optimism", Name: "Optimism", Symbol: "ETH", RPCURL: "https://mainnet.optimism.io", ChainID: 10, BlockExplorer: "https://optimistic.etherscan.io"},
	}
}

func nativeToken(symbol, name string) Token {
	return Token{Address: NativeAddress, Symbol: symbol, Name: name, Decimals: 18}
}

var ether = nativeToken("ETH", "Ethereum")

var supportedTokens = map[string][]Token{
	"ethereum": {ether},
	"bsc": {
		{Address: OFFCAddress, Symbol: OFFCSymbol, Name: "Offchat Token", Decimals: OFFCDecimals},
		nativeToken("BNB", "Binance Coin"),
	},
	"arbitrum": {ether},
	"polygon":  {ether},
	"base":     {ether},
	"optimism": {ether},
}

// Well-known tokens scanned by GetAllTokenBalances.
var scannableTokens = map[string][]Token{
	"bsc": {
		{Address: "0x55d398326f99059fF775485246999027B3197955", Symbol: "USDT", Name: "Tether USD", Decimals: 18},
		{Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Symbol: "USDC", Name: "USD Coin", Decimals: 18},
		{Address: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56", Symbol: "BUSD", Name: "Binance USD", Decimals: 18},
		{Address: "0x2170Ed0880ac9A755fd29B2688956BD959F933F8", Symbol: "ETH", Name: "Ethereum", Decimals: 18},
		{Address: "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82", Symbol: "CAKE", Name: "PancakeSwap", Decimals: 18},
		{Address: "0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c", Symbol: "BTCB", Name: "Bitcoin BEP20", Decimals: 18},
		{Address: "0x1D2F0da169ceB9fC7B3144628dB156f3F6c60dBE", Symbol: "XRP", Name: "XRP", Decimals: 18},
		{Address: "0xbA2aE424d960c26247Dd6c32edC70B295c744C43", Symbol: "DOGE", Name: "Dogecoin", Decimals: 8},
		{Address: "0x1AF3F329e8BE154074D8769D1FFa4eE058B1DBc3", Symbol: "DAI", Name: "Dai", Decimals: 18},
		{Address: "0xF8A0BF9cF54Bb92F17374d9e9A321E6a111a51bD", Symbol: "LINK", Name: "Chainlink", Decimals: 18},
	},
	"ethereum": {
		{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Name: "Dai", Decimals: 18},
		{Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Symbol: "WBTC", Name: "Wrapped BTC", Decimals: 8},
		{Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Symbol: "LINK", Name: "Chainlink", Decimals: 18},
		{Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Symbol: "UNI", Name: "Uniswap", Decimals: 18},
		{Address: "0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE", Symbol: "SHIB", Name: "Shiba Inu", Decimals: 18},
	},
	"arbitrum": {
		{Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Address: "0x912CE59144191C1204E64559FE8253a0e49E6548", Symbol: "ARB", Name: "Arbitrum", Decimals: 18},
	},
	"polygon": {
		{Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Symbol: "WETH", Name: "Wrapped ETH", Decimals: 18},
	},
	"base": {
		{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	},
	"optimism": {
		{Address: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Address: "0x4200000000000000000000000000000000000042", Symbol: "OP", Name: "Optimism", Decimals: 18},
	},
}

// SupportedTokens returns the tokens shown by default on networkID.
func SupportedTokens(networkID string) []Token {
	return append([]Token(nil), supportedTokens[networkID]...)
}

// ScannableTokens returns the well-known tokens scanned on networkID.
func ScannableTokens(networkID string) []Token {
	return append([]Token(nil), scannableTokens[networkID]...)
}

func unsupportedNetwork(id string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedNetwork, id)
}
