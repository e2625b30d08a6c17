package asset

import "github.com/ethereum/go-ethereum/common"

const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	ChainIDArbitrum = 42161
	ChainIDBase     = 8453
)

// Ethereum mainnet token addresses.
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAIEthereum  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

var (
	ETH  = NewAsset(NewNativeAssetID(ChainIDEthereum), "ETH", "Ethereum", 18)
	WETH = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWETHEthereum), "WETH", "Wrapped Ether", 18)
	USDC = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDCEthereum), "USDC", "USD Coin", 6)
	USDT = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDTEthereum), "USDT", "Tether USD", 6)
	DAI  = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrDAIEthereum), "DAI", "Dai Stablecoin", 18)
	WBTC = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWBTCEthereum), "WBTC", "Wrapped Bitcoin", 8)

	USD = NewAsset(NewFiatAssetID("USD"), "USD", "US Dollar", 2)
)

// DefaultRegistry returns a registry with the well-known mainnet assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{ETH, WETH, USDC, USDT, DAI, WBTC, USD} {
		_ = r.Register(a)
	}
	return r
}

// NewToken builds an ERC20 asset for tokens outside the default set.
func NewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) *Asset {
	return NewAsset(NewTokenAssetID(chainID, address), symbol, name, decimals)
}
