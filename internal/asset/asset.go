package asset

import "github.com/ethereum/go-ethereum/common"

// Asset is the metadata of a token. Identity is the AssetID, never the symbol.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates an Asset.
func NewAsset(id AssetID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

func (a *Asset) ID() AssetID { return a.id }
func (a *Asset) Symbol() string { return a.symbol }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) Address() common.Address { return a.id.Address() }
func (a *Asset) String() string { return a.symbol }

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Equals compares two assets by ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}
