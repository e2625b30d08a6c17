// Package asset models the tokens the engine trades. Quantities are uint64
// counts of the smallest denomination; decimal.Decimal is only used when
// parsing configuration and rendering values for humans.
package asset

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies an asset by chain and contract address. The zero address
// is the chain's native coin. Chain 0 is reserved for off-chain quote
// currencies such as USD.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewNativeAssetID creates an AssetID for a chain's native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates an AssetID for an ERC20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero, use NewNativeAssetID")
	}
	return AssetID{chainID: chainID, address: addr}
}

// NewFiatAssetID creates an AssetID for an off-chain currency.
func NewFiatAssetID(symbol string) AssetID {
	return AssetID{
		address: common.BytesToAddress(common.RightPadBytes([]byte(strings.ToUpper(symbol)), 20)),
	}
}

func (id AssetID) ChainID() uint64 { return id.chainID }
func (id AssetID) Address() common.Address { return id.address }

// IsZero reports whether the id was never set.
func (id AssetID) IsZero() bool {
	return id.chainID == 0 && id.address == (common.Address{})
}

func (id AssetID) IsNative() bool { return id.chainID != 0 && id.address == (common.Address{}) }
func (id AssetID) IsToken() bool { return id.chainID != 0 && id.address != (common.Address{}) }
func (id AssetID) IsFiat() bool { return id.chainID == 0 && !id.IsZero() }

func (id AssetID) String() string {
	switch {
	case id.IsZero():
		return "asset:none"
	case id.IsFiat():
		return "fiat:" + strings.TrimRight(string(id.address.Bytes()), "\x00")
	case id.IsNative():
		return fmt.Sprintf("chain:%d/native", id.chainID)
	default:
		return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
	}
}

// Equals compares two AssetIDs.
func (id AssetID) Equals(other AssetID) bool {
	return id == other
}
