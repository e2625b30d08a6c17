// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// GasPrice is a sampled gas price.
type GasPrice struct {
	Wei *big.Int
	At  time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), At: at}
}

// Gwei returns the price in gwei for display.
func (g *GasPrice) Gwei() float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(g.Wei), big.NewFloat(1e9)).Float64()
	return f
}

// Cost returns gasLimit*price in wei. It fails if the result needs more than
// 64 bits.
func (g *GasPrice) Cost(gasLimit uint64) (uint64, error) {
	price, overflow := uint256.FromBig(g.Wei)
	if overflow {
		return 0, fixedpoint.ErrOverflow
	}
	total, overflow := new(uint256.Int).MulOverflow(price, uint256.NewInt(gasLimit))
	if overflow {
		return 0, fixedpoint.ErrOverflow
	}
	return fixedpoint.ToUint64(total)
}
