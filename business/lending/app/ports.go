// Package app contains application services and port definitions for the lending context.
package app

import (
	"context"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

// Lender is a pool that lends and takes repayments.
type Lender interface {
	Name() string
	// Available returns how much of id can be borrowed now.
	Available(ctx context.Context, id asset.AssetID) (uint64, error)
	Borrow(ctx context.Context, id asset.AssetID, amount uint64) error
	Repay(ctx context.Context, id asset.AssetID, amount uint64) error
}
