// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

// QuoteRequest asks a venue what Amount of Input buys in Output.
type QuoteRequest struct {
	Input          asset.AssetID
	Output         asset.AssetID
	Amount         uint64
	MaxSlippageBps uint64
}

// SwapRequest executes Amount of Input into Output. Venues must not deliver
// less than MinOutput.
type SwapRequest struct {
	Input     asset.AssetID
	Output    asset.AssetID
	Amount    uint64
	MinOutput uint64
}

// Reverse returns the request that swaps output back into input.
func (r SwapRequest) Reverse(amount uint64) SwapRequest {
	return SwapRequest{Input: r.Output, Output: r.Input, Amount: amount}
}

// Venue is the quote/swap capability shared by every liquidity source.
type Venue interface {
	ID() domain.VenueID
	Kind() domain.VenueKind
	FeeBps() uint64
	Quote(ctx context.Context, req QuoteRequest) (domain.PriceQuote, error)
	Swap(ctx context.Context, req SwapRequest) (uint64, error)
}

// ReserveSource reads a pool's reserves oriented input→output.
type ReserveSource interface {
	Reserves(ctx context.Context, input, output asset.AssetID) (domain.Reserves, error)
}

// PoolSwapper executes an exact-input swap against a pool.
type PoolSwapper interface {
	SwapExactIn(ctx context.Context, req SwapRequest) (uint64, error)
}

// RouteQuoter is an external quoting and routing service. Its quoted output
// is trusted as current.
type RouteQuoter interface {
	RouteQuote(ctx context.Context, req QuoteRequest) (uint64, error)
	RouteSwap(ctx context.Context, req SwapRequest) (uint64, error)
}

// PriceFeed supplies reference prices such as ETHUSDC.
type PriceFeed interface {
	Price(ctx context.Context, symbol string) (domain.FeedPrice, error)
}

// TxSubmitter signs and mines transactions for on-chain venues.
type TxSubmitter interface {
	Account() common.Address
	Send(ctx context.Context, to common.Address, data []byte, value uint64) (*types.Receipt, error)
	EnsureAllowance(ctx context.Context, token, spender common.Address, amount uint64) error
}
