package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

var (
	_ Venue = (*ConstantProductVenue)(nil)
	_ Venue = (*RoutedVenue)(nil)
)

// ConstantProductVenue quotes from pool reserves with x*y=k.
type ConstantProductVenue struct {
	id       domain.VenueID
	feeBps   uint64
	reserves ReserveSource
	swapper  PoolSwapper
	now      func() time.Time
}

// NewConstantProductVenue creates a reserve-backed venue.
func NewConstantProductVenue(id domain.VenueID, feeBps uint64, reserves ReserveSource, swapper PoolSwapper) *ConstantProductVenue {
	return &ConstantProductVenue{id: id, feeBps: feeBps, reserves: reserves, swapper: swapper, now: time.Now}
}

func (v *ConstantProductVenue) ID() domain.VenueID     { return v.id }
func (v *ConstantProductVenue) Kind() domain.VenueKind { return domain.KindConstantProduct }
func (v *ConstantProductVenue) FeeBps() uint64         { return v.feeBps }

// Quote applies the constant-product formula to current reserves.
func (v *ConstantProductVenue) Quote(ctx context.Context, req QuoteRequest) (domain.PriceQuote, error) {
	if req.Amount == 0 {
		return domain.PriceQuote{}, apperror.New(apperror.CodeCalculationError, apperror.WithContext("zero amount"))
	}
	r, err := v.reserves.Reserves(ctx, req.Input, req.Output)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	res, err := domain.ConstantProductOut(r, req.Amount, v.feeBps, fixedpoint.BpsDenominator)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Venue:        v.id,
		Kind:         domain.KindConstantProduct,
		Input:        req.Input,
		Output:       req.Output,
		InputAmount:  req.Amount,
		OutputAmount: res.NetOut,
		FeeBps:       v.feeBps,
		QuotedAt:     v.now(),
	}, nil
}

// Swap executes against the pool and enforces MinOutput.
func (v *ConstantProductVenue) Swap(ctx context.Context, req SwapRequest) (uint64, error) {
	out, err := v.swapper.SwapExactIn(ctx, req)
	if err != nil {
		return 0, err
	}
	return out, checkMinOutput(v.id, out, req.MinOutput)
}

// RoutedVenue delegates quoting and swapping to an external router.
type RoutedVenue struct {
	id              domain.VenueID
	feeBps          uint64
	defaultSlippage uint64
	router          RouteQuoter
	now             func() time.Time
}

// NewRoutedVenue creates an aggregator-backed venue. defaultSlippageBps is
// used for quotes that do not specify one.
func NewRoutedVenue(id domain.VenueID, feeBps, defaultSlippageBps uint64, router RouteQuoter) *RoutedVenue {
	return &RoutedVenue{id: id, feeBps: feeBps, defaultSlippage: defaultSlippageBps, router: router, now: time.Now}
}

func (v *RoutedVenue) ID() domain.VenueID     { return v.id }
func (v *RoutedVenue) Kind() domain.VenueKind { return domain.KindRouted }
func (v *RoutedVenue) FeeBps() uint64         { return v.feeBps }

// Quote asks the router and trusts its answer.
func (v *RoutedVenue) Quote(ctx context.Context, req QuoteRequest) (domain.PriceQuote, error) {
	if req.Amount == 0 {
		return domain.PriceQuote{}, apperror.New(apperror.CodeCalculationError, apperror.WithContext("zero amount"))
	}
	if req.MaxSlippageBps == 0 {
		req.MaxSlippageBps = v.defaultSlippage
	}
	out, err := v.router.RouteQuote(ctx, req)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Venue:        v.id,
		Kind:         domain.KindRouted,
		Input:        req.Input,
		Output:       req.Output,
		InputAmount:  req.Amount,
		OutputAmount: out,
		FeeBps:       v.feeBps,
		QuotedAt:     v.now(),
	}, nil
}

// Swap routes the trade and enforces MinOutput.
func (v *RoutedVenue) Swap(ctx context.Context, req SwapRequest) (uint64, error) {
	out, err := v.router.RouteSwap(ctx, req)
	if err != nil {
		return 0, err
	}
	return out, checkMinOutput(v.id, out, req.MinOutput)
}

func checkMinOutput(id domain.VenueID, out, minOut uint64) error {
	if out < minOut {
		return apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("%s delivered %d, minimum %d", id, out, minOut)))
	}
	return nil
}
