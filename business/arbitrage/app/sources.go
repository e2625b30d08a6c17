package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

var (
	_ QuoteSource = (*DirectSource)(nil)
	_ QuoteSource = (*SimulationSource)(nil)
)

// DirectSource reads both venues.
type DirectSource struct {
	venues Venues
}

// NewDirectSource creates a DirectSource.
func NewDirectSource(venues Venues) *DirectSource {
	return &DirectSource{venues: venues}
}

// Quotes quotes pair.TradeAmount on venue A and venue B concurrently.
func (s *DirectSource) Quotes(ctx context.Context, pair domain.TokenPair) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error) {
	return s.venues.QuotePair(ctx, pair.VenueA, pair.VenueB, pricingApp.QuoteRequest{
		Input:  pair.Input.ID(),
		Output: pair.Output.ID(),
		Amount: pair.TradeAmount,
	})
}

// ProgramCaller performs a read-only call against the execution program.
type ProgramCaller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// SimulationSource asks the execution program's price-check entry point for
// both venue prices in one read-only call.
type SimulationSource struct {
	caller  ProgramCaller
	program common.Address
	now     func() time.Time
}

// NewSimulationSource creates a SimulationSource calling program.
func NewSimulationSource(caller ProgramCaller, program common.Address) *SimulationSource {
	return &SimulationSource{caller: caller, program: program, now: time.Now}
}

// Quotes rebuilds venue quotes from the simulated prices.
func (s *SimulationSource) Quotes(ctx context.Context, pair domain.TokenPair) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error) {
	req := domain.PriceCheckRequest{
		Amount: pair.TradeAmount,
		Input:  pair.Input.Address(),
		Output: pair.Output.Address(),
	}

	buf, err := s.caller.Call(ctx, s.program, req.Encode())
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, apperror.New(apperror.CodeSimulationUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("price check "+pair.Symbol()))
	}
	pa, pb, err := domain.DecodePriceCheck(buf)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}

	at := s.now()
	qa, err := pricingDomain.FromPrice(pair.VenueA, pair.Input.ID(), pair.Output.ID(), pair.TradeAmount, pa, at)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	qb, err := pricingDomain.FromPrice(pair.VenueB, pair.Input.ID(), pair.Output.ID(), pair.TradeAmount, pb, at)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	return qa, qb, nil
}
