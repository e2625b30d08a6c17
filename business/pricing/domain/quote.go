package domain

import (
	"time"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// PriceQuote is a venue's answer for swapping InputAmount of Input into
// Output. Quotes are produced fresh for every evaluation.
type PriceQuote struct {
	Venue        VenueID
	Kind         VenueKind
	Input        asset.AssetID
	Output       asset.AssetID
	InputAmount  uint64
	OutputAmount uint64
	FeeBps       uint64
	QuotedAt     time.Time
	// ReportedPrice is a precision-scaled price supplied by the venue. When
	// set, Price returns it instead of deriving one from the amounts.
	ReportedPrice uint64
}

// Price returns OutputAmount per InputAmount scaled by fixedpoint.PricePrecision,
// or ReportedPrice when the venue supplied one.
func (q PriceQuote) Price() (uint64, error) {
	if q.ReportedPrice != 0 {
		return q.ReportedPrice, nil
	}
	p, err := fixedpoint.Price(q.OutputAmount, q.InputAmount)
	if err != nil {
		return 0, apperror.New(apperror.CodeCalculationError,
			apperror.WithCause(err),
			apperror.WithContext("price of "+string(q.Venue)+" quote"))
	}
	return p, nil
}

// FromPrice rebuilds a quote from a precision-scaled price, as returned by the
// price-check simulation. The price is kept verbatim; OutputAmount is derived
// from it for display and may be truncated.
func FromPrice(venue VenueID, input, output asset.AssetID, amount, price uint64, at time.Time) (PriceQuote, error) {
	out, err := fixedpoint.MulDiv(price, amount, fixedpoint.PricePrecision)
	if err != nil {
		return PriceQuote{}, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}
	return PriceQuote{
		Venue:         venue,
		Input:         input,
		Output:        output,
		InputAmount:   amount,
		OutputAmount:  out,
		QuotedAt:      at,
		ReportedPrice: price,
	}, nil
}
