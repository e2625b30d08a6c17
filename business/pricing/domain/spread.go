package domain

import (
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// Spread is the price gap between two quotes for the same trade size.
type Spread struct {
	PriceA uint64
	PriceB uint64
	// Amount is |PriceA-PriceB| * size / PricePrecision.
	Amount uint64
}

// HigherIsA reports whether venue A quoted the higher price.
func (s Spread) HigherIsA() bool { return s.PriceA > s.PriceB }

// CalculateSpread prices both quotes and scales their difference by size.
// Overflow is a hard CalculationError.
func CalculateSpread(qa, qb PriceQuote, size uint64) (Spread, error) {
	pa, err := qa.Price()
	if err != nil {
		return Spread{}, err
	}
	pb, err := qb.Price()
	if err != nil {
		return Spread{}, err
	}
	amount, err := fixedpoint.MulDiv(fixedpoint.AbsDiff(pa, pb), size, fixedpoint.PricePrecision)
	if err != nil {
		return Spread{}, apperror.New(apperror.CodeCalculationError,
			apperror.WithCause(err),
			apperror.WithContext("spread"))
	}
	return Spread{PriceA: pa, PriceB: pb, Amount: amount}, nil
}
