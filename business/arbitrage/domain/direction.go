package domain

import pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"

// Direction selects which venue executes each leg of the round trip.
type Direction int

const (
	// DirectionAThenB buys on venue A and sells the output back on venue B.
	DirectionAThenB Direction = iota + 1
	// DirectionBThenA buys on venue B and sells the output back on venue A.
	DirectionBThenA
)

// String returns a human-readable direction.
func (d Direction) String() string {
	switch d {
	case DirectionAThenB:
		return "A->B"
	case DirectionBThenA:
		return "B->A"
	default:
		return "unknown"
	}
}

// ChooseDirection puts the second leg on the venue with the higher price.
// Equal prices pick A first.
func ChooseDirection(priceA, priceB uint64) Direction {
	if priceA > priceB {
		return DirectionBThenA
	}
	return DirectionAThenB
}

// Legs returns the first and second venue for pair.
func (d Direction) Legs(pair TokenPair) (first, second pricingDomain.VenueID) {
	if d == DirectionBThenA {
		return pair.VenueB, pair.VenueA
	}
	return pair.VenueA, pair.VenueB
}
