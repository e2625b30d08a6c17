package domain

import (
	"time"

	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
)

// Opportunity is the decision artifact of one evaluation. It is never
// persisted.
type Opportunity struct {
	Pair      TokenPair
	Direction Direction
	QuoteA    pricingDomain.PriceQuote
	QuoteB    pricingDomain.PriceQuote

	Spread pricingDomain.Spread
	Costs  CostBreakdown
	// ExpectedProfit is Spread.Amount minus Costs.Total, in output units.
	ExpectedProfit uint64
	DetectedAt     time.Time
}

// FirstVenue is where the input asset is sold.
func (o *Opportunity) FirstVenue() pricingDomain.VenueID {
	first, _ := o.Direction.Legs(o.Pair)
	return first
}

// SecondVenue is where the output asset is sold back.
func (o *Opportunity) SecondVenue() pricingDomain.VenueID {
	_, second := o.Direction.Legs(o.Pair)
	return second
}
