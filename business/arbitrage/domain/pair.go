// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"

	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

// TokenPair is one watch-list instrument. TradeAmount is in Input units and
// LoanAmount in settlement units. Pairs are immutable once registered.
type TokenPair struct {
	Input       *asset.Asset
	Output      *asset.Asset
	TradeAmount uint64
	LoanAmount  uint64

	VenueA pricingDomain.VenueID
	VenueB pricingDomain.VenueID
	// ConversionVenue moves between the settlement and input asset when
	// they differ.
	ConversionVenue pricingDomain.VenueID
	// GasFeedSymbol prices one settlement unit in Output, e.g. ETHUSDC.
	GasFeedSymbol string
}

// NewTokenPair validates and builds a pair.
func NewTokenPair(input, output *asset.Asset, tradeAmount, loanAmount uint64, venueA, venueB pricingDomain.VenueID) (TokenPair, error) {
	switch {
	case input == nil || output == nil:
		return TokenPair{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("pair assets are required"))
	case input.Equals(output):
		return TokenPair{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("pair %s/%s trades an asset against itself", input, output)))
	case tradeAmount == 0 || loanAmount == 0:
		return TokenPair{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("pair %s/%s needs positive trade and loan amounts", input, output)))
	case venueA == "" || venueB == "" || venueA == venueB:
		return TokenPair{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("pair %s/%s needs two distinct venues", input, output)))
	}
	return TokenPair{
		Input:       input,
		Output:      output,
		TradeAmount: tradeAmount,
		LoanAmount:  loanAmount,
		VenueA:      venueA,
		VenueB:      venueB,
	}, nil
}

// Symbol returns "INPUT/OUTPUT".
func (p TokenPair) Symbol() string {
	return p.Input.Symbol() + "/" + p.Output.Symbol()
}

// Key identifies the pair for single-flight tracking.
func (p TokenPair) Key() string {
	return fmt.Sprintf("%s:%s:%s", p.Symbol(), p.VenueA, p.VenueB)
}

// NeedsConversion reports whether the loan must be converted into Input.
func (p TokenPair) NeedsConversion(settlement *asset.Asset) bool {
	return !p.Input.Equals(settlement)
}

func (p TokenPair) String() string { return p.Key() }
