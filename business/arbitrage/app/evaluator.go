package app

import (
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// Evaluate decides whether the price gap between two quotes pays for the
// round trip. It returns nil when spread <= cost. Trade math overflow is a
// CALCULATION_ERROR; fee terms fail soft inside FeeModel.
//
// The result depends only on the arguments. Pair is left for the caller to
// fill in.
func Evaluate(qa, qb pricingDomain.PriceQuote, amount uint64, fees domain.FeeModel) (*domain.Opportunity, error) {
	if amount == 0 {
		return nil, apperror.New(apperror.CodeCalculationError, apperror.WithContext("zero trade amount"))
	}

	spread, err := pricingDomain.CalculateSpread(qa, qb, amount)
	if err != nil {
		return nil, err
	}

	costs := fees.Breakdown(amount)
	if spread.Amount <= costs.Total {
		return nil, nil
	}

	profit, err := fixedpoint.Sub(spread.Amount, costs.Total)
	if err != nil {
		return nil, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	detected := qa.QuotedAt
	if qb.QuotedAt.After(detected) {
		detected = qb.QuotedAt
	}

	return &domain.Opportunity{
		Direction:      domain.ChooseDirection(spread.PriceA, spread.PriceB),
		QuoteA:         qa,
		QuoteB:         qb,
		Spread:         spread,
		Costs:          costs,
		ExpectedProfit: profit,
		DetectedAt:     detected,
	}, nil
}

// EvaluatePair runs Evaluate at the pair's trade amount and attaches the pair.
func EvaluatePair(pair domain.TokenPair, qa, qb pricingDomain.PriceQuote, fees domain.FeeModel) (*domain.Opportunity, error) {
	opp, err := Evaluate(qa, qb, pair.TradeAmount, fees)
	if err != nil || opp == nil {
		return nil, err
	}
	opp.Pair = pair
	return opp, nil
}
