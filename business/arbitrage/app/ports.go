// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	lendingDomain "github.com/fd1az/flashloan-arb/business/lending/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

// Venues resolves and quotes configured venues.
type Venues interface {
	Venue(id pricingDomain.VenueID) (pricingApp.Venue, error)
	QuotePair(ctx context.Context, a, b pricingDomain.VenueID, req pricingApp.QuoteRequest) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error)
}

// QuoteSource returns the current venue A and venue B quotes for a pair at
// its trade amount.
type QuoteSource interface {
	Quotes(ctx context.Context, pair domain.TokenPair) (qa, qb pricingDomain.PriceQuote, err error)
}

// Loans opens and settles flash loans.
type Loans interface {
	FeeBps() uint64
	Borrow(ctx context.Context, id asset.AssetID, amount uint64) (lendingDomain.Loan, error)
	Repay(ctx context.Context, loan lendingDomain.Loan, amount uint64) error
}

// Transferer moves an already computed amount between accounts.
type Transferer interface {
	Transfer(ctx context.Context, id asset.AssetID, from, to ledger.Account, amount uint64) error
}

// FeeSource builds the fee model of one evaluation.
type FeeSource interface {
	FeeModel(ctx context.Context, pair domain.TokenPair) (domain.FeeModel, error)
}

// Executor runs the atomic execution sequence for a pair.
type Executor interface {
	Execute(ctx context.Context, pair domain.TokenPair, amount uint64) domain.ExecutionOutcome
}

// PairLock grants single-flight ownership of a pair key. ok is false when
// another execution holds it.
type PairLock interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// OutcomeStore persists execution outcomes.
type OutcomeStore interface {
	Save(ctx context.Context, outcome domain.ExecutionOutcome) error
}

// Reporter displays monitor activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportTick summarizes one polling cycle.
	ReportTick(summary TickSummary)

	// ReportOpportunity shows a positive decision.
	ReportOpportunity(opp *domain.Opportunity)

	// ReportOutcome shows the terminal state of an execution.
	ReportOutcome(outcome domain.ExecutionOutcome)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
