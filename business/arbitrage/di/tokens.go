// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra/postgres"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra/redislock"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Monitor      = di.NewToken[*app.Monitor]("arbitrage.Monitor")
	Orchestrator = di.NewToken[*app.Orchestrator]("arbitrage.Orchestrator")
)

// Private dependency tokens - internal to arbitrage module
var (
	Pairs       = di.NewToken[[]domain.TokenPair]("arbitrage:pairs")
	CostModel   = di.NewToken[*app.CostModel]("arbitrage:costModel")
	QuoteSource = di.NewToken[app.QuoteSource]("arbitrage:quoteSource")
	Reporter    = di.NewToken[app.Reporter]("arbitrage:reporter")

	// Optional infrastructure, resolved only when configured.
	PairLock     = di.NewToken[*redislock.Lock]("arbitrage:pairLock")
	OutcomeStore = di.NewToken[*postgres.Store]("arbitrage:outcomeStore")
)

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}

func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetPairs(c di.ServiceRegistry) []domain.TokenPair {
	return di.GetToken(c, Pairs)
}

func GetCostModel(c di.ServiceRegistry) *app.CostModel {
	return di.GetToken(c, CostModel)
}

func GetQuoteSource(c di.ServiceRegistry) app.QuoteSource {
	return di.GetToken(c, QuoteSource)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetPairLock(c di.ServiceRegistry) *redislock.Lock {
	return di.GetToken(c, PairLock)
}

func GetOutcomeStore(c di.ServiceRegistry) *postgres.Store {
	return di.GetToken(c, OutcomeStore)
}
