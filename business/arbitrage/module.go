// Package arbitrage implements the arbitrage bounded context: the watch-list
// monitor, the evaluator and the flash-loan execution saga.
package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/flashloan-arb/business/arbitrage/di"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra/paper"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra/postgres"
	"github.com/fd1az/flashloan-arb/business/arbitrage/infra/redislock"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	lendingDI "github.com/fd1az/flashloan-arb/business/lending/di"
	pricingDI "github.com/fd1az/flashloan-arb/business/pricing/di"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// PaperProgramAddress hosts the in-process price-check program.
var PaperProgramAddress = common.HexToAddress("0x00000000000000000000000000000000000f1a5b")

const connectTimeout = 10 * time.Second

// Module implements the arbitrage bounded context.
type Module struct {
	mu      sync.Mutex
	closers []func() error
}

func (m *Module) onClose(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, fn)
}

// Close releases the connections opened by resolved services.
func (m *Module) Close() error {
	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	return errors.Join(errs...)
}

func settlementAsset(sr di.ServiceRegistry, cfg *config.Config) *asset.Asset {
	reg := sr.Get("assetRegistry").(*asset.Registry)
	a, err := reg.Resolve(cfg.Execution.SettlementAsset, cfg.Ethereum.ChainID)
	if err != nil {
		panic("unknown settlement asset: " + err.Error())
	}
	return a
}

// buildPairs turns the configured watch-list into validated pairs.
func buildPairs(reg *asset.Registry, cfg *config.Config, settlement *asset.Asset) ([]domain.TokenPair, error) {
	chainID := cfg.Ethereum.ChainID
	pairs := make([]domain.TokenPair, 0, len(cfg.Pairs))
	for i, pc := range cfg.Pairs {
		in, err := reg.Resolve(pc.Input, chainID)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d].input: %w", i, err)
		}
		out, err := reg.Resolve(pc.Output, chainID)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d].output: %w", i, err)
		}
		trade, err := asset.ParseString(in, pc.TradeAmount)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d].trade_amount: %w", i, err)
		}
		loan, err := asset.ParseString(settlement, pc.LoanAmount)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d].loan_amount: %w", i, err)
		}

		pair, err := domain.NewTokenPair(in, out, trade.Raw(), loan.Raw(),
			pricingDomain.VenueID(pc.VenueA), pricingDomain.VenueID(pc.VenueB))
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		pair.ConversionVenue = pricingDomain.VenueID(pc.ConversionVenue)
		pair.GasFeedSymbol = pc.GasFeedSymbol
		if pair.NeedsConversion(settlement) && pair.ConversionVenue == "" {
			return nil, fmt.Errorf("pairs[%d]: %s needs a conversion_venue from %s", i, pair.Symbol(), settlement)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Pairs, func(sr di.ServiceRegistry) []domain.TokenPair {
		cfg := sr.Get("config").(*config.Config)
		reg := sr.Get("assetRegistry").(*asset.Registry)

		pairs, err := buildPairs(reg, cfg, settlementAsset(sr, cfg))
		if err != nil {
			panic("invalid watch-list: " + err.Error())
		}
		return pairs
	})

	di.RegisterToken(c, arbitrageDI.CostModel, func(sr di.ServiceRegistry) *app.CostModel {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		settlement := settlementAsset(sr, cfg)

		gas, err := asset.ParseString(settlement, cfg.Fees.GasEstimate)
		if err != nil {
			panic("invalid fees.gas_estimate: " + err.Error())
		}

		var quoter app.GasQuoter
		if cfg.Fees.DynamicGas && !cfg.IsPaper() {
			quoter = blockchainDI.GetGasService(sr)
		}

		return app.NewCostModel(app.CostModelConfig{
			Settlement:       settlement,
			ConversionFeeBps: cfg.Fees.ConversionFeeBps,
			MinProfitBps:     cfg.Fees.MinProfitBps,
			GasEstimate:      gas.Raw(),
			FeedTTL:          cfg.Monitor.FeedTTL,
		}, lendingDI.GetLoanService(sr), pricingDI.GetQuoterService(sr), pricingDI.GetPriceFeed(sr), quoter, log)
	})

	di.RegisterToken(c, arbitrageDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		ocfg := app.OrchestratorConfig{
			Settlement:        settlementAsset(sr, cfg),
			Account:           ledger.Account(cfg.Execution.Account),
			ProfitDestination: ledger.Account(cfg.Execution.ProfitDestination),
			SlippageBps:       cfg.Execution.SlippageBps,
			StepTimeout:       cfg.Execution.StepTimeout,
			TransferRetries:   cfg.Execution.TransferRetries,
		}

		var transfers app.Transferer
		if cfg.IsPaper() {
			l := sr.Get("ledger").(*ledger.Ledger)
			l.Open(ocfg.Account, ocfg.ProfitDestination)
			transfers = paper.NewTransferer(l)
		} else {
			if !common.IsHexAddress(cfg.Execution.ProfitDestination) {
				panic("execution.profit_destination must be an address in live mode")
			}
			tokens := blockchainDI.GetTokens(sr)
			ocfg.Account = ledger.Account(tokens.Account().Hex())
			ocfg.ProfitDestination = ledger.Account(common.HexToAddress(cfg.Execution.ProfitDestination).Hex())
			transfers = tokens
		}

		o, err := app.NewOrchestrator(ocfg, pricingDI.GetQuoterService(sr), lendingDI.GetLoanService(sr),
			transfers, arbitrageDI.GetCostModel(sr), log)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return o
	})

	di.RegisterToken(c, arbitrageDI.QuoteSource, func(sr di.ServiceRegistry) app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		quoter := pricingDI.GetQuoterService(sr)

		if cfg.Monitor.PriceSource != config.SourceSimulation {
			return app.NewDirectSource(quoter)
		}
		if cfg.IsPaper() {
			program := paper.NewProgram(PaperProgramAddress, quoter, arbitrageDI.GetPairs(sr))
			return app.NewSimulationSource(program, program.Address())
		}
		return app.NewSimulationSource(blockchainDI.GetCaller(sr), common.HexToAddress(cfg.Execution.ProgramAddress))
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		settlement := settlementAsset(sr, cfg)
		if cfg.App.TUIMode {
			return infra.NewTUIReporter(settlement)
		}
		return infra.NewConsoleReporter(os.Stdout, settlement)
	})

	di.RegisterToken(c, arbitrageDI.PairLock, func(sr di.ServiceRegistry) *redislock.Lock {
		cfg := sr.Get("config").(*config.Config)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		lock, err := redislock.New(ctx, redislock.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Monitor.LockTTL,
		})
		if err != nil {
			panic("failed to connect pair lock: " + err.Error())
		}
		m.onClose(lock.Close)
		return lock
	})

	di.RegisterToken(c, arbitrageDI.OutcomeStore, func(sr di.ServiceRegistry) *postgres.Store {
		cfg := sr.Get("config").(*config.Config)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		store, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			panic("failed to connect outcome store: " + err.Error())
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			panic("failed to migrate outcome store: " + err.Error())
		}
		m.onClose(func() error {
			store.Close()
			return nil
		})
		return store
	})

	di.RegisterToken(c, arbitrageDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		opts := []app.MonitorOption{app.WithReporter(arbitrageDI.GetReporter(sr))}
		if cfg.Monitor.Lock == "redis" {
			opts = append(opts, app.WithPairLock(arbitrageDI.GetPairLock(sr)))
		}
		if cfg.Postgres.Enabled() {
			opts = append(opts, app.WithOutcomeStore(arbitrageDI.GetOutcomeStore(sr)))
		}

		// A dry run never resolves the orchestrator, so no signer is built.
		var exec app.Executor
		if cfg.Execution.DryRun {
			opts = append(opts, app.WithDryRun())
		} else {
			exec = arbitrageDI.GetOrchestrator(sr)
		}

		mon, err := app.NewMonitor(app.MonitorConfig{
			Interval:      cfg.Monitor.Interval,
			MaxConcurrent: cfg.Monitor.MaxConcurrent,
			QuoteTimeout:  cfg.Monitor.QuoteTimeout,
		},
			arbitrageDI.GetPairs(sr),
			arbitrageDI.GetQuoteSource(sr),
			arbitrageDI.GetCostModel(sr),
			exec,
			log,
			opts...,
		)
		if err != nil {
			panic("failed to create monitor: " + err.Error())
		}
		return mon
	})

	return nil
}

// Startup builds the monitor and its dependencies. The caller starts the
// polling loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	mon := arbitrageDI.GetMonitor(mono.Services())

	for _, p := range mon.Pairs() {
		mono.Logger().Info(ctx, "watching pair",
			"pair", p.Symbol(),
			"venue_a", p.VenueA,
			"venue_b", p.VenueB,
			"trade", asset.NewAmount(p.Input, p.TradeAmount).String(),
		)
	}
	mono.Logger().Info(ctx, "arbitrage module started",
		"mode", cfg.Execution.Mode,
		"price_source", cfg.Monitor.PriceSource,
		"lock", cfg.Monitor.Lock,
		"persist", cfg.Postgres.Enabled(),
		"dry_run", cfg.Execution.DryRun,
	)
	return nil
}
