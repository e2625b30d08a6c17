// Package lending implements the flash-loan bounded context.
package lending

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/lending/app"
	lendingDI "github.com/fd1az/flashloan-arb/business/lending/di"
	"github.com/fd1az/flashloan-arb/business/lending/infra/aave"
	"github.com/fd1az/flashloan-arb/business/lending/infra/paper"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// Module implements the lending bounded context.
type Module struct{}

// RegisterServices registers all lending services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, lendingDI.Lender, func(sr di.ServiceRegistry) app.Lender {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Loan.Venue == "aave" {
			// Without a key the pool can report liquidity but not lend.
			var sender aave.Sender
			if cfg.Ethereum.PrivateKey != "" {
				sender = blockchainDI.GetTokens(sr)
			}
			return aave.NewPool(common.HexToAddress(cfg.Loan.PoolAddress), blockchainDI.GetCaller(sr), sender)
		}

		l := sr.Get("ledger").(*ledger.Ledger)
		reg := sr.Get("assetRegistry").(*asset.Registry)

		lender := paper.NewLender(l, "paper", ledger.Account(cfg.Execution.Account))
		settlement, err := reg.Resolve(cfg.Execution.SettlementAsset, cfg.Ethereum.ChainID)
		if err != nil {
			panic("unknown settlement asset: " + err.Error())
		}
		liquidity, err := asset.ParseString(settlement, cfg.Paper.LoanLiquidity)
		if err != nil {
			panic("invalid paper.loan_liquidity: " + err.Error())
		}
		if err := lender.Fund(settlement.ID(), liquidity.Raw()); err != nil {
			panic("failed to fund paper lender: " + err.Error())
		}
		return lender
	})

	di.RegisterToken(c, lendingDI.LoanService, func(sr di.ServiceRegistry) *app.LoanService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewLoanService(lendingDI.GetLender(sr), cfg.Loan.FeeBps, log)
	})

	return nil
}

// Startup resolves the lender so seeding and wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := lendingDI.GetLoanService(mono.Services())
	lender := lendingDI.GetLender(mono.Services())

	mono.Logger().Info(ctx, "lending module started", "lender", lender.Name(), "fee_bps", svc.FeeBps())
	return nil
}
