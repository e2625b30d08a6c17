// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) *ethereum.GasOracle {
		client := sr.Get("ethClient").(*ethclient.Client)
		log := sr.Get("logger").(logger.LoggerInterface)
		cfg := sr.Get("config").(*config.Config)

		oracle, err := ethereum.NewGasOracle(client, ethereum.GasOracleConfig{
			TTL:     cfg.Fees.GasPriceTTL,
			CapGwei: cfg.Fees.MaxGasPriceGwei,
		}, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.GasService, func(sr di.ServiceRegistry) *app.GasService {
		cfg := sr.Get("config").(*config.Config)
		oracle := blockchainDI.GetGasOracle(sr)
		return app.NewGasService(oracle, oracle, cfg.Fees.GasLimit)
	})

	di.RegisterToken(c, blockchainDI.Caller, func(sr di.ServiceRegistry) *ethereum.Caller {
		return ethereum.NewCaller(sr.Get("ethClient").(*ethclient.Client))
	})

	di.RegisterToken(c, blockchainDI.Submitter, func(sr di.ServiceRegistry) *ethereum.Submitter {
		cfg := sr.Get("config").(*config.Config)
		client := sr.Get("ethClient").(*ethclient.Client)
		log := sr.Get("logger").(logger.LoggerInterface)

		sub, err := ethereum.NewSubmitter(client, cfg.Ethereum.PrivateKey, ethereum.SubmitterConfig{
			ChainID:        new(big.Int).SetUint64(cfg.Ethereum.ChainID),
			ReceiptTimeout: cfg.Ethereum.ReceiptTimeout,
			ReceiptPoll:    cfg.Ethereum.ReceiptPoll,
			GasMarginPct:   20,
		}, log)
		if err != nil {
			panic("failed to create submitter: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.Tokens, func(sr di.ServiceRegistry) *ethereum.Tokens {
		return ethereum.NewTokens(blockchainDI.GetSubmitter(sr))
	})

	return nil
}

// Startup checks the node in live mode.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if cfg.IsPaper() {
		log.Info(ctx, "blockchain module idle in paper mode")
		return nil
	}

	svc := blockchainDI.GetGasService(mono.Services())
	if err := svc.Ping(ctx, cfg.Ethereum.RequestTimeout); err != nil {
		// Quotes fail transiently until the node answers.
		log.Error(ctx, "ethereum node unreachable", "error", err)
	}

	log.Info(ctx, "blockchain module started", "chain_id", cfg.Ethereum.ChainID)
	return nil
}
