// Package pricing implements the pricing bounded context: venues, quotes and
// reference price feeds.
package pricing

import (
	"context"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDI "github.com/fd1az/flashloan-arb/business/pricing/di"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/binance"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.PriceFeed, func(sr di.ServiceRegistry) app.PriceFeed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Feed.Provider != "binance" {
			feed, err := paperFeed(cfg)
			if err != nil {
				panic("failed to create paper feed: " + err.Error())
			}
			return feed
		}

		feed, err := binance.NewFeed(binance.Config{
			BaseURL:           cfg.Feed.BaseURL,
			Timeout:           cfg.Feed.Timeout,
			RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		}, log)
		if err != nil {
			panic("failed to create binance feed: " + err.Error())
		}
		return feed
	})

	di.RegisterToken(c, pricingDI.QuoterService, func(sr di.ServiceRegistry) *app.QuoterService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewQuoterService(cfg.Monitor.QuoteTimeout, log)
		if err != nil {
			panic("failed to create quoter service: " + err.Error())
		}

		build := liveVenues
		if cfg.IsPaper() {
			build = paperVenues
		}
		venues, err := build(sr, cfg)
		if err != nil {
			panic("failed to build venues: " + err.Error())
		}
		for _, v := range venues {
			svc.Register(v)
		}
		return svc
	})

	return nil
}

// Startup builds the venues eagerly so configuration errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := pricingDI.GetQuoterService(mono.Services())
	_ = pricingDI.GetPriceFeed(mono.Services())

	log.Info(ctx, "pricing module started", "venues", svc.Venues(), "feed", mono.Config().Feed.Provider)
	return nil
}
