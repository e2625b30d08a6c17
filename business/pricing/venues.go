package pricing

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/aggregator"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/paper"
	"github.com/fd1az/flashloan-arb/business/pricing/infra/uniswap"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

func paperFeed(cfg *config.Config) (*paper.Feed, error) {
	prices := make(map[string]decimal.Decimal, len(cfg.Paper.FeedPrices))
	for symbol, s := range cfg.Paper.FeedPrices {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("paper.feed_prices.%s: %w", symbol, err)
		}
		prices[symbol] = d
	}
	return paper.NewFeed(prices), nil
}

func resolveAmount(reg *asset.Registry, chainID uint64, symbol, amount string) (*asset.Asset, uint64, error) {
	a, err := reg.Resolve(symbol, chainID)
	if err != nil {
		return nil, 0, err
	}
	amt, err := asset.ParseString(a, amount)
	if err != nil {
		return nil, 0, fmt.Errorf("%s amount %q: %w", symbol, amount, err)
	}
	return a, amt.Raw(), nil
}

// paperVenues seeds pools and desks on the shared ledger.
func paperVenues(sr di.ServiceRegistry, cfg *config.Config) ([]app.Venue, error) {
	l := sr.Get("ledger").(*ledger.Ledger)
	reg := sr.Get("assetRegistry").(*asset.Registry)
	trader := ledger.Account(cfg.Execution.Account)
	chainID := cfg.Ethereum.ChainID

	venues := make([]app.Venue, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		id := domain.VenueID(vc.ID)

		switch vc.Kind {
		case config.KindConstantProduct:
			set := paper.NewPoolSet(vc.ID)
			for _, pc := range cfg.Paper.Pools {
				if pc.Venue != vc.ID {
					continue
				}
				x, rx, err := resolveAmount(reg, chainID, pc.AssetX, pc.ReserveX)
				if err != nil {
					return nil, err
				}
				y, ry, err := resolveAmount(reg, chainID, pc.AssetY, pc.ReserveY)
				if err != nil {
					return nil, err
				}
				name := fmt.Sprintf("%s:%s-%s", vc.ID, x.Symbol(), y.Symbol())
				pool, err := paper.NewPool(l, name, trader, x.ID(), y.ID(), rx, ry, vc.FeeBps)
				if err != nil {
					return nil, fmt.Errorf("seed pool %s: %w", name, err)
				}
				set.Add(pool)
			}
			venues = append(venues, app.NewConstantProductVenue(id, vc.FeeBps, set, set))

		case config.KindRouted:
			desk := paper.NewDesk(l, reg, vc.ID, trader)
			for _, rc := range cfg.Paper.Rates {
				if rc.Venue != vc.ID {
					continue
				}
				from, err := reg.Resolve(rc.From, chainID)
				if err != nil {
					return nil, err
				}
				to, err := reg.Resolve(rc.To, chainID)
				if err != nil {
					return nil, err
				}
				rate, err := decimal.NewFromString(rc.Rate)
				if err != nil {
					return nil, fmt.Errorf("rate %s→%s: %w", rc.From, rc.To, err)
				}
				if err := desk.SetRate(from.ID(), to.ID(), rate); err != nil {
					return nil, err
				}
			}
			for symbol, amount := range cfg.Paper.DeskBalances {
				a, raw, err := resolveAmount(reg, chainID, symbol, amount)
				if err != nil {
					return nil, err
				}
				if err := desk.Fund(a.ID(), raw); err != nil {
					return nil, err
				}
			}
			venues = append(venues, app.NewRoutedVenue(id, vc.FeeBps, vc.MaxSlippageBps, desk))
		}
	}
	return venues, nil
}

// liveVenues connects to on-chain pools and aggregator APIs. Without a
// signing key venues can quote but not swap.
func liveVenues(sr di.ServiceRegistry, cfg *config.Config) ([]app.Venue, error) {
	log := sr.Get("logger").(logger.LoggerInterface)
	caller := blockchainDI.GetCaller(sr)

	var sender app.TxSubmitter
	if cfg.Ethereum.PrivateKey != "" {
		sender = blockchainDI.GetTokens(sr)
	}

	venues := make([]app.Venue, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		id := domain.VenueID(vc.ID)

		switch vc.Kind {
		case config.KindConstantProduct:
			if !common.IsHexAddress(vc.Factory) || !common.IsHexAddress(vc.Router) {
				return nil, fmt.Errorf("venue %s: factory and router addresses are required", vc.ID)
			}
			pool, err := uniswap.NewPool(uniswap.Config{
				Venue:       vc.ID,
				Factory:     common.HexToAddress(vc.Factory),
				Router:      common.HexToAddress(vc.Router),
				SwapTimeout: cfg.Execution.StepTimeout,
			}, caller, sender, log)
			if err != nil {
				return nil, err
			}
			venues = append(venues, app.NewConstantProductVenue(id, vc.FeeBps, pool, pool))

		case config.KindRouted:
			if vc.BaseURL == "" {
				return nil, fmt.Errorf("venue %s: base_url is required", vc.ID)
			}
			client, err := aggregator.New(aggregator.Config{
				Venue:             vc.ID,
				BaseURL:           vc.BaseURL,
				APIKey:            vc.APIKey,
				Timeout:           10 * time.Second,
				RequestsPerSecond: vc.RequestsPerSecond,
				Burst:             vc.Burst,
			}, sender, log)
			if err != nil {
				return nil, err
			}
			venues = append(venues, app.NewRoutedVenue(id, vc.FeeBps, vc.MaxSlippageBps, client))
		}
	}
	return venues, nil
}
