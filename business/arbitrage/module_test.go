package arbitrage

import (
	"context"
	"strings"
	"testing"

	arbitrageDI "github.com/fd1az/flashloan-arb/business/arbitrage/di"
	"github.com/fd1az/flashloan-arb/business/blockchain"
	"github.com/fd1az/flashloan-arb/business/lending"
	"github.com/fd1az/flashloan-arb/business/pricing"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/monolith"
)

func paperConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	return cfg
}

func TestBuildPairs(t *testing.T) {
	reg := asset.DefaultRegistry()

	cfg := paperConfig(t)
	pairs, err := buildPairs(reg, cfg, asset.WETH)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d", len(pairs))
	}
	p := pairs[0]
	if p.TradeAmount != 1_000_000_000 || p.LoanAmount != 400_000_000_000_000_000 {
		t.Errorf("amounts = %d, %d", p.TradeAmount, p.LoanAmount)
	}
	if p.ConversionVenue != "desk" || p.GasFeedSymbol != "ETHUSDC" {
		t.Errorf("pair = %+v", p)
	}

	tests := []struct {
		name   string
		mutate func(*config.PairConfig)
		want   string
	}{
		{"unknown asset", func(pc *config.PairConfig) { pc.Input = "NOPE" }, "pairs[0].input"},
		{"bad amount", func(pc *config.PairConfig) { pc.TradeAmount = "lots" }, "pairs[0].trade_amount"},
		{"same venue", func(pc *config.PairConfig) { pc.VenueB = pc.VenueA }, "distinct venues"},
		{"missing conversion", func(pc *config.PairConfig) { pc.ConversionVenue = "" }, "conversion_venue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := paperConfig(t)
			tt.mutate(&cfg.Pairs[0])
			_, err := buildPairs(reg, cfg, asset.WETH)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestModule_PaperRoundTrip(t *testing.T) {
	for _, source := range []string{config.SourceDirect, config.SourceSimulation} {
		t.Run(source, func(t *testing.T) {
			ctx := context.Background()
			cfg := paperConfig(t)
			cfg.Monitor.PriceSource = source

			mono, err := monolith.New(ctx, cfg, logger.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer mono.Close()

			modules := []monolith.Module{&blockchain.Module{}, &lending.Module{}, &pricing.Module{}, &Module{}}
			if err := mono.RegisterModules(modules...); err != nil {
				t.Fatal(err)
			}
			if err := mono.StartModules(ctx, modules...); err != nil {
				t.Fatal(err)
			}

			mon := arbitrageDI.GetMonitor(mono.Services())
			summary := mon.Tick(ctx)
			mon.Wait()

			if len(summary.Pairs) != 1 {
				t.Fatalf("pairs = %d", len(summary.Pairs))
			}
			st := summary.Pairs[0]
			if st.Err != nil || !st.Profitable || !st.Triggered {
				t.Fatalf("status = %+v", st)
			}

			stats := mon.Stats()
			if stats.Executions != 1 || stats.Successes != 1 {
				t.Fatalf("stats = %+v", stats)
			}
			treasury := mono.Ledger().Balance(ledger.Account(cfg.Execution.ProfitDestination), asset.WETH.ID())
			if treasury == 0 || treasury != stats.RealizedProfit {
				t.Errorf("treasury = %d, realized = %d", treasury, stats.RealizedProfit)
			}
		})
	}
}

func TestModule_PaperDryRun(t *testing.T) {
	ctx := context.Background()
	cfg := paperConfig(t)
	cfg.Execution.DryRun = true

	mono, err := monolith.New(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer mono.Close()

	modules := []monolith.Module{&blockchain.Module{}, &lending.Module{}, &pricing.Module{}, &Module{}}
	if err := mono.RegisterModules(modules...); err != nil {
		t.Fatal(err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		t.Fatal(err)
	}

	mon := arbitrageDI.GetMonitor(mono.Services())
	st := mon.Tick(ctx).Pairs[0]
	mon.Wait()

	if st.Err != nil || !st.Profitable || st.Triggered || st.InFlight {
		t.Fatalf("status = %+v, want profitable and not triggered", st)
	}
	stats := mon.Stats()
	if stats.Opportunities != 1 || stats.Executions != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if b := mono.Ledger().Balance(ledger.Account(cfg.Execution.ProfitDestination), asset.WETH.ID()); b != 0 {
		t.Errorf("treasury = %d, want untouched", b)
	}
}
