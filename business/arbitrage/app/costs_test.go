package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

type scriptedFeed struct {
	rate string
	err  error

	mu    sync.Mutex
	calls int
}

func (f *scriptedFeed) Price(_ context.Context, symbol string) (pricingDomain.FeedPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return pricingDomain.FeedPrice{}, f.err
	}
	return pricingDomain.FeedPrice{Symbol: symbol, Rate: decimal.RequireFromString(f.rate), At: time.Now()}, nil
}

func (f *scriptedFeed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fixedGas struct {
	wei uint64
	err error
}

func (g fixedGas) ExecutionCost(context.Context) (uint64, error) { return g.wei, g.err }

const gasWei uint64 = 5_000_000_000_000 // 0.000005 WETH

func newCostModel(f *fixture, feed *scriptedFeed, gas app.GasQuoter, ttl time.Duration) *app.CostModel {
	return app.NewCostModel(app.CostModelConfig{
		Settlement:       asset.WETH,
		ConversionFeeBps: 60,
		MinProfitBps:     5,
		GasEstimate:      gasWei,
		FeedTTL:          ttl,
	}, f.loans, f.venues, feed, gas, logger.NewNop())
}

func feedPair(f *fixture) domain.TokenPair {
	p := f.pair
	p.GasFeedSymbol = "ETHUSDT"
	return p
}

func TestCostModel_FeeModel(t *testing.T) {
	f := newFixture()
	m := newCostModel(f, &scriptedFeed{rate: "2500"}, nil, time.Minute)
	defer m.Close()

	got, err := m.FeeModel(context.Background(), feedPair(f))
	if err != nil {
		t.Fatalf("FeeModel: %v", err)
	}
	want := domain.FeeModel{
		LoanFeeBps:       20,
		VenueAFeeBps:     0,
		VenueBFeeBps:     25,
		ConversionFeeBps: 60,
		ConversionHops:   true,
		GasEstimate:      12_500, // 0.000005 * 2500 USDT
		MinProfitBps:     5,
	}
	if got != want {
		t.Errorf("FeeModel = %+v\nwant %+v", got, want)
	}
}

func TestCostModel_UnknownVenue(t *testing.T) {
	f := newFixture()
	m := newCostModel(f, &scriptedFeed{rate: "2500"}, nil, time.Minute)
	defer m.Close()

	pair := f.pair
	pair.VenueB = "nowhere"
	if _, err := m.FeeModel(context.Background(), pair); apperror.GetCode(err) != apperror.CodeVenueNotFound {
		t.Fatalf("err = %v, want VENUE_NOT_FOUND", err)
	}
}

func TestCostModel_GasConversion(t *testing.T) {
	ctx := context.Background()
	feedDown := errors.New("feed down")

	tests := []struct {
		name      string
		pair      func(*fixture) domain.TokenPair
		feed      *scriptedFeed
		gas       app.GasQuoter
		want      uint64
		wantCalls int
	}{
		{
			name:      "converted_through_feed",
			pair:      feedPair,
			feed:      &scriptedFeed{rate: "2500"},
			want:      12_500,
			wantCalls: 1,
		},
		{
			name:      "no_feed_symbol",
			pair:      func(f *fixture) domain.TokenPair { return f.pair },
			feed:      &scriptedFeed{rate: "2500"},
			want:      gasWei,
			wantCalls: 0,
		},
		{
			name:      "feed_unavailable_without_history",
			pair:      feedPair,
			feed:      &scriptedFeed{err: feedDown},
			want:      gasWei,
			wantCalls: 1,
		},
		{
			name:      "non_positive_rate",
			pair:      feedPair,
			feed:      &scriptedFeed{rate: "0"},
			want:      gasWei,
			wantCalls: 1,
		},
		{
			name:      "dynamic_gas",
			pair:      feedPair,
			feed:      &scriptedFeed{rate: "2500"},
			gas:       fixedGas{wei: 2 * gasWei},
			want:      25_000,
			wantCalls: 1,
		},
		{
			name:      "dynamic_gas_failure_uses_fixed_estimate",
			pair:      feedPair,
			feed:      &scriptedFeed{rate: "2500"},
			gas:       fixedGas{err: apperror.New(apperror.CodeGasEstimationFailed)},
			want:      12_500,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			m := newCostModel(f, tt.feed, tt.gas, time.Minute)
			defer m.Close()

			got, err := m.FeeModel(ctx, tt.pair(f))
			if err != nil {
				t.Fatalf("FeeModel: %v", err)
			}
			if got.GasEstimate != tt.want {
				t.Errorf("gas = %d, want %d", got.GasEstimate, tt.want)
			}
			if tt.feed.calls != tt.wantCalls {
				t.Errorf("feed calls = %d, want %d", tt.feed.calls, tt.wantCalls)
			}
		})
	}
}

func TestCostModel_SettlementOutputSkipsFeed(t *testing.T) {
	f := newFixture()
	feed := &scriptedFeed{rate: "2500"}
	m := newCostModel(f, feed, nil, time.Minute)
	defer m.Close()

	pair, err := domain.NewTokenPair(asset.USDC, asset.WETH, tradeAmount, loanAmount, "desk", "pool")
	if err != nil {
		t.Fatal(err)
	}
	pair.GasFeedSymbol = "ETHUSDC"
	if got := m.GasInOutput(context.Background(), pair, gasWei); got != gasWei || feed.calls != 0 {
		t.Errorf("gas = %d after %d feed calls", got, feed.calls)
	}
}

func TestCostModel_CachesRate(t *testing.T) {
	f := newFixture()
	feed := &scriptedFeed{rate: "2500"}
	m := newCostModel(f, feed, nil, time.Hour)
	defer m.Close()

	for range 3 {
		if got := m.GasInOutput(context.Background(), feedPair(f), gasWei); got != 12_500 {
			t.Fatalf("gas = %d", got)
		}
	}
	if feed.calls != 1 {
		t.Errorf("feed calls = %d, want 1", feed.calls)
	}
}

func TestCostModel_StaleRateFallback(t *testing.T) {
	f := newFixture()
	feed := &scriptedFeed{rate: "2500"}
	m := newCostModel(f, feed, nil, time.Nanosecond)
	defer m.Close()
	ctx := context.Background()

	if got := m.GasInOutput(ctx, feedPair(f), gasWei); got != 12_500 {
		t.Fatalf("fresh gas = %d", got)
	}

	time.Sleep(time.Millisecond)
	feed.fail(errors.New("feed down"))

	if got := m.GasInOutput(ctx, feedPair(f), gasWei); got != 12_500 {
		t.Errorf("stale gas = %d, want the last known conversion", got)
	}
	if feed.calls != 2 {
		t.Errorf("feed calls = %d, want a refresh attempt", feed.calls)
	}
}
