package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// GasQuoter prices one execution in wei of the native coin.
type GasQuoter interface {
	ExecutionCost(ctx context.Context) (uint64, error)
}

// CostModelConfig holds the non-venue cost inputs.
type CostModelConfig struct {
	Settlement       *asset.Asset
	ConversionFeeBps uint64
	MinProfitBps     uint64
	// GasEstimate is in settlement units.
	GasEstimate uint64
	FeedTTL     time.Duration
}

// CostModel assembles the FeeModel of a pair: venue fee rates, the loan fee,
// and the gas estimate converted into the pair's output asset.
type CostModel struct {
	cfg    CostModelConfig
	loans  Loans
	venues Venues
	feed   pricingApp.PriceFeed
	gas    GasQuoter
	rates  *cache.Cache[string, decimal.Decimal]
	logger logger.LoggerInterface
}

// NewCostModel creates a CostModel. gas may be nil, in which case the fixed
// estimate is used.
func NewCostModel(cfg CostModelConfig, loans Loans, venues Venues, feed pricingApp.PriceFeed, gas GasQuoter, log logger.LoggerInterface) *CostModel {
	if cfg.FeedTTL <= 0 {
		cfg.FeedTTL = 10 * time.Second
	}
	return &CostModel{
		cfg:    cfg,
		loans:  loans,
		venues: venues,
		feed:   feed,
		gas:    gas,
		// No sweeper: expired rates stay readable as a fallback.
		rates:  cache.New[string, decimal.Decimal](0),
		logger: log,
	}
}

var _ FeeSource = (*CostModel)(nil)

// FeeModel builds the fee model for pair. Only an unknown venue is an error;
// gas and feed problems degrade to fallbacks.
func (m *CostModel) FeeModel(ctx context.Context, pair domain.TokenPair) (domain.FeeModel, error) {
	va, err := m.venues.Venue(pair.VenueA)
	if err != nil {
		return domain.FeeModel{}, err
	}
	vb, err := m.venues.Venue(pair.VenueB)
	if err != nil {
		return domain.FeeModel{}, err
	}

	return domain.FeeModel{
		LoanFeeBps:       m.loans.FeeBps(),
		VenueAFeeBps:     va.FeeBps(),
		VenueBFeeBps:     vb.FeeBps(),
		ConversionFeeBps: m.cfg.ConversionFeeBps,
		ConversionHops:   pair.NeedsConversion(m.cfg.Settlement),
		GasEstimate:      m.GasInOutput(ctx, pair, m.gasEstimate(ctx)),
		MinProfitBps:     m.cfg.MinProfitBps,
	}, nil
}

func (m *CostModel) gasEstimate(ctx context.Context) uint64 {
	if m.gas == nil {
		return m.cfg.GasEstimate
	}
	wei, err := m.gas.ExecutionCost(ctx)
	if err != nil {
		m.logger.Warn(ctx, "dynamic gas unavailable, using fixed estimate", "error", err)
		return m.cfg.GasEstimate
	}
	return wei
}

// GasInOutput converts gas from settlement units into pair.Output units
// through the pair's feed symbol. Without a usable rate the unconverted
// estimate is returned.
func (m *CostModel) GasInOutput(ctx context.Context, pair domain.TokenPair, gas uint64) uint64 {
	if pair.Output.Equals(m.cfg.Settlement) || pair.GasFeedSymbol == "" {
		return gas
	}

	rate, ok := m.rate(ctx, pair.GasFeedSymbol)
	if !ok {
		m.logger.Warn(ctx, "no feed price for gas conversion, using unconverted estimate",
			"symbol", pair.GasFeedSymbol, "pair", pair.Symbol())
		return gas
	}

	converted := asset.FormatRaw(gas, m.cfg.Settlement.Decimals()).Mul(rate).Truncate(int32(pair.Output.Decimals()))
	raw, err := asset.ToRaw(converted, pair.Output.Decimals())
	if err != nil {
		m.logger.Warn(ctx, "gas conversion out of range, using unconverted estimate",
			"symbol", pair.GasFeedSymbol, "error", err)
		return gas
	}
	return raw
}

func (m *CostModel) rate(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if r, ok := m.rates.Get(ctx, symbol); ok {
		return r, true
	}

	fp, err := m.feed.Price(ctx, symbol)
	if err == nil && fp.Rate.IsPositive() {
		m.rates.Set(ctx, symbol, fp.Rate, m.cfg.FeedTTL)
		return fp.Rate, true
	}

	if r, ok := m.rates.GetStale(ctx, symbol); ok {
		m.logger.Warn(ctx, "price feed unavailable, using stale rate", "symbol", symbol, "rate", r.String(), "error", err)
		return r, true
	}
	return decimal.Decimal{}, false
}

// Close releases the rate cache.
func (m *CostModel) Close() {
	m.rates.Close()
}
