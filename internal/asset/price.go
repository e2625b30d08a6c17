package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price is an observed exchange rate: one whole base unit costs Rate whole
// quote units. It comes from external feeds and is only used to convert cost
// estimates between currencies, never for trade math.
type Price struct {
	rate      decimal.Decimal
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice creates a Price.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate, base: base, quote: quote, timestamp: timestamp}
}

func (p Price) Rate() decimal.Decimal { return p.rate }
func (p Price) Base() *Asset { return p.base }
func (p Price) Quote() *Asset { return p.quote }
func (p Price) Timestamp() time.Time { return p.timestamp }
func (p Price) IsZero() bool { return p.rate.IsZero() }

// Pair renders "WETH/USDC".
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return p.base.Symbol() + "/" + p.quote.Symbol()
}

// ConvertRaw converts a raw base amount to raw quote units, truncating toward
// zero and rescaling between the two assets' decimals.
func (p Price) ConvertRaw(raw uint64) (uint64, error) {
	if p.base == nil || p.quote == nil {
		return 0, ErrNilAsset
	}
	whole := FormatRaw(raw, p.base.Decimals()).Mul(p.rate)
	return ToRaw(whole.Truncate(int32(p.quote.Decimals())), p.quote.Decimals())
}

// Convert converts an Amount of the base asset into the quote asset.
func (p Price) Convert(a Amount) (Amount, error) {
	if a.asset == nil {
		return Amount{}, ErrNilAsset
	}
	if !a.asset.Equals(p.base) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s", ErrAssetMismatch, p.base.Symbol(), a.asset.Symbol())
	}
	raw, err := p.ConvertRaw(a.raw)
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: raw, asset: p.quote}, nil
}

// Age returns how old the observation is.
func (p Price) Age() time.Duration { return time.Since(p.timestamp) }

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.rate.String(), p.Pair())
}
