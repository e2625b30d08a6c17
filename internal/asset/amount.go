package asset

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrAssetMismatch   = errors.New("asset: cannot operate on different assets")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
	ErrAmountTooLarge  = errors.New("asset: amount does not fit in 64 bits")
)

// Amount is an immutable quantity of an asset in its smallest unit.
type Amount struct {
	raw   uint64
	asset *Asset
}

// NewAmount creates an Amount.
func NewAmount(a *Asset, raw uint64) Amount {
	if a == nil {
		panic(ErrNilAsset)
	}
	return Amount{raw: raw, asset: a}
}

// Zero returns a zero Amount of a.
func Zero(a *Asset) Amount { return NewAmount(a, 0) }

func (a Amount) Raw() uint64 { return a.raw }
func (a Amount) Asset() *Asset { return a.asset }
func (a Amount) IsZero() bool { return a.raw == 0 }
func (a Amount) IsPositive() bool { return a.raw > 0 }

// Add adds two amounts of the same asset.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	sum, err := fixedpoint.Add(a.raw, b.raw)
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: sum, asset: a.asset}, nil
}

// Sub subtracts b from a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	diff, err := fixedpoint.Sub(a.raw, b.raw)
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: diff, asset: a.asset}, nil
}

// Cmp compares two amounts of the same asset.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameAsset(b); err != nil {
		return 0, err
	}
	switch {
	case a.raw < b.raw:
		return -1, nil
	case a.raw > b.raw:
		return 1, nil
	}
	return 0, nil
}

// ToDecimal converts the amount for display only.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.asset == nil {
		return decimal.Zero
	}
	return FormatRaw(a.raw, a.asset.Decimals())
}

// String renders e.g. "1.5 WETH".
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.asset.Symbol())
}

// StringFixed renders with a fixed number of places.
func (a Amount) StringFixed(places int32) string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().StringFixed(places), a.asset.Symbol())
}

func (a Amount) checkSameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return ErrNilAsset
	}
	if a.asset.ID() != b.asset.ID() {
		return fmt.Errorf("%w: %s vs %s", ErrAssetMismatch, a.asset.Symbol(), b.asset.Symbol())
	}
	return nil
}

// FormatRaw scales a raw amount down by decimals.
func FormatRaw(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals))
}

// ParseDecimal converts a human amount into raw units of a.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	raw, err := ToRaw(d, a.Decimals())
	if err != nil {
		return Amount{}, err
	}
	return Amount{raw: raw, asset: a}, nil
}

// ParseString parses a decimal string such as "0.5" into raw units of a.
func ParseString(a *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid decimal string %q: %w", s, err)
	}
	return ParseDecimal(a, d)
}

// ToRaw scales d up by decimals into a uint64.
func ToRaw(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, ErrAmountTooLarge
	}
	return bi.Uint64(), nil
}
