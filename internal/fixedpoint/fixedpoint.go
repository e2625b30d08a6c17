// Package fixedpoint implements the scaled-integer price model and checked
// arithmetic on uint64 amounts. Intermediate products are computed in 256 bits
// so only results that do not fit in 64 bits overflow.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// PricePrecision scales every venue price.
const PricePrecision uint64 = 1_000_000

// BpsDenominator is the basis-point scale.
const BpsDenominator uint64 = 10_000

var (
	ErrOverflow       = errors.New("fixedpoint: overflow")
	ErrUnderflow      = errors.New("fixedpoint: underflow")
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// Price returns output*PricePrecision/input, truncated toward zero.
func Price(output, input uint64) (uint64, error) {
	return MulDiv(output, PricePrecision, input)
}

// MulDiv returns a*b/d.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Div(z, uint256.NewInt(d))
	if !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// Bps returns amount*bps/10_000.
func Bps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BpsDenominator)
}

// LessBps returns amount reduced by bps, used for slippage floors.
func LessBps(amount, bps uint64) (uint64, error) {
	if bps > BpsDenominator {
		return 0, ErrUnderflow
	}
	return MulDiv(amount, BpsDenominator-bps, BpsDenominator)
}

// Add returns a+b.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrOverflow
	}
	return s, nil
}

// Sub returns a-b.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a*b.
func Mul(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// ToUint64 narrows a 256-bit value.
func ToUint64(z *uint256.Int) (uint64, error) {
	if z == nil {
		return 0, ErrUnderflow
	}
	if !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}
