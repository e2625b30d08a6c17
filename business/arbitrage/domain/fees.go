package domain

import "github.com/fd1az/flashloan-arb/internal/fixedpoint"

// FeeModel holds the cost inputs of one evaluation. Rates are in basis
// points. GasEstimate is already expressed in the pair's output units.
type FeeModel struct {
	LoanFeeBps       uint64
	VenueAFeeBps     uint64
	VenueBFeeBps     uint64
	ConversionFeeBps uint64
	ConversionHops   bool
	GasEstimate      uint64
	MinProfitBps     uint64
}

// CostBreakdown itemizes TotalCost.
type CostBreakdown struct {
	LoanFee       uint64
	SwapFees      uint64
	ConversionFee uint64
	Gas           uint64
	MinProfit     uint64
	Total         uint64
}

// Breakdown prices every term for amount. A term whose arithmetic overflows
// contributes zero instead of failing the evaluation.
func (f FeeModel) Breakdown(amount uint64) CostBreakdown {
	b := CostBreakdown{
		LoanFee:   softBps(amount, f.LoanFeeBps),
		Gas:       f.GasEstimate,
		MinProfit: softBps(amount, f.MinProfitBps),
	}
	if swapBps, err := fixedpoint.Add(f.VenueAFeeBps, f.VenueBFeeBps); err == nil {
		b.SwapFees = softBps(amount, swapBps)
	}
	if f.ConversionHops {
		b.ConversionFee = softBps(amount, f.ConversionFeeBps)
	}
	for _, term := range []uint64{b.LoanFee, b.SwapFees, b.ConversionFee, b.Gas, b.MinProfit} {
		if sum, err := fixedpoint.Add(b.Total, term); err == nil {
			b.Total = sum
		}
	}
	return b
}

// TotalCost is the threshold a spread on amount has to beat.
func (f FeeModel) TotalCost(amount uint64) uint64 {
	return f.Breakdown(amount).Total
}

func softBps(amount, bps uint64) uint64 {
	v, err := fixedpoint.Bps(amount, bps)
	if err != nil {
		return 0
	}
	return v
}
