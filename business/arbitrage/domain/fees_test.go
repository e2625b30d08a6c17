package domain

import (
	"math"
	"testing"
)

func TestFeeModel_Breakdown(t *testing.T) {
	tests := []struct {
		name   string
		fees   FeeModel
		amount uint64
		want   CostBreakdown
	}{
		{
			name:   "all_terms",
			fees:   FeeModel{LoanFeeBps: 20, VenueAFeeBps: 0, VenueBFeeBps: 25, ConversionFeeBps: 60, ConversionHops: true, GasEstimate: 12_500},
			amount: 1_000_000_000,
			want: CostBreakdown{
				LoanFee:       2_000_000,
				SwapFees:      2_500_000,
				ConversionFee: 6_000_000,
				Gas:           12_500,
				Total:         10_512_500,
			},
		},
		{
			name:   "conversion_skipped_without_hops",
			fees:   FeeModel{LoanFeeBps: 20, VenueAFeeBps: 30, VenueBFeeBps: 30, ConversionFeeBps: 60, GasEstimate: 5000},
			amount: 100_000,
			want:   CostBreakdown{LoanFee: 200, SwapFees: 600, Gas: 5000, Total: 5800},
		},
		{
			name:   "min_profit_threshold",
			fees:   FeeModel{MinProfitBps: 50},
			amount: 100_000,
			want:   CostBreakdown{MinProfit: 500, Total: 500},
		},
		{
			name:   "truncates_toward_zero",
			fees:   FeeModel{LoanFeeBps: 20},
			amount: 499,
			want:   CostBreakdown{},
		},
		{
			name:   "overflowing_term_contributes_zero",
			fees:   FeeModel{LoanFeeBps: 20, VenueAFeeBps: math.MaxUint64, VenueBFeeBps: 1, GasEstimate: 7},
			amount: 1_000_000,
			want:   CostBreakdown{LoanFee: 2000, Gas: 7, Total: 2007},
		},
		{
			name:   "overflowing_sum_skips_addend",
			fees:   FeeModel{LoanFeeBps: 20, GasEstimate: math.MaxUint64},
			amount: 1_000_000,
			want:   CostBreakdown{LoanFee: 2000, Gas: math.MaxUint64, Total: 2000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fees.Breakdown(tt.amount)
			if got != tt.want {
				t.Errorf("Breakdown(%d) = %+v, want %+v", tt.amount, got, tt.want)
			}
			if total := tt.fees.TotalCost(tt.amount); total != tt.want.Total {
				t.Errorf("TotalCost = %d, want %d", total, tt.want.Total)
			}
		})
	}
}

func TestFeeModel_MonotonicInAmount(t *testing.T) {
	fees := FeeModel{LoanFeeBps: 20, VenueAFeeBps: 25, VenueBFeeBps: 30, ConversionFeeBps: 60, ConversionHops: true, GasEstimate: 100}

	prev := fees.TotalCost(0)
	for amount := uint64(1); amount < 1_000_000; amount = amount*3 + 7 {
		got := fees.TotalCost(amount)
		if got < prev {
			t.Fatalf("TotalCost(%d) = %d < previous %d", amount, got, prev)
		}
		prev = got
	}
}

func BenchmarkFeeModel_TotalCost(b *testing.B) {
	fees := FeeModel{LoanFeeBps: 20, VenueAFeeBps: 25, VenueBFeeBps: 30, ConversionFeeBps: 60, ConversionHops: true, GasEstimate: 100}
	for i := 0; i < b.N; i++ {
		_ = fees.TotalCost(1_000_000_000)
	}
}
