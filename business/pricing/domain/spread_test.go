package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

func quoteOf(venue VenueID, in, out uint64) PriceQuote {
	return PriceQuote{Venue: venue, InputAmount: in, OutputAmount: out}
}

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name       string
		qa         PriceQuote
		qb         PriceQuote
		size       uint64
		wantA      uint64
		wantB      uint64
		wantAmount uint64
		wantHigher bool
	}{
		{
			name:       "equal_prices_no_spread",
			qa:         quoteOf("a", 100, 100),
			qb:         quoteOf("b", 200, 200),
			size:       100_000,
			wantA:      1_000_000,
			wantB:      1_000_000,
			wantAmount: 0,
		},
		{
			name:       "a_higher_by_five_percent",
			qa:         quoteOf("a", 100_000, 105_000),
			qb:         quoteOf("b", 100_000, 100_000),
			size:       100_000,
			wantA:      1_050_000,
			wantB:      1_000_000,
			wantAmount: 5_000, // 50_000 * 100_000 / 1_000_000
			wantHigher: true,
		},
		{
			name:       "b_higher_is_symmetric",
			qa:         quoteOf("a", 100_000, 100_000),
			qb:         quoteOf("b", 100_000, 105_000),
			size:       100_000,
			wantA:      1_000_000,
			wantB:      1_050_000,
			wantAmount: 5_000,
		},
		{
			name:       "truncates_toward_zero",
			qa:         quoteOf("a", 3, 1),
			qb:         quoteOf("b", 3, 2),
			size:       7,
			wantA:      333_333,
			wantB:      666_666,
			wantAmount: 2, // 333_333 * 7 / 1e6
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSpread(tt.qa, tt.qb, tt.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.PriceA != tt.wantA || got.PriceB != tt.wantB {
				t.Errorf("prices = (%d, %d), want (%d, %d)", got.PriceA, got.PriceB, tt.wantA, tt.wantB)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("amount = %d, want %d", got.Amount, tt.wantAmount)
			}
			if got.HigherIsA() != tt.wantHigher {
				t.Errorf("HigherIsA = %v, want %v", got.HigherIsA(), tt.wantHigher)
			}
		})
	}
}

func TestCalculateSpread_Errors(t *testing.T) {
	tests := []struct {
		name string
		qa   PriceQuote
		qb   PriceQuote
		size uint64
	}{
		{"zero_input_amount", quoteOf("a", 0, 10), quoteOf("b", 1, 1), 1},
		{"spread_overflow", quoteOf("a", 1, 1_000_000_000), quoteOf("b", 1, 1), math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateSpread(tt.qa, tt.qb, tt.size)
			if !apperror.HasCode(err, apperror.CodeCalculationError) {
				t.Fatalf("err = %v, want CALCULATION_ERROR", err)
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatal("expected AppError")
			}
		})
	}
}

func TestFromPrice_KeepsPriceAtSmallAmounts(t *testing.T) {
	// 1_020_000 * 3 / 1e6 truncates the output to 3, which would read back as
	// a price of exactly 1.0.
	qa, err := FromPrice("a", asset.AssetID{}, asset.AssetID{}, 3, 1_020_000, time.Time{})
	if err != nil {
		t.Fatalf("FromPrice a: %v", err)
	}
	qb, err := FromPrice("b", asset.AssetID{}, asset.AssetID{}, 3, 1_007_000, time.Time{})
	if err != nil {
		t.Fatalf("FromPrice b: %v", err)
	}
	if qa.OutputAmount != 3 {
		t.Errorf("output = %d, want 3", qa.OutputAmount)
	}

	got, err := CalculateSpread(qa, qb, 1_000_000_000)
	if err != nil {
		t.Fatalf("CalculateSpread: %v", err)
	}
	if got.PriceA != 1_020_000 || got.PriceB != 1_007_000 {
		t.Errorf("prices = (%d, %d), want (1020000, 1007000)", got.PriceA, got.PriceB)
	}
	if got.Amount != 13_000_000 {
		t.Errorf("amount = %d, want 13000000", got.Amount)
	}
}
