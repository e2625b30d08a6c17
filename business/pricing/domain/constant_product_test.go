package domain

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

func reserves(in, out uint64) Reserves {
	return Reserves{In: uint256.NewInt(in), Out: uint256.NewInt(out)}
}

func TestConstantProductOut_Scenario(t *testing.T) {
	// k = 2e12, nin = 1_010_000, nout = 1_980_198, gross = 19_802,
	// net = 19_802 * 9975 / 10000 = 19_752.
	got, err := ConstantProductOut(reserves(1_000_000, 2_000_000), 10_000, 25, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.K.Uint64() != 2_000_000_000_000 {
		t.Errorf("k = %s", got.K)
	}
	if got.NewReserveIn.Uint64() != 1_010_000 || got.NewReserveOut.Uint64() != 1_980_198 {
		t.Errorf("new reserves = (%s, %s)", got.NewReserveIn, got.NewReserveOut)
	}
	if got.GrossOut != 19_802 {
		t.Errorf("gross = %d, want 19802", got.GrossOut)
	}
	if got.NetOut != 19_752 {
		t.Errorf("net = %d, want 19752", got.NetOut)
	}
}

func TestConstantProductOut_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		r      Reserves
		amount uint64
		num    uint64
		den    uint64
	}{
		{"zero_reserve_in", reserves(0, 10), 1, 25, 10_000},
		{"zero_reserve_out", reserves(10, 0), 1, 25, 10_000},
		{"nil_reserves", Reserves{}, 1, 25, 10_000},
		{"zero_amount", reserves(10, 10), 0, 25, 10_000},
		{"zero_fee_denominator", reserves(10, 10), 1, 0, 0},
		{"fee_above_one", reserves(10, 10), 1, 2, 1},
		{"gross_beyond_uint64", Reserves{
			In:  uint256.NewInt(1),
			Out: new(uint256.Int).Lsh(uint256.NewInt(1), 100),
		}, 1_000, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstantProductOut(tt.r, tt.amount, tt.num, tt.den)
			if !apperror.HasCode(err, apperror.CodeCalculationError) {
				t.Fatalf("err = %v, want CALCULATION_ERROR", err)
			}
		})
	}
}

func TestConstantProductOut_NeverIncreasesInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2_000; i++ {
		rin := rng.Uint64()>>8 + 1
		rout := rng.Uint64()>>8 + 1
		ain := rng.Uint64()>>16 + 1

		got, err := ConstantProductOut(reserves(rin, rout), ain, 25, 10_000)
		if err != nil {
			// Outputs that exceed 64 bits are rejected, not wrapped.
			if !apperror.HasCode(err, apperror.CodeCalculationError) {
				t.Fatalf("unexpected error: %v", err)
			}
			continue
		}

		after := new(uint256.Int).Mul(got.NewReserveIn, got.NewReserveOut)
		if after.Cmp(got.K) > 0 {
			t.Fatalf("invariant grew: rin=%d rout=%d ain=%d", rin, rout, ain)
		}
		if got.NetOut > got.GrossOut || got.GrossOut > rout {
			t.Fatalf("output bounds violated: gross=%d net=%d rout=%d", got.GrossOut, got.NetOut, rout)
		}
	}
}

func BenchmarkConstantProductOut(b *testing.B) {
	r := reserves(1_000_000_000_000, 2_000_000_000_000)
	for i := 0; i < b.N; i++ {
		_, _ = ConstantProductOut(r, 10_000_000, 25, 10_000)
	}
}
