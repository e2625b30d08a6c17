package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

// cannedProgram answers every price check with the same buffer.
type cannedProgram struct {
	out []byte
	err error
	req []byte
}

func (p *cannedProgram) Call(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	p.req = data
	return p.out, p.err
}

func TestSimulationSource_KeepsReturnedPrices(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		spread uint64
	}{
		// 13_000 * 100 / 1e6 truncates to 1; rebuilt quotes would give 2.
		{"amount below precision", 100, 1},
		{"amount above precision", 1_000_000_000, 13_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := domain.NewTokenPair(asset.USDC, asset.USDT, tt.amount, 1, "desk", "pool")
			if err != nil {
				t.Fatal(err)
			}
			program := &cannedProgram{out: domain.EncodePriceCheck(1_020_000, 1_007_000)}
			src := app.NewSimulationSource(program, common.HexToAddress("0x0f1a5b"))

			qa, qb, err := src.Quotes(context.Background(), pair)
			if err != nil {
				t.Fatalf("Quotes: %v", err)
			}
			pa, _ := qa.Price()
			pb, _ := qb.Price()
			if pa != 1_020_000 || pb != 1_007_000 {
				t.Fatalf("prices = %d, %d, want 1020000, 1007000", pa, pb)
			}

			opp, err := app.EvaluatePair(pair, qa, qb, domain.FeeModel{})
			if err != nil || opp == nil {
				t.Fatalf("EvaluatePair = %v, %v", opp, err)
			}
			if opp.Spread.PriceB != 1_007_000 || opp.Spread.Amount != tt.spread {
				t.Errorf("spread = %+v, want amount %d", opp.Spread, tt.spread)
			}
			if opp.Direction != domain.DirectionBThenA {
				t.Errorf("direction = %s", opp.Direction)
			}

			req, err := domain.DecodePriceCheckRequest(program.req)
			if err != nil || req.Amount != tt.amount {
				t.Errorf("request = %+v, %v", req, err)
			}
		})
	}
}

func TestSimulationSource_Errors(t *testing.T) {
	pair, err := domain.NewTokenPair(asset.USDC, asset.USDT, 100, 1, "desk", "pool")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		program *cannedProgram
		code    apperror.Code
	}{
		{"call fails", &cannedProgram{err: errors.New("rpc down")}, apperror.CodeSimulationUnavailable},
		{"short buffer", &cannedProgram{out: make([]byte, 8)}, apperror.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := app.NewSimulationSource(tt.program, common.Address{}).Quotes(context.Background(), pair)
			if !apperror.HasCode(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
		})
	}
}
