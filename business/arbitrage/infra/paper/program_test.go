package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

var programAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fixedQuoter struct {
	priceA, priceB uint64
	err            error
	got            pricingApp.QuoteRequest
}

func (q *fixedQuoter) QuotePair(_ context.Context, a, b pricingDomain.VenueID, req pricingApp.QuoteRequest) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error) {
	q.got = req
	if q.err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, q.err
	}
	now := time.Now()
	qa, err := pricingDomain.FromPrice(a, req.Input, req.Output, req.Amount, q.priceA, now)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	qb, err := pricingDomain.FromPrice(b, req.Input, req.Output, req.Amount, q.priceB, now)
	return qa, qb, err
}

func usdcUsdt() domain.TokenPair {
	return domain.TokenPair{
		Input:       asset.USDC,
		Output:      asset.USDT,
		TradeAmount: 1_000_000_000,
		VenueA:      "desk",
		VenueB:      "pool",
	}
}

func TestProgram_PriceCheck(t *testing.T) {
	q := &fixedQuoter{priceA: 1_020_000, priceB: 1_006_000}
	p := NewProgram(programAddr, q, []domain.TokenPair{usdcUsdt()})

	req := domain.PriceCheckRequest{Amount: 1_000_000_000, Input: asset.USDC.Address(), Output: asset.USDT.Address()}
	out, err := p.Call(context.Background(), programAddr, req.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != domain.PriceCheckSize {
		t.Fatalf("len = %d", len(out))
	}
	pa, pb, err := domain.DecodePriceCheck(out)
	if err != nil {
		t.Fatal(err)
	}
	if pa != 1_020_000 || pb != 1_006_000 {
		t.Errorf("prices = %d, %d", pa, pb)
	}
	if q.got.Amount != 1_000_000_000 || q.got.Input != asset.USDC.ID() {
		t.Errorf("quote request = %+v", q.got)
	}
}

func TestProgram_Errors(t *testing.T) {
	valid := domain.PriceCheckRequest{Amount: 1, Input: asset.USDC.Address(), Output: asset.USDT.Address()}.Encode()
	unknown := domain.PriceCheckRequest{Amount: 1, Input: asset.WETH.Address(), Output: asset.USDT.Address()}.Encode()

	tests := []struct {
		name string
		to   common.Address
		data []byte
		err  error
		want apperror.Code
	}{
		{"wrong address", common.Address{}, valid, nil, apperror.CodeContractCallFailed},
		{"unknown route", programAddr, unknown, nil, apperror.CodeContractCallFailed},
		{"short data", programAddr, valid[:10], nil, apperror.CodeInvalidFormat},
		{"quote failure", programAddr, valid, apperror.New(apperror.CodeServiceTimeout), apperror.CodeServiceTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram(programAddr, &fixedQuoter{priceA: 1, priceB: 1, err: tt.err}, []domain.TokenPair{usdcUsdt()})
			_, err := p.Call(context.Background(), tt.to, tt.data)
			if got := apperror.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestTransferer(t *testing.T) {
	l := ledger.New()
	l.Open("executor", "treasury")
	if err := l.Mint("executor", asset.WETH.ID(), 100); err != nil {
		t.Fatal(err)
	}
	tr := NewTransferer(l)
	ctx := context.Background()

	if err := tr.Transfer(ctx, asset.WETH.ID(), "executor", "treasury", 60); err != nil {
		t.Fatal(err)
	}
	if got := l.Balance("treasury", asset.WETH.ID()); got != 60 {
		t.Errorf("treasury = %d, want 60", got)
	}

	tests := []struct {
		name   string
		to     ledger.Account
		amount uint64
		want   apperror.Code
	}{
		{"unknown account", "nobody", 1, apperror.CodeInvalidTokenAccount},
		{"insufficient", "treasury", 41, apperror.CodeTransferFailed},
		{"zero", "treasury", 0, apperror.CodeTransferFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Transfer(ctx, asset.WETH.ID(), "executor", tt.to, tt.amount)
			if got := apperror.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := tr.Transfer(cancelled, asset.WETH.ID(), "executor", "treasury", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled transfer = %v", err)
	}
}
