package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	lendingDomain "github.com/fd1az/flashloan-arb/business/lending/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

// journal records side effects in call order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type direction struct{ in, out asset.AssetID }

type rate struct{ num, den uint64 }

// fakeVenue converts at fixed rates. short lists directions whose swaps
// deliver less than quoted, in bps.
type fakeVenue struct {
	id      pricingDomain.VenueID
	feeBps  uint64
	rates   map[direction]rate
	short   map[direction]uint64
	swapErr error
	log     *journal

	mu     sync.Mutex
	quotes int
	swaps  int
}

var _ pricingApp.Venue = (*fakeVenue)(nil)

func newFakeVenue(id string, feeBps uint64, log *journal) *fakeVenue {
	return &fakeVenue{
		id:     pricingDomain.VenueID(id),
		feeBps: feeBps,
		rates:  make(map[direction]rate),
		short:  make(map[direction]uint64),
		log:    log,
	}
}

func (v *fakeVenue) setRate(in, out *asset.Asset, num, den uint64) *fakeVenue {
	v.rates[direction{in.ID(), out.ID()}] = rate{num, den}
	return v
}

func (v *fakeVenue) ID() pricingDomain.VenueID     { return v.id }
func (v *fakeVenue) Kind() pricingDomain.VenueKind { return pricingDomain.KindRouted }
func (v *fakeVenue) FeeBps() uint64                { return v.feeBps }

func (v *fakeVenue) convert(in, out asset.AssetID, amount uint64) (uint64, error) {
	r, ok := v.rates[direction{in, out}]
	if !ok {
		return 0, apperror.New(apperror.CodePoolNotFound, apperror.WithContext(string(v.id)))
	}
	return fixedpoint.MulDiv(amount, r.num, r.den)
}

func (v *fakeVenue) Quote(_ context.Context, req pricingApp.QuoteRequest) (pricingDomain.PriceQuote, error) {
	v.mu.Lock()
	v.quotes++
	v.mu.Unlock()

	out, err := v.convert(req.Input, req.Output, req.Amount)
	if err != nil {
		return pricingDomain.PriceQuote{}, err
	}
	return pricingDomain.PriceQuote{
		Venue:        v.id,
		Input:        req.Input,
		Output:       req.Output,
		InputAmount:  req.Amount,
		OutputAmount: out,
		FeeBps:       v.feeBps,
		QuotedAt:     time.Unix(1_700_000_000, 0),
	}, nil
}

func (v *fakeVenue) Swap(_ context.Context, req pricingApp.SwapRequest) (uint64, error) {
	v.mu.Lock()
	v.swaps++
	v.mu.Unlock()

	if v.swapErr != nil {
		return 0, v.swapErr
	}
	out, err := v.convert(req.Input, req.Output, req.Amount)
	if err != nil {
		return 0, err
	}
	if bps, ok := v.short[direction{req.Input, req.Output}]; ok {
		out, _ = fixedpoint.LessBps(out, bps)
	}
	v.log.add("swap %s %d %s->%s = %d", v.id, req.Amount, symbol(req.Input), symbol(req.Output), out)
	if out < req.MinOutput {
		return out, apperror.New(apperror.CodeSlippageExceeded)
	}
	return out, nil
}

func (v *fakeVenue) swapCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.swaps
}

func symbol(id asset.AssetID) string {
	if a, ok := asset.DefaultRegistry().Get(id); ok {
		return a.Symbol()
	}
	return id.String()
}

type fakeVenues struct {
	venues map[pricingDomain.VenueID]*fakeVenue
}

var _ app.Venues = (*fakeVenues)(nil)

func newFakeVenues(vs ...*fakeVenue) *fakeVenues {
	f := &fakeVenues{venues: make(map[pricingDomain.VenueID]*fakeVenue)}
	for _, v := range vs {
		f.venues[v.id] = v
	}
	return f
}

func (f *fakeVenues) Venue(id pricingDomain.VenueID) (pricingApp.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return nil, apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(string(id)))
	}
	return v, nil
}

func (f *fakeVenues) QuotePair(ctx context.Context, a, b pricingDomain.VenueID, req pricingApp.QuoteRequest) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error) {
	va, err := f.Venue(a)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	vb, err := f.Venue(b)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	qa, err := va.Quote(ctx, req)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	qb, err := vb.Quote(ctx, req)
	if err != nil {
		return pricingDomain.PriceQuote{}, pricingDomain.PriceQuote{}, err
	}
	return qa, qb, nil
}

type fakeLoans struct {
	feeBps    uint64
	borrowErr error
	log       *journal

	mu      sync.Mutex
	borrows int
	repays  []uint64
}

var _ app.Loans = (*fakeLoans)(nil)

func (l *fakeLoans) FeeBps() uint64 { return l.feeBps }

func (l *fakeLoans) Borrow(_ context.Context, id asset.AssetID, amount uint64) (lendingDomain.Loan, error) {
	l.mu.Lock()
	l.borrows++
	l.mu.Unlock()
	if l.borrowErr != nil {
		return lendingDomain.Loan{}, l.borrowErr
	}
	l.log.add("borrow %d", amount)
	return lendingDomain.NewLoan("fake", id, amount, l.feeBps, time.Unix(1_700_000_000, 0))
}

func (l *fakeLoans) Repay(_ context.Context, _ lendingDomain.Loan, amount uint64) error {
	l.mu.Lock()
	l.repays = append(l.repays, amount)
	l.mu.Unlock()
	l.log.add("repay %d", amount)
	return nil
}

func (l *fakeLoans) borrowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.borrows
}

type fakeTransferer struct {
	failures int
	log      *journal

	mu    sync.Mutex
	calls int
}

func (t *fakeTransferer) Transfer(_ context.Context, id asset.AssetID, from, to ledger.Account, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.calls <= t.failures {
		return apperror.New(apperror.CodeServiceTimeout)
	}
	t.log.add("transfer %d %s %s->%s", amount, symbol(id), from, to)
	return nil
}

type staticFees struct {
	fees domain.FeeModel
	err  error
}

func (s staticFees) FeeModel(context.Context, domain.TokenPair) (domain.FeeModel, error) {
	return s.fees, s.err
}

// fixture is a USDC/USDT pair funded by a WETH loan converted on the desk.
// The desk (A) prices USDC->USDT at 1.02 and the pool (B) at 1.006.
type fixture struct {
	log      *journal
	desk     *fakeVenue
	pool     *fakeVenue
	venues   *fakeVenues
	loans    *fakeLoans
	transfer *fakeTransferer
	pair     domain.TokenPair
	cfg      app.OrchestratorConfig
	fees     domain.FeeModel
}

const (
	loanAmount  uint64 = 400_000_000_000_000_000 // 0.4 WETH
	tradeAmount uint64 = 1_000_000_000           // 1000 USDC
)

func newFixture() *fixture {
	log := &journal{}
	desk := newFakeVenue("desk", 0, log).
		setRate(asset.WETH, asset.USDC, 2500, 1_000_000_000_000).
		setRate(asset.USDC, asset.WETH, 1_000_000_000_000, 2500).
		setRate(asset.USDC, asset.USDT, 102, 100).
		setRate(asset.USDT, asset.USDC, 1005, 1000)
	pool := newFakeVenue("pool", 25, log).
		setRate(asset.USDC, asset.USDT, 1006, 1000).
		setRate(asset.USDT, asset.USDC, 990, 1000)

	pair, err := domain.NewTokenPair(asset.USDC, asset.USDT, tradeAmount, loanAmount, "desk", "pool")
	if err != nil {
		panic(err)
	}
	pair.ConversionVenue = "desk"

	return &fixture{
		log:      log,
		desk:     desk,
		pool:     pool,
		venues:   newFakeVenues(desk, pool),
		loans:    &fakeLoans{feeBps: 20, log: log},
		transfer: &fakeTransferer{log: log},
		pair:     pair,
		cfg: app.OrchestratorConfig{
			Settlement:        asset.WETH,
			Account:           "arb-executor",
			ProfitDestination: "treasury",
			SlippageBps:       50,
			StepTimeout:       time.Second,
			TransferRetries:   3,
		},
		fees: domain.FeeModel{LoanFeeBps: 20, VenueBFeeBps: 25, ConversionFeeBps: 60, ConversionHops: true, GasEstimate: 12_500},
	}
}
