package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

var _ app.RouteQuoter = (*Desk)(nil)

type route struct{ from, to asset.AssetID }

// Desk is a routed venue filling at fixed directed rates from its own
// inventory.
type Desk struct {
	account  ledger.Account
	trader   ledger.Account
	ledger   *ledger.Ledger
	registry *asset.Registry

	mu    sync.RWMutex
	rates map[route]asset.Price
}

// NewDesk opens the desk account.
func NewDesk(l *ledger.Ledger, reg *asset.Registry, venue string, trader ledger.Account) *Desk {
	d := &Desk{
		account:  ledger.Account("desk:" + venue),
		trader:   trader,
		ledger:   l,
		registry: reg,
		rates:    make(map[route]asset.Price),
	}
	l.Open(d.account, trader)
	return d
}

// Account returns the desk inventory account.
func (d *Desk) Account() ledger.Account { return d.account }

// SetRate sets how many whole units of to one whole unit of from buys.
func (d *Desk) SetRate(from, to asset.AssetID, rate decimal.Decimal) error {
	base, ok := d.registry.Get(from)
	if !ok {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("unknown asset %s", from)))
	}
	quote, ok := d.registry.Get(to)
	if !ok {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("unknown asset %s", to)))
	}
	if !rate.IsPositive() {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("rate must be positive"))
	}
	d.mu.Lock()
	d.rates[route{from, to}] = asset.NewPrice(base, quote, rate, time.Now())
	d.mu.Unlock()
	return nil
}

// Fund mints inventory.
func (d *Desk) Fund(id asset.AssetID, amount uint64) error {
	return d.ledger.Mint(d.account, id, amount)
}

func (d *Desk) fill(in, out asset.AssetID, amount uint64) (uint64, error) {
	d.mu.RLock()
	p, ok := d.rates[route{in, out}]
	d.mu.RUnlock()
	if !ok {
		return 0, apperror.New(apperror.CodeAggregatorQuoteFailed,
			apperror.WithContext(fmt.Sprintf("%s has no route %s→%s", d.account, in, out)))
	}
	filled, err := p.ConvertRaw(amount)
	if err != nil {
		return 0, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}
	return filled, nil
}

// RouteQuote prices amount at the configured rate.
func (d *Desk) RouteQuote(_ context.Context, req app.QuoteRequest) (uint64, error) {
	return d.fill(req.Input, req.Output, req.Amount)
}

// RouteSwap fills at the configured rate. It reverts without side effects
// when inventory is short or the fill is below MinOutput.
func (d *Desk) RouteSwap(_ context.Context, req app.SwapRequest) (uint64, error) {
	out, err := d.fill(req.Input, req.Output, req.Amount)
	if err != nil {
		return 0, err
	}
	if out < req.MinOutput {
		return 0, apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("%s fill %d below minimum %d", d.account, out, req.MinOutput)))
	}
	err = d.ledger.Update(func(tx *ledger.Tx) error {
		if err := tx.Transfer(d.trader, d.account, req.Input, req.Amount); err != nil {
			return err
		}
		return tx.Transfer(d.account, d.trader, req.Output, out)
	})
	if err != nil {
		return 0, wrapLedgerErr(err)
	}
	return out, nil
}
