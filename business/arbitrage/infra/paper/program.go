// Package paper provides in-process stand-ins for the on-chain execution
// program and token transfers, backed by the shared ledger.
package paper

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

// PairQuoter quotes the same request on two venues.
type PairQuoter interface {
	QuotePair(ctx context.Context, a, b pricingDomain.VenueID, req pricingApp.QuoteRequest) (pricingDomain.PriceQuote, pricingDomain.PriceQuote, error)
}

var _ app.ProgramCaller = (*Program)(nil)

type route struct{ in, out common.Address }

// Program answers the price-check instruction at a fixed address by quoting
// the watch-list venues of the requested pair.
type Program struct {
	address common.Address
	quoter  PairQuoter
	pairs   map[route]domain.TokenPair
}

// NewProgram creates a Program serving pairs.
func NewProgram(address common.Address, quoter PairQuoter, pairs []domain.TokenPair) *Program {
	p := &Program{address: address, quoter: quoter, pairs: make(map[route]domain.TokenPair, len(pairs))}
	for _, pair := range pairs {
		p.pairs[route{pair.Input.Address(), pair.Output.Address()}] = pair
	}
	return p
}

// Address returns the program address.
func (p *Program) Address() common.Address { return p.address }

// Call executes a read-only instruction and returns its 16-byte result.
func (p *Program) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if to != p.address {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("no program at %s", to.Hex())))
	}
	req, err := domain.DecodePriceCheckRequest(data)
	if err != nil {
		return nil, err
	}
	pair, ok := p.pairs[route{req.Input, req.Output}]
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("no route %s -> %s", req.Input.Hex(), req.Output.Hex())))
	}

	qa, qb, err := p.quoter.QuotePair(ctx, pair.VenueA, pair.VenueB, pricingApp.QuoteRequest{
		Input:  pair.Input.ID(),
		Output: pair.Output.ID(),
		Amount: req.Amount,
	})
	if err != nil {
		return nil, err
	}
	pa, err := qa.Price()
	if err != nil {
		return nil, err
	}
	pb, err := qb.Price()
	if err != nil {
		return nil, err
	}
	return domain.EncodePriceCheck(pa, pb), nil
}

var _ app.Transferer = (*Transferer)(nil)

// Transferer moves funds between ledger accounts.
type Transferer struct {
	ledger *ledger.Ledger
}

// NewTransferer creates a Transferer over l.
func NewTransferer(l *ledger.Ledger) *Transferer {
	return &Transferer{ledger: l}
}

// Transfer moves amount of id from one account to another.
func (t *Transferer) Transfer(ctx context.Context, id asset.AssetID, from, to ledger.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(err))
	}
	err := t.ledger.Transfer(from, to, id, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrUnknownAccount):
		return apperror.New(apperror.CodeInvalidTokenAccount, apperror.WithCause(err))
	default:
		return apperror.New(apperror.CodeTransferFailed, apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s -> %s", from, to)))
	}
}
