// Package paper provides in-process venues and feeds backed by the shared ledger.
package paper

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

var (
	_ app.ReserveSource = (*Pool)(nil)
	_ app.PoolSwapper   = (*Pool)(nil)
)

// Pool is a two-asset constant-product pool whose reserves are the balances
// of its ledger account.
type Pool struct {
	account ledger.Account
	trader  ledger.Account
	x, y    asset.AssetID
	feeBps  uint64
	ledger  *ledger.Ledger
}

// NewPool opens the pool account "pool:<name>" and seeds its reserves.
func NewPool(l *ledger.Ledger, name string, trader ledger.Account, x, y asset.AssetID, reserveX, reserveY, feeBps uint64) (*Pool, error) {
	p := &Pool{
		account: ledger.Account("pool:" + name),
		trader:  trader,
		x:       x,
		y:       y,
		feeBps:  feeBps,
		ledger:  l,
	}
	l.Open(p.account, trader)
	if err := l.Mint(p.account, x, reserveX); err != nil {
		return nil, err
	}
	if err := l.Mint(p.account, y, reserveY); err != nil {
		return nil, err
	}
	return p, nil
}

// Account returns the ledger account holding the reserves.
func (p *Pool) Account() ledger.Account { return p.account }

func (p *Pool) supports(in, out asset.AssetID) error {
	if (in == p.x && out == p.y) || (in == p.y && out == p.x) {
		return nil
	}
	return apperror.New(apperror.CodePoolNotFound,
		apperror.WithContext(fmt.Sprintf("%s does not trade %s/%s", p.account, in, out)))
}

// Trades reports whether the pool holds both assets.
func (p *Pool) Trades(in, out asset.AssetID) bool {
	return p.supports(in, out) == nil
}

// Reserves returns the pool balances oriented input→output.
func (p *Pool) Reserves(_ context.Context, in, out asset.AssetID) (domain.Reserves, error) {
	if err := p.supports(in, out); err != nil {
		return domain.Reserves{}, err
	}
	return domain.Reserves{
		In:  uint256.NewInt(p.ledger.Balance(p.account, in)),
		Out: uint256.NewInt(p.ledger.Balance(p.account, out)),
	}, nil
}

// SwapExactIn moves Amount from the trader into the pool and the formula
// output back. It reverts without side effects when the output is below
// MinOutput.
func (p *Pool) SwapExactIn(_ context.Context, req app.SwapRequest) (uint64, error) {
	if err := p.supports(req.Input, req.Output); err != nil {
		return 0, err
	}

	var out uint64
	err := p.ledger.Update(func(tx *ledger.Tx) error {
		r := domain.Reserves{
			In:  uint256.NewInt(tx.Balance(p.account, req.Input)),
			Out: uint256.NewInt(tx.Balance(p.account, req.Output)),
		}
		res, err := domain.ConstantProductOut(r, req.Amount, p.feeBps, fixedpoint.BpsDenominator)
		if err != nil {
			return err
		}
		if res.NetOut < req.MinOutput {
			return apperror.New(apperror.CodeSlippageExceeded,
				apperror.WithContext(fmt.Sprintf("%s output %d below minimum %d", p.account, res.NetOut, req.MinOutput)))
		}
		if err := tx.Transfer(p.trader, p.account, req.Input, req.Amount); err != nil {
			return err
		}
		if err := tx.Transfer(p.account, p.trader, req.Output, res.NetOut); err != nil {
			return err
		}
		out = res.NetOut
		return nil
	})
	if err != nil {
		return 0, wrapLedgerErr(err)
	}
	return out, nil
}

func wrapLedgerErr(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.New(apperror.CodeInsufficientLiquidity, apperror.WithCause(err))
}
