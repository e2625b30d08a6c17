// Package paper provides an in-process lending pool on the shared ledger.
package paper

import (
	"context"

	"github.com/fd1az/flashloan-arb/business/lending/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/ledger"
)

var _ app.Lender = (*Lender)(nil)

// Lender lends from its ledger account to one borrower.
type Lender struct {
	account  ledger.Account
	borrower ledger.Account
	ledger   *ledger.Ledger
}

// NewLender opens the lender account "lender:<name>".
func NewLender(l *ledger.Ledger, name string, borrower ledger.Account) *Lender {
	lender := &Lender{
		account:  ledger.Account("lender:" + name),
		borrower: borrower,
		ledger:   l,
	}
	l.Open(lender.account, borrower)
	return lender
}

// Name returns the lender account name.
func (p *Lender) Name() string { return string(p.account) }

// Account returns the ledger account holding liquidity.
func (p *Lender) Account() ledger.Account { return p.account }

// Fund mints liquidity.
func (p *Lender) Fund(id asset.AssetID, amount uint64) error {
	return p.ledger.Mint(p.account, id, amount)
}

// Available returns the lender balance.
func (p *Lender) Available(_ context.Context, id asset.AssetID) (uint64, error) {
	return p.ledger.Balance(p.account, id), nil
}

// Borrow moves amount to the borrower.
func (p *Lender) Borrow(_ context.Context, id asset.AssetID, amount uint64) error {
	if err := p.ledger.Transfer(p.account, p.borrower, id, amount); err != nil {
		return apperror.New(apperror.CodeLoanUnavailable, apperror.WithCause(err))
	}
	return nil
}

// Repay moves amount back from the borrower.
func (p *Lender) Repay(_ context.Context, id asset.AssetID, amount uint64) error {
	if err := p.ledger.Transfer(p.borrower, p.account, id, amount); err != nil {
		return apperror.New(apperror.CodeInsufficientProfit, apperror.WithCause(err),
			apperror.WithContext("borrower cannot repay"))
	}
	return nil
}
