// Package domain contains the core domain types for the lending context.
package domain

import (
	"time"

	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// Loan is an open flash loan.
type Loan struct {
	Venue      string
	Asset      asset.AssetID
	Principal  uint64
	Fee        uint64
	BorrowedAt time.Time
}

// NewLoan prices the fee for principal at feeBps.
func NewLoan(venue string, id asset.AssetID, principal, feeBps uint64, at time.Time) (Loan, error) {
	fee, err := fixedpoint.Bps(principal, feeBps)
	if err != nil {
		return Loan{}, err
	}
	return Loan{Venue: venue, Asset: id, Principal: principal, Fee: fee, BorrowedAt: at}, nil
}

// RepayAmount is principal plus fee.
func (l Loan) RepayAmount() (uint64, error) {
	return fixedpoint.Add(l.Principal, l.Fee)
}
