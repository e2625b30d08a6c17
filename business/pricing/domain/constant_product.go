package domain

import (
	"github.com/holiman/uint256"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
)

// Reserves are a pool's balances oriented for a swap direction.
type Reserves struct {
	In  *uint256.Int
	Out *uint256.Int
}

// Invariant returns In*Out, or false if it does not fit in 256 bits.
func (r Reserves) Invariant() (*uint256.Int, bool) {
	k, overflow := new(uint256.Int).MulOverflow(r.In, r.Out)
	return k, !overflow
}

// CPResult carries every step of a constant-product swap.
type CPResult struct {
	K             *uint256.Int
	NewReserveIn  *uint256.Int
	NewReserveOut *uint256.Int
	GrossOut      uint64
	NetOut        uint64
}

func calcErr(ctx string) error {
	return apperror.New(apperror.CodeCalculationError, apperror.WithContext(ctx))
}

// ConstantProductOut computes the output of swapping amountIn into a pool:
//
//	k = rin*rout; nin = rin+ain; nout = k/nin; gross = rout-nout
//	net = gross*(den-num)/den
func ConstantProductOut(r Reserves, amountIn, feeNum, feeDen uint64) (CPResult, error) {
	if r.In == nil || r.Out == nil || r.In.IsZero() || r.Out.IsZero() {
		return CPResult{}, calcErr("zero reserves")
	}
	if amountIn == 0 {
		return CPResult{}, calcErr("zero amount")
	}
	if feeDen == 0 || feeNum > feeDen {
		return CPResult{}, calcErr("invalid fee fraction")
	}

	k, ok := r.Invariant()
	if !ok {
		return CPResult{}, calcErr("invariant overflow")
	}
	nin, overflow := new(uint256.Int).AddOverflow(r.In, uint256.NewInt(amountIn))
	if overflow {
		return CPResult{}, calcErr("reserve in overflow")
	}
	nout := new(uint256.Int).Div(k, nin)
	gross, underflow := new(uint256.Int).SubOverflow(r.Out, nout)
	if underflow {
		return CPResult{}, calcErr("reserve out underflow")
	}
	grossOut, err := fixedpoint.ToUint64(gross)
	if err != nil {
		return CPResult{}, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}
	netOut, err := fixedpoint.MulDiv(grossOut, feeDen-feeNum, feeDen)
	if err != nil {
		return CPResult{}, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	return CPResult{
		K:             k,
		NewReserveIn:  nin,
		NewReserveOut: nout,
		GrossOut:      grossOut,
		NetOut:        netOut,
	}, nil
}
