package domain

import (
	"time"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// State is a step of the execution state machine.
type State int

const (
	StateIdle State = iota
	StateBorrowed
	StateFirstSwapped
	StateSecondSwapped
	StateRepaid
	StateProfitTransferred
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBorrowed:
		return "borrowed"
	case StateFirstSwapped:
		return "first_swapped"
	case StateSecondSwapped:
		return "second_swapped"
	case StateRepaid:
		return "repaid"
	case StateProfitTransferred:
		return "profit_transferred"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// FailureKind classifies why an execution did not reach ProfitTransferred.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureCalculation
	FailureInsufficientProfit
	FailureInvalidTokenAccount
	FailureSlippageExceeded
	FailureNotProfitable
	FailureLoanUnavailable
	FailureTransferFailed
	FailureTransient
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureCalculation:
		return "calculation_error"
	case FailureInsufficientProfit:
		return "insufficient_profit"
	case FailureInvalidTokenAccount:
		return "invalid_token_account"
	case FailureSlippageExceeded:
		return "slippage_exceeded"
	case FailureNotProfitable:
		return "not_profitable"
	case FailureLoanUnavailable:
		return "loan_unavailable"
	case FailureTransferFailed:
		return "transfer_failed"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

var failureByCode = map[apperror.Code]FailureKind{
	apperror.CodeCalculationError:    FailureCalculation,
	apperror.CodeInsufficientProfit:  FailureInsufficientProfit,
	apperror.CodeInvalidTokenAccount: FailureInvalidTokenAccount,
	apperror.CodeSlippageExceeded:    FailureSlippageExceeded,
	apperror.CodeNotProfitable:       FailureNotProfitable,
	apperror.CodeLoanUnavailable:     FailureLoanUnavailable,
	apperror.CodeTransferFailed:      FailureTransferFailed,
}

// ClassifyFailure maps an error to its FailureKind.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if kind, ok := failureByCode[apperror.GetCode(err)]; ok {
		return kind
	}
	if apperror.IsTransient(err) {
		return FailureTransient
	}
	return FailureUnknown
}

// StepRecord is one forward step or compensation of an execution.
type StepRecord struct {
	Name     string
	State    State
	Input    uint64
	Output   uint64
	Err      string
	Duration time.Duration
}

// ExecutionOutcome is the terminal report of one triggered execution.
type ExecutionOutcome struct {
	ID        string
	Pair      TokenPair
	Direction Direction
	Success   bool
	State     State
	// Borrowed and Repaid are in settlement units.
	Borrowed uint64
	Repaid   uint64
	// RealizedProfit is the settlement balance left after repayment.
	RealizedProfit uint64
	FailureKind    FailureKind
	Err            error

	Steps         []StepRecord
	Compensations []StepRecord

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the execution.
func (o ExecutionOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// CompensationFailed reports whether any compensating action failed.
func (o ExecutionOutcome) CompensationFailed() bool {
	for _, c := range o.Compensations {
		if c.Err != "" {
			return true
		}
	}
	return false
}
