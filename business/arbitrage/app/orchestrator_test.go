package app_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

func (f *fixture) orchestrator(t *testing.T) *app.Orchestrator {
	t.Helper()
	o, err := app.NewOrchestrator(f.cfg, f.venues, f.loans, f.transfer, staticFees{fees: f.fees}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func compensationNames(out domain.ExecutionOutcome) []string {
	names := make([]string, 0, len(out.Compensations))
	for _, c := range out.Compensations {
		names = append(names, c.Name)
	}
	return names
}

func TestOrchestrator_RoundTrip(t *testing.T) {
	f := newFixture()

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if !out.Success || out.State != domain.StateProfitTransferred {
		t.Fatalf("outcome = %v %s %s: %v", out.Success, out.State, out.FailureKind, out.Err)
	}
	if out.Direction != domain.DirectionBThenA {
		t.Errorf("direction = %s, want B->A", out.Direction)
	}

	const (
		wantRepaid uint64 = 400_800_000_000_000_000 // principal + 20 bps
		wantProfit uint64 = 3_612_000_000_000_000
	)
	if out.Borrowed != loanAmount || out.Repaid != wantRepaid {
		t.Errorf("borrowed %d repaid %d, want %d and %d", out.Borrowed, out.Repaid, loanAmount, wantRepaid)
	}
	if out.RealizedProfit != wantProfit {
		t.Errorf("profit = %d, want %d", out.RealizedProfit, wantProfit)
	}

	want := []string{
		"borrow 400000000000000000",
		"swap desk 400000000000000000 WETH->USDC = 1000000000",
		"swap pool 1000000000 USDC->USDT = 1006000000",
		"swap desk 1006000000 USDT->USDC = 1011030000",
		"swap desk 1011030000 USDC->WETH = 404412000000000000",
		"repay 400800000000000000",
		"transfer 3612000000000000 WETH arb-executor->treasury",
	}
	if got := f.log.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("journal:\n got %q\nwant %q", got, want)
	}
	if len(out.Compensations) != 0 {
		t.Errorf("unexpected compensations: %v", compensationNames(out))
	}
}

func TestOrchestrator_ReverifyAbortsBeforeBorrowing(t *testing.T) {
	f := newFixture()
	// The pool caught up with the desk since detection.
	f.pool.setRate(f.pair.Input, f.pair.Output, 1019, 1000)

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.Success || out.State != domain.StateReverted || out.FailureKind != domain.FailureNotProfitable {
		t.Fatalf("outcome = %v %s %s", out.Success, out.State, out.FailureKind)
	}
	if n := f.loans.borrowCount(); n != 0 {
		t.Errorf("borrow calls = %d, want 0", n)
	}
	if f.desk.swapCount()+f.pool.swapCount() != 0 {
		t.Errorf("swap calls = %d", f.desk.swapCount()+f.pool.swapCount())
	}
	if len(f.log.list()) != 0 {
		t.Errorf("side effects: %v", f.log.list())
	}
}

func TestOrchestrator_EqualSpreadAndCostIsNotProfitable(t *testing.T) {
	f := newFixture()
	// spread 14_000_000 == cost
	f.fees.GasEstimate = 14_000_000 - 10_500_000

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)
	if out.FailureKind != domain.FailureNotProfitable || f.loans.borrowCount() != 0 {
		t.Fatalf("failure = %s, borrows = %d", out.FailureKind, f.loans.borrowCount())
	}
}

func TestOrchestrator_SwapFailureUnwindsInReverse(t *testing.T) {
	f := newFixture()
	f.pool.swapErr = apperror.New(apperror.CodeServiceTimeout)

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.Success || out.State != domain.StateReverted || out.FailureKind != domain.FailureTransient {
		t.Fatalf("outcome = %v %s %s", out.Success, out.State, out.FailureKind)
	}
	if got, want := compensationNames(out), []string{"undo_convert_in", "undo_borrow"}; !reflect.DeepEqual(got, want) {
		t.Errorf("compensations = %v, want %v", got, want)
	}
	if out.CompensationFailed() {
		t.Errorf("compensation failed: %+v", out.Compensations)
	}

	want := []string{
		"borrow 400000000000000000",
		"swap desk 400000000000000000 WETH->USDC = 1000000000",
		"swap desk 1000000000 USDC->WETH = 400000000000000000",
		"repay 400000000000000000",
	}
	if got := f.log.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("journal:\n got %q\nwant %q", got, want)
	}
}

func TestOrchestrator_SlippageExceeded(t *testing.T) {
	f := newFixture()
	f.pool.short[direction{f.pair.Input.ID(), f.pair.Output.ID()}] = 100

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.FailureKind != domain.FailureSlippageExceeded || out.State != domain.StateReverted {
		t.Fatalf("outcome = %s %s: %v", out.State, out.FailureKind, out.Err)
	}
	// The short delivery still arrived and is swapped back first.
	if got, want := compensationNames(out), []string{"undo_first_leg", "undo_convert_in", "undo_borrow"}; !reflect.DeepEqual(got, want) {
		t.Errorf("compensations = %v, want %v", got, want)
	}
	if out.Compensations[0].Input != 995_940_000 {
		t.Errorf("first compensation carried %d", out.Compensations[0].Input)
	}
	// Round-trip fees leave the loan short; that is reported, not hidden.
	if !out.CompensationFailed() {
		t.Error("expected the loan compensation to report a shortfall")
	}
	if len(f.loans.repays) != 1 || f.loans.repays[0] >= loanAmount {
		t.Errorf("repays = %v", f.loans.repays)
	}
}

func TestOrchestrator_InsufficientProfit(t *testing.T) {
	f := newFixture()
	f.desk.setRate(f.pair.Input, f.cfg.Settlement, 1_000_000_000_000, 2600)

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.FailureKind != domain.FailureInsufficientProfit || out.State != domain.StateReverted {
		t.Fatalf("outcome = %s %s: %v", out.State, out.FailureKind, out.Err)
	}
	if got, want := compensationNames(out), []string{"undo_borrow"}; !reflect.DeepEqual(got, want) {
		t.Errorf("compensations = %v, want %v", got, want)
	}
	if out.Repaid != 0 || out.RealizedProfit != 0 {
		t.Errorf("repaid %d profit %d", out.Repaid, out.RealizedProfit)
	}
}

func TestOrchestrator_ProfitTransferRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retries   int
		wantOK    bool
		wantState domain.State
		wantCalls int
	}{
		{"succeeds_after_retries", 2, 3, true, domain.StateProfitTransferred, 3},
		{"gives_up_after_pivot", 5, 1, false, domain.StateRepaid, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.transfer.failures = tt.failures
			f.cfg.TransferRetries = tt.retries

			out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

			if out.Success != tt.wantOK || out.State != tt.wantState {
				t.Fatalf("outcome = %v %s %s", out.Success, out.State, out.FailureKind)
			}
			if f.transfer.calls != tt.wantCalls {
				t.Errorf("transfer calls = %d, want %d", f.transfer.calls, tt.wantCalls)
			}
			if out.RealizedProfit != 3_612_000_000_000_000 {
				t.Errorf("profit = %d", out.RealizedProfit)
			}
			if !tt.wantOK {
				if out.FailureKind != domain.FailureTransferFailed {
					t.Errorf("failure = %s", out.FailureKind)
				}
				if len(out.Compensations) != 0 {
					t.Errorf("repaid loan must not be unwound: %v", compensationNames(out))
				}
			}
		})
	}
}

func TestOrchestrator_InvalidAccounts(t *testing.T) {
	f := newFixture()
	f.cfg.ProfitDestination = ""

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.FailureKind != domain.FailureInvalidTokenAccount {
		t.Fatalf("failure = %s", out.FailureKind)
	}
	if f.loans.borrowCount() != 0 {
		t.Error("borrowed with an invalid destination")
	}
}

func TestOrchestrator_LoanUnavailable(t *testing.T) {
	f := newFixture()
	f.loans.borrowErr = apperror.New(apperror.CodeLoanUnavailable)

	out := f.orchestrator(t).Execute(context.Background(), f.pair, 0)

	if out.FailureKind != domain.FailureLoanUnavailable || len(out.Compensations) != 0 {
		t.Fatalf("failure = %s compensations = %v", out.FailureKind, compensationNames(out))
	}
	if f.desk.swapCount() != 0 {
		t.Error("swapped without a loan")
	}
}
