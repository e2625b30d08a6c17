package infra

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

const rule = "================================================================================"

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu         sync.Mutex
	out        io.Writer
	settlement *asset.Asset
}

var _ app.Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter creates a ConsoleReporter. Profits are shown in
// settlement units.
func NewConsoleReporter(out io.Writer, settlement *asset.Asset) *ConsoleReporter {
	return &ConsoleReporter{out: out, settlement: settlement}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Flash-Loan Arbitrage Started")
	fmt.Fprintln(r.out, "============================")
	return nil
}

// ReportTick prints one line per pair.
func (r *ConsoleReporter) ReportTick(summary app.TickSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := summary.At.Format("15:04:05")
	for _, row := range pairRows(summary) {
		switch {
		case row.Err != "":
			fmt.Fprintf(r.out, "[%s] #%d %-12s error: %s\n", at, summary.Seq, row.Pair, row.Err)
		case row.InFlight:
			fmt.Fprintf(r.out, "[%s] #%d %-12s execution in flight, skipped\n", at, summary.Seq, row.Pair)
		default:
			fmt.Fprintf(r.out, "[%s] #%d %-12s A=%s B=%s spread=%s cost=%s\n",
				at, summary.Seq, row.Pair, row.PriceA, row.PriceB, row.Spread, row.Cost)
		}
	}
}

// ReportOpportunity prints the decision.
func (r *ConsoleReporter) ReportOpportunity(opp *domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := opp.Pair.Output
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Detected:       %s\n", opp.DetectedAt.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Pair:           %s\n", opp.Pair.Symbol())
	fmt.Fprintf(r.out, "Direction:      %s (buy on %s, sell on %s)\n", opp.Direction, opp.FirstVenue(), opp.SecondVenue())
	fmt.Fprintf(r.out, "Prices:         A %s | B %s\n", formatPrice(opp.Spread.PriceA), formatPrice(opp.Spread.PriceB))
	fmt.Fprintf(r.out, "Spread:         %s\n", formatAmount(out, opp.Spread.Amount))
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "  Loan fee:     %s\n", formatAmount(out, opp.Costs.LoanFee))
	fmt.Fprintf(r.out, "  Swap fees:    %s\n", formatAmount(out, opp.Costs.SwapFees))
	fmt.Fprintf(r.out, "  Conversion:   %s\n", formatAmount(out, opp.Costs.ConversionFee))
	fmt.Fprintf(r.out, "  Gas:          %s\n", formatAmount(out, opp.Costs.Gas))
	fmt.Fprintf(r.out, "  Min profit:   %s\n", formatAmount(out, opp.Costs.MinProfit))
	fmt.Fprintf(r.out, "Expected:       %s\n", formatAmount(out, opp.ExpectedProfit))
	fmt.Fprintln(r.out, rule)
}

// ReportOutcome prints the terminal state and every recorded step.
func (r *ConsoleReporter) ReportOutcome(o domain.ExecutionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := "SUCCESS"
	if !o.Success {
		result = "FAILED (" + o.FailureKind.String() + ")"
	}
	fmt.Fprintf(r.out, "EXECUTION %s %s: %s in %s, state %s\n",
		o.ID, o.Pair.Symbol(), result, o.Duration().Round(time.Millisecond), o.State)
	for _, s := range o.Steps {
		r.step("", s)
	}
	for _, s := range o.Compensations {
		r.step("undo ", s)
	}
	if o.Success {
		fmt.Fprintf(r.out, "  realized profit: %s\n", formatAmount(r.settlement, o.RealizedProfit))
	} else if o.Err != nil {
		fmt.Fprintf(r.out, "  error: %v\n", o.Err)
	}
	if o.CompensationFailed() {
		fmt.Fprintln(r.out, "  WARNING: compensation incomplete, manual review required")
	}
}

func (r *ConsoleReporter) step(prefix string, s domain.StepRecord) {
	status := "ok"
	if s.Err != "" {
		status = s.Err
	}
	fmt.Fprintf(r.out, "  %s%-22s %d -> %d  %s\n", prefix, s.Name, s.Input, s.Output, status)
}

// Stop prints the footer.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Flash-Loan Arbitrage Stopped")
	return nil
}
