package infra

import (
	"context"
	"sync"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/pkg/ui"
	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// TUIReporter forwards monitor activity to the Bubble Tea program.
type TUIReporter struct {
	settlement *asset.Asset
	send       func(msg any)

	mu    sync.Mutex
	stats components.Stats
	total uint64
}

var _ app.Reporter = (*TUIReporter)(nil)

// NewTUIReporter creates a TUIReporter sending to the running ui.Program.
func NewTUIReporter(settlement *asset.Asset) *TUIReporter {
	return &TUIReporter{
		settlement: settlement,
		send:       func(msg any) { ui.Send(msg) },
		stats:      components.Stats{RealizedProfit: formatAmount(settlement, 0)},
	}
}

// Start announces the monitor.
func (r *TUIReporter) Start(context.Context) error {
	r.send(ui.LogMsg{Level: "info", Message: "monitor started"})
	return nil
}

// ReportTick sends the pair table.
func (r *TUIReporter) ReportTick(summary app.TickSummary) {
	r.mu.Lock()
	r.stats.Ticks++
	r.stats.InFlight = summary.InFlight
	stats := r.stats
	r.mu.Unlock()

	r.send(ui.PairsMsg{
		Seq:      summary.Seq,
		Took:     summary.Duration,
		Rows:     pairRows(summary),
		InFlight: summary.InFlight,
	})
	r.send(ui.StatsMsg{Stats: stats})
}

// ReportOpportunity adds the decision to the activity feed.
func (r *TUIReporter) ReportOpportunity(opp *domain.Opportunity) {
	r.mu.Lock()
	r.stats.Opportunities++
	r.mu.Unlock()

	out := opp.Pair.Output
	r.send(ui.OpportunityMsg{
		Pair:      opp.Pair.Symbol(),
		Direction: opp.Direction.String(),
		Spread:    formatAmount(out, opp.Spread.Amount),
		Cost:      formatAmount(out, opp.Costs.Total),
		Profit:    formatAmount(out, opp.ExpectedProfit),
	})
}

// ReportOutcome adds the execution to the list.
func (r *TUIReporter) ReportOutcome(o domain.ExecutionOutcome) {
	r.mu.Lock()
	r.stats.Executions++
	if o.Success {
		r.stats.Successes++
		r.total += o.RealizedProfit
		r.stats.RealizedProfit = formatAmount(r.settlement, r.total)
	} else {
		r.stats.Failures++
	}
	stats := r.stats
	r.mu.Unlock()

	r.send(ui.OutcomeMsg{Row: executionRow(o, r.settlement)})
	r.send(ui.StatsMsg{Stats: stats})
	if o.CompensationFailed() {
		r.send(ui.ErrorMsg{Error: o.Err})
	}
}

// Stop is a no-op; the program is owned by main.
func (r *TUIReporter) Stop() error {
	return nil
}
