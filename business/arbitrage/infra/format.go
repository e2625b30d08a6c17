// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// priceDecimals matches fixedpoint.PricePrecision.
const priceDecimals = 6

func formatPrice(p uint64) string {
	return asset.FormatRaw(p, priceDecimals).StringFixed(priceDecimals)
}

// formatAmount renders raw units of a, e.g. "0.003612 WETH".
func formatAmount(a *asset.Asset, raw uint64) string {
	if a == nil {
		return "?"
	}
	return asset.NewAmount(a, raw).String()
}

func pairRows(summary app.TickSummary) []components.PairRow {
	rows := make([]components.PairRow, 0, len(summary.Pairs))
	for _, st := range summary.Pairs {
		row := components.PairRow{
			Pair:       st.Pair.Symbol(),
			Profitable: st.Profitable,
			InFlight:   st.InFlight,
		}
		if st.Err != nil {
			row.Err = st.Err.Error()
		}
		if st.PriceA > 0 || st.PriceB > 0 {
			row.PriceA = formatPrice(st.PriceA)
			row.PriceB = formatPrice(st.PriceB)
			row.Spread = formatAmount(st.Pair.Output, st.Spread)
			row.Cost = formatAmount(st.Pair.Output, st.Cost)
		}
		rows = append(rows, row)
	}
	return rows
}

func executionRow(o domain.ExecutionOutcome, settlement *asset.Asset) components.ExecutionRow {
	row := components.ExecutionRow{
		Time:          o.FinishedAt.Format("15:04:05"),
		Pair:          o.Pair.Symbol(),
		Direction:     o.Direction.String(),
		State:         o.State.String(),
		Profit:        formatAmount(settlement, o.RealizedProfit),
		Success:       o.Success,
		Compensations: len(o.Compensations),
	}
	if !o.Success {
		row.Failure = o.FailureKind.String()
	}
	return row
}
