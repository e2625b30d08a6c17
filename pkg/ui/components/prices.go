// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PairRow is one watch-list entry as of the last tick. Values are formatted
// by the caller.
type PairRow struct {
	Pair       string
	PriceA     string
	PriceB     string
	Spread     string
	Cost       string
	Profitable bool
	InFlight   bool
	Err        string
}

// PricesComponent renders the per-pair spread table.
type PricesComponent struct {
	rows []PairRow
	seq  uint64
	took string
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{}
}

// Update replaces the rows with the latest tick.
func (p *PricesComponent) Update(seq uint64, took string, rows []PairRow) {
	p.seq = seq
	p.took = took
	p.rows = rows
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	if len(p.rows) == 0 {
		return "Waiting for the first tick..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("PAIRS (tick #%d, %s)", p.seq, p.took)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %-12s  %10s  %10s  %14s  %14s  %s\n",
		"Pair", "Venue A", "Venue B", "Spread", "Cost", "State"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n")

	for _, row := range p.rows {
		var state string
		switch {
		case row.Err != "":
			state = negativeStyle.Render("error")
		case row.InFlight:
			state = warnStyle.Render("in flight")
		case row.Profitable:
			state = positiveStyle.Render("PROFITABLE")
		default:
			state = dimStyle.Render("below cost")
		}

		b.WriteString(fmt.Sprintf("  %-12s  %10s  %10s  %14s  %14s  %s\n",
			row.Pair, row.PriceA, row.PriceB, row.Spread, row.Cost, state))
		if row.Err != "" {
			b.WriteString(dimStyle.Render("    "+row.Err) + "\n")
		}
	}
	return b.String()
}
