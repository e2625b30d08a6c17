package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds monitor totals for display.
type Stats struct {
	Ticks          uint64
	Opportunities  uint64
	Executions     uint64
	Successes      uint64
	Failures       uint64
	InFlight       int
	RealizedProfit string
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)

	successRate := float64(0)
	if s.stats.Executions > 0 {
		successRate = float64(s.stats.Successes) / float64(s.stats.Executions) * 100
	}

	failures := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failures))
	if s.stats.Failures > 0 {
		failures = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failures))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Ticks: %s  │  Opportunities: %s  │  Executions: %s (%.1f%% ok)  │  In flight: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Ticks)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Executions)),
			successRate,
			valueStyle.Render(fmt.Sprintf("%d", s.stats.InFlight)),
		) +
		fmt.Sprintf("Failures: %s  │  Realized profit: %s",
			failures,
			profitStyle.Render(s.stats.RealizedProfit),
		)
}
