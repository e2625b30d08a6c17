package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorAccent = lipgloss.Color("#7C3AED")
	ColorProfit = lipgloss.Color("#10B981")
	ColorLoss   = lipgloss.Color("#EF4444")
	ColorBusy   = lipgloss.Color("#F59E0B")
	ColorDim    = lipgloss.Color("#6B7280")
	ColorFrame  = lipgloss.Color("#374151")
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFrame).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorAccent).
			Padding(0, 2)

	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	// Monitor state
	ScanningStyle  = lipgloss.NewStyle().Foreground(ColorProfit).Bold(true)
	StalledStyle   = lipgloss.NewStyle().Foreground(ColorLoss).Bold(true)
	ExecutingStyle = lipgloss.NewStyle().Foreground(ColorBusy).Bold(true)

	ProfitText = lipgloss.NewStyle().Foreground(ColorProfit)
	LossText   = lipgloss.NewStyle().Foreground(ColorLoss)
	DimText    = lipgloss.NewStyle().Foreground(ColorDim)

	HelpStyle = DimText.Padding(0, 1)
)

// activityStyle colours a feed line by what it reports.
func activityStyle(line string) lipgloss.Style {
	switch {
	case strings.Contains(line, "expect"), strings.Contains(line, "profit_transferred"):
		return ProfitText
	case strings.Contains(line, "] ERROR:"), strings.Contains(line, "reverted"):
		return LossText
	default:
		return DimText
	}
}
