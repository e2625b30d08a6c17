package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ExecutionRow is one finished execution.
type ExecutionRow struct {
	Time          string
	Pair          string
	Direction     string
	State         string
	Profit        string
	Failure       string
	Success       bool
	Compensations int
}

// ExecutionsComponent renders the most recent executions, newest first.
type ExecutionsComponent struct {
	rows    []ExecutionRow
	maxRows int
	offset  int
	visible int
}

// NewExecutionsComponent creates a list keeping at most maxRows entries.
func NewExecutionsComponent(maxRows, visible int) *ExecutionsComponent {
	return &ExecutionsComponent{maxRows: maxRows, visible: visible}
}

// Add prepends row.
func (e *ExecutionsComponent) Add(row ExecutionRow) {
	e.rows = append([]ExecutionRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
}

// Clear drops all rows.
func (e *ExecutionsComponent) Clear() {
	e.rows = nil
	e.offset = 0
}

func (e *ExecutionsComponent) ScrollUp() {
	if e.offset > 0 {
		e.offset--
	}
}

func (e *ExecutionsComponent) ScrollDown() {
	if e.offset+e.visible < len(e.rows) {
		e.offset++
	}
}

// Len returns the number of stored rows.
func (e *ExecutionsComponent) Len() int { return len(e.rows) }

// View renders the executions component.
func (e *ExecutionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("EXECUTIONS (%d)", len(e.rows))))
	b.WriteString("\n\n")
	if len(e.rows) == 0 {
		b.WriteString(dimStyle.Render("  No executions yet..."))
		return b.String()
	}

	end := min(e.offset+e.visible, len(e.rows))
	for _, row := range e.rows[e.offset:end] {
		icon, style := "✓", okStyle
		detail := row.Profit
		if !row.Success {
			icon, style = "✗", failStyle
			detail = row.Failure
			if row.Compensations > 0 {
				detail += fmt.Sprintf(" (%d undone)", row.Compensations)
			}
		}
		b.WriteString(fmt.Sprintf("  %s %s %-12s %-5s %-20s %s\n",
			style.Render(icon),
			dimStyle.Render(row.Time),
			row.Pair,
			row.Direction,
			row.State,
			style.Render(detail),
		))
	}
	if len(e.rows) > e.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d-%d of %d", e.offset+1, end, len(e.rows))))
	}
	return b.String()
}
