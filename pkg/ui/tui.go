package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	pairs      *components.PricesComponent
	executions *components.ExecutionsComponent
	stats      *components.StatsComponent
	status     *components.StatusComponent
	keys       KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time
	started      bool

	// State
	quitting   bool
	paused     bool // freezes the pair table
	width      int
	height     int
	inFlight   int
	lastTick   time.Time
	lastUpdate time.Time
	errors     []ErrorEntry
	activity   []string
}

// New creates a new TUI model. settings seed the status line.
func New(settings ...components.Setting) Model {
	return Model{
		pairs:        components.NewPricesComponent(),
		executions:   components.NewExecutionsComponent(50, 8),
		stats:        components.NewStatsComponent(),
		status:       components.NewStatusComponent(settings...),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: time.Now(),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd sends a frame every 100ms for animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// enterDashboard leaves the welcome screen and starts the modules once.
func (m *Model) enterDashboard() {
	m.phase = PhaseDashboard
	if !m.started {
		m.started = true
		if OnStartModules != nil {
			go OnStartModules()
		}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	now := time.Now()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.enterDashboard()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.executions.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.executions.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.executions.ScrollDown()
		case key.Matches(msg, m.keys.ClearError):
			m.errors = nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.phase == PhaseWelcome && now.Sub(m.welcomeStart) >= WelcomeDuration {
			m.enterDashboard()
		}
		return m, tickCmd()

	case PairsMsg:
		m.inFlight = msg.InFlight
		m.lastTick = now
		if !m.paused {
			m.pairs.Update(msg.Seq, msg.Took.Round(time.Millisecond).String(), msg.Rows)
			m.lastUpdate = now
		}

	case OpportunityMsg:
		m.activity = addActivity(m.activity, now, fmt.Sprintf("%s %s spread %s > cost %s, expect %s",
			msg.Pair, msg.Direction, msg.Spread, msg.Cost, msg.Profit))
		m.lastUpdate = now

	case OutcomeMsg:
		m.executions.Add(msg.Row)
		line := fmt.Sprintf("%s %s: %s", msg.Row.Pair, msg.Row.State, msg.Row.Profit)
		if !msg.Row.Success {
			line = fmt.Sprintf("%s %s: %s", msg.Row.Pair, msg.Row.State, msg.Row.Failure)
		}
		m.activity = addActivity(m.activity, now, line)
		m.lastUpdate = now

	case StatsMsg:
		m.stats.Update(msg.Stats)

	case SettingMsg:
		m.status.Set(msg.Name, msg.Value)

	case ErrorMsg:
		if msg.Error != nil {
			m.errors = addError(m.errors, msg.Error.Error(), now)
		}

	case LogMsg:
		m.activity = addActivity(m.activity, now, msg.Level+": "+msg.Message)
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Shutting down, waiting for in-flight executions...\n\n"
	}
	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" ⚡ Flash-Loan Arbitrage "))
	b.WriteString("  ")
	b.WriteString(m.status.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.pairs.View()
	rightCol := m.renderActivityFeed() + "\n\n" + m.executions.View()

	if m.width > 120 {
		left := PanelStyle.Width(m.width/2 - 2).Render(leftCol)
		right := PanelStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(PanelStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(PanelStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(LossText.Bold(true).Render("ERRORS"))
		b.WriteString("\n")
		for _, e := range m.errors {
			ago := time.Since(e.Timestamp).Round(time.Second)
			b.WriteString(LossText.Render("  • " + e.Message + " "))
			b.WriteString(DimText.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(ExecutingStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) helpLine() string {
	parts := make([]string, 0, 6)
	for _, kb := range m.keys.ShortHelp() {
		h := kb.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("ACTIVITY"))
	sb.WriteString("\n\n")
	if len(m.activity) == 0 {
		sb.WriteString(DimText.Render("  Watching for opportunities..."))
		return sb.String()
	}
	for _, line := range m.activity {
		sb.WriteString(activityStyle(line).Render("  " + line))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
		goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorBusy)

	dots := strings.Repeat(".", int(time.Since(m.welcomeStart).Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(SectionStyle.Render(`
   ███████╗██╗      █████╗ ███████╗██╗  ██╗     █████╗ ██████╗ ██████╗
   ██╔════╝██║     ██╔══██╗██╔════╝██║  ██║    ██╔══██╗██╔══██╗██╔══██╗
   █████╗  ██║     ███████║███████╗███████║    ███████║██████╔╝██████╔╝
   ██╔══╝  ██║     ██╔══██║╚════██║██╔══██║    ██╔══██║██╔══██╗██╔══██╗
   ██║     ███████╗██║  ██║███████║██║  ██║    ██║  ██║██║  ██║██████╔╝
   ╚═╝     ╚══════╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝    ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`))
	sb.WriteString("\n")
	sb.WriteString(DimText.Render("            borrow · swap · swap · repay, or nothing at all"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("                     " + m.status.View()))
	sb.WriteString("\n\n")
	sb.WriteString(ProfitText.Render("                     Initializing" + dots))
	sb.WriteString("\n\n")
	sb.WriteString(DimText.Render("               Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if !m.lastTick.IsZero() && time.Since(m.lastTick) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, ScanningStyle.Render(spinners[idx]+" Scanning"))
	}

	if m.inFlight > 0 {
		parts = append(parts, ExecutingStyle.Render(fmt.Sprintf("● %d executing", m.inFlight)))
	} else {
		parts = append(parts, DimText.Render("○ idle"))
	}

	if m.lastTick.IsZero() {
		parts = append(parts, StalledStyle.Render("no tick yet"))
	} else {
		ago := time.Since(m.lastTick).Round(time.Second)
		parts = append(parts, DimText.Render(fmt.Sprintf("Last tick: %s ago", ago)))
	}
	if !m.lastUpdate.IsZero() {
		parts = append(parts, DimText.Render(fmt.Sprintf("Updated: %s ago", time.Since(m.lastUpdate).Round(time.Second))))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called once the welcome screen completes. Set by main.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
