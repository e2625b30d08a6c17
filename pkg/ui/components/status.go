package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Setting is one label/value pair of the run configuration.
type Setting struct {
	Name  string
	Value string
}

// StatusComponent renders the run configuration as a single line.
type StatusComponent struct {
	settings []Setting
}

// NewStatusComponent creates a status line over settings.
func NewStatusComponent(settings ...Setting) *StatusComponent {
	return &StatusComponent{settings: settings}
}

// Set updates or appends a setting.
func (s *StatusComponent) Set(name, value string) {
	for i := range s.settings {
		if s.settings[i].Name == name {
			s.settings[i].Value = value
			return
		}
	}
	s.settings = append(s.settings, Setting{Name: name, Value: value})
}

// View renders the status component.
func (s *StatusComponent) View() string {
	if len(s.settings) == 0 {
		return ""
	}
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	parts := make([]string, 0, len(s.settings))
	for _, st := range s.settings {
		parts = append(parts, nameStyle.Render(st.Name+":")+" "+valueStyle.Render(st.Value))
	}
	return strings.Join(parts, "  ")
}
