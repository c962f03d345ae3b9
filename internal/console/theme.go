package console

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent    = lipgloss.Color("#e91e63")
	colorLive      = lipgloss.Color("#30d158")
	colorReference = lipgloss.Color("#64d2ff")
	colorWarning   = lipgloss.Color("#ffd60a")
	colorError     = lipgloss.Color("#ff453a")
	colorMuted     = lipgloss.Color("#808080")
)

// Theme holds the styles the view renders with.
type Theme struct {
	Title     lipgloss.Style
	Counts    lipgloss.Style
	Cursor    lipgloss.Style
	Selected  lipgloss.Style
	Live      lipgloss.Style
	Reference lipgloss.Style
	Draft     lipgloss.Style
	Busy      lipgloss.Style
	Pending   lipgloss.Style
	Label     lipgloss.Style
	Field     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Status    lipgloss.Style
	Help      lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Counts:    lipgloss.NewStyle().Foreground(colorMuted),
		Cursor:    lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Selected:  lipgloss.NewStyle().Bold(true),
		Live:      lipgloss.NewStyle().Foreground(colorLive),
		Reference: lipgloss.NewStyle().Foreground(colorReference),
		Draft:     lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
		Busy:      lipgloss.NewStyle().Foreground(colorWarning).Italic(true),
		Pending:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Label:     lipgloss.NewStyle().Foreground(colorMuted).Width(12),
		Field:     lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Width(12),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Error:     lipgloss.NewStyle().Foreground(colorError),
		Status:    lipgloss.NewStyle().Foreground(colorLive),
		Help:      lipgloss.NewStyle().Foreground(colorMuted),
	}
}
