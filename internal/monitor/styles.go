package monitor

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.Color("#A78BFA") // violet
	OkColor      = lipgloss.Color("#10B981") // green
	WarningColor = lipgloss.Color("#F59E0B") // amber
	ErrorColor   = lipgloss.Color("#F87171") // red
	MutedColor   = lipgloss.Color("#9CA3AF") // gray
	BorderColor  = lipgloss.Color("#6B7280")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Label   = lipgloss.NewStyle().Foreground(MutedColor).Width(18)
	Value   = lipgloss.NewStyle().Bold(true)
	Ok      = lipgloss.NewStyle().Foreground(OkColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)
)

// CodeStyle picks the style a result code is rendered with.
func CodeStyle(ok, pending bool) lipgloss.Style {
	switch {
	case ok:
		return Ok
	case pending:
		return Muted
	}
	return Error
}
