package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// Fit shortens s to width terminal columns, keeping ANSI styling intact.
// A width of zero or less leaves s unchanged.
func Fit(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return ellipsis
	}
	return ansi.Truncate(s, width, ellipsis)
}

// FitLines applies Fit to every line of s.
func FitLines(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = Fit(line, width)
	}
	return strings.Join(lines, "\n")
}
