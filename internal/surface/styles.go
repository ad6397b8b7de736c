package surface

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Dashboard color palette, ANSI codes for terminal compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
	ColorPrimary lipgloss.Color = "7" // White/default
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
	ColorAccent  lipgloss.Color = "5" // Magenta
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Underline(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	selectedStyle = lipgloss.NewStyle().
			Reverse(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	emptyStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorInfo).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)
)

// DisableColor switches lipgloss to plain ASCII output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
