package surface

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

// Render turns a frame into the styled text the Bubble Tea surface shows.
// The result has at most f.Height lines, none wider than f.Width.
func Render(f widgets.Frame) string {
	if f.Width <= 0 || f.Height <= 0 {
		return ""
	}
	if f.ShowHelp {
		if overlay, ok := renderHelp(f); ok {
			return overlay
		}
	}

	lines := make([]string, 0, f.Height)
	lines = append(lines, titleStyle.Render(f.Title))
	if f.Banner != "" {
		lines = append(lines, bannerStyle(f.BannerLevel).Render(f.Banner))
	}
	lines = append(lines, headerStyle.Render(f.Header))

	if f.Empty != "" {
		lines = append(lines, emptyStyle.Render(f.Empty))
	}
	for _, row := range f.Rows {
		style := rowStyle
		if row.Selected {
			style = selectedStyle
		}
		lines = append(lines, style.Render(widgets.Line(row.Cells)))
	}

	if f.Height == 1 {
		return lines[0]
	}

	// Keep the footer on the last line.
	if len(lines) > f.Height-1 {
		lines = lines[:f.Height-1]
	}
	for len(lines) < f.Height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, footerStyle.Render(f.Footer))
	return strings.Join(lines, "\n")
}

func bannerStyle(level widgets.Level) lipgloss.Style {
	if level == widgets.LevelError {
		return errorStyle
	}
	return warningStyle
}

// renderHelp centers the key list in a box. It reports false when the box
// does not fit.
func renderHelp(f widgets.Frame) (string, bool) {
	keyWidth := 0
	for _, h := range f.Help {
		if w := runewidth.StringWidth(h.Key); w > keyWidth {
			keyWidth = w
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	for _, h := range f.Help {
		b.WriteString("\n")
		b.WriteString(helpKeyStyle.Render(runewidth.FillRight(h.Key, keyWidth)))
		b.WriteString("  ")
		b.WriteString(helpDescStyle.Render(h.Desc))
	}

	box := helpBoxStyle.Render(b.String())
	if lipgloss.Width(box) > f.Width || lipgloss.Height(box) > f.Height {
		return "", false
	}
	return lipgloss.Place(f.Width, f.Height, lipgloss.Center, lipgloss.Center, box), true
}
