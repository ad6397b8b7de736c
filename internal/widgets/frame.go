// Package widgets turns topology rows plus transient UI state into a frame
// description that a render surface can draw.
//
// Build is a pure function: it works on copies of the rows and never touches
// the topology state it was given them from. Every line in the resulting frame
// fits inside the terminal width it was built for.
package widgets

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rileyhilliard/pipetop/internal/topology"
)

// Level is the severity of the banner line.
type Level int

const (
	LevelNone Level = iota
	LevelWarn
	LevelError
)

// Align is the horizontal alignment of a column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// HelpLine is one entry of the help overlay.
type HelpLine struct {
	Key  string
	Desc string
}

// View is the per-frame input besides the rows themselves.
type View struct {
	Title       string
	Status      string
	Banner      string
	BannerLevel Level
	Selected    int
	Offset      int
	Sort        SortKey
	ShowHelp    bool
	Help        []HelpLine
	Hints       []string
	// Trends holds recent throughput samples per stage, oldest first.
	Trends map[string][]float64
	Width  int
	Height int
}

// Column is one table column after layout.
type Column struct {
	Title string
	Width int
	Align Align

	id columnID
}

// RowView is one visible table row. Cells are already padded to their
// column widths.
type RowView struct {
	Name     string
	Cells    []string
	Selected bool
}

// Frame is everything a surface needs to draw one screen.
type Frame struct {
	Width  int
	Height int

	Title       string
	Banner      string
	BannerLevel Level
	Header      string
	Columns     []Column
	Rows        []RowView
	// Total is the number of rows before windowing.
	Total  int
	Empty  string
	Footer string

	ShowHelp bool
	Help     []HelpLine
}

// ColumnGap separates table cells.
const ColumnGap = "  "

// EmptyMessage is shown when the topology has no components.
const EmptyMessage = "No components"

// Build lays out rows for the given view.
func Build(rows []topology.Row, view View) Frame {
	f := Frame{
		Width:       view.Width,
		Height:      view.Height,
		Total:       len(rows),
		ShowHelp:    view.ShowHelp,
		Help:        view.Help,
		BannerLevel: view.BannerLevel,
	}
	if view.Width <= 0 || view.Height <= 0 {
		return f
	}

	sorted := SortRows(rows, view.Sort)

	f.Title = fit(titleLine(view, len(sorted)), view.Width)
	if view.Banner != "" {
		f.Banner = fit(view.Banner, view.Width)
	}
	f.Footer = fit(strings.Join(view.Hints, " | "), view.Width)

	f.Columns = layoutColumns(sorted, view.Width)
	f.Header = headerLine(f.Columns)

	if len(sorted) == 0 {
		f.Empty = fit(EmptyMessage, view.Width)
		return f
	}

	visible := VisibleRows(view.Height, view.Banner != "")
	offset := Viewport(len(sorted), view.Selected, view.Offset, visible)
	end := offset + visible
	if end > len(sorted) {
		end = len(sorted)
	}

	for i := offset; i < end; i++ {
		row := sorted[i]
		f.Rows = append(f.Rows, RowView{
			Name:     row.Name,
			Cells:    rowCells(row, f.Columns, view.Trends[row.Name]),
			Selected: i == view.Selected,
		})
	}
	return f
}

// Line joins cells with the column gap.
func Line(cells []string) string {
	return strings.Join(cells, ColumnGap)
}

// VisibleRows is how many table rows fit under the title, optional banner and
// column header, above the footer.
func VisibleRows(height int, banner bool) int {
	chrome := 3 // title, header, footer
	if banner {
		chrome++
	}
	if height <= chrome {
		return 0
	}
	return height - chrome
}

// Viewport returns the scroll offset that keeps selected visible, moving
// offset as little as possible and never scrolling past the end.
func Viewport(total, selected, offset, visible int) int {
	if visible <= 0 || total <= visible {
		return 0
	}
	if selected >= 0 {
		if selected < offset {
			offset = selected
		}
		if selected >= offset+visible {
			offset = selected - visible + 1
		}
	}
	if offset > total-visible {
		offset = total - visible
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func titleLine(view View, total int) string {
	parts := []string{view.Title}
	if view.Status != "" {
		parts = append(parts, view.Status)
	}
	parts = append(parts, fmt.Sprintf("%d components", total))
	parts = append(parts, "sort: "+view.Sort.String())
	return strings.Join(parts, " | ")
}

func headerLine(cols []Column) string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = pad(c.Title, c.Width, c.Align)
	}
	return Line(cells)
}

// fit truncates s to width terminal cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// pad truncates or pads s to exactly width cells.
func pad(s string, width int, align Align) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "…")
	if align == AlignRight {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}
