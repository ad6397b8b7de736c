package widgets

import (
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/rileyhilliard/pipetop/internal/topology"
)

// column identifiers
type columnID int

const (
	colName columnID = iota
	colKind
	colEvents
	colErrors
	colThroughput
	colTrend
)

type columnSpec struct {
	id    columnID
	title string
	width int
	align Align
}

// Display order of the table.
var columnSpecs = []columnSpec{
	{colName, "Name", 0, AlignLeft},
	{colKind, "Kind", 9, AlignLeft},
	{colEvents, "Events", 14, AlignRight},
	{colErrors, "Errors", 12, AlignRight},
	{colThroughput, "Throughput", 12, AlignRight},
	{colTrend, "Trend", 16, AlignLeft},
}

// Columns removed first when the terminal is too narrow.
var dropOrder = []columnID{colTrend, colKind, colErrors, colThroughput, colEvents}

// Name column bounds.
const (
	minNameWidth = 8
	maxNameWidth = 40
)

// layoutColumns picks the columns that fit in width and sizes the name column.
func layoutColumns(rows []topology.Row, width int) []Column {
	nameWant := runewidth.StringWidth(columnSpecs[0].title)
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Name); w > nameWant {
			nameWant = w
		}
	}
	if nameWant < minNameWidth {
		nameWant = minNameWidth
	}
	if nameWant > maxNameWidth {
		nameWant = maxNameWidth
	}

	keep := make(map[columnID]bool, len(columnSpecs))
	for _, c := range columnSpecs {
		keep[c.id] = true
	}

	fixed := func() int {
		total := 0
		for _, c := range columnSpecs {
			if c.id != colName && keep[c.id] {
				total += c.width + len(ColumnGap)
			}
		}
		return total
	}

	for _, id := range dropOrder {
		if fixed()+minNameWidth <= width {
			break
		}
		keep[id] = false
	}

	nameWidth := width - fixed()
	if nameWidth > nameWant {
		nameWidth = nameWant
	}
	if nameWidth < 1 {
		nameWidth = 1
	}
	if nameWidth > width {
		nameWidth = width
	}

	cols := make([]Column, 0, len(columnSpecs))
	for _, c := range columnSpecs {
		if !keep[c.id] {
			continue
		}
		w := c.width
		if c.id == colName {
			w = nameWidth
		}
		cols = append(cols, Column{Title: c.title, Width: w, Align: c.align, id: c.id})
	}
	return cols
}

func rowCells(row topology.Row, cols []Column, trend []float64) []string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		var text string
		switch c.id {
		case colName:
			text = row.Name
		case colKind:
			text = row.Kind
		case colEvents:
			text = humanize.Comma(row.EventsProcessed)
		case colErrors:
			text = FormatErrors(row.Errors, row.ErrorDelta)
		case colThroughput:
			text = FormatRate(row.Throughput)
		case colTrend:
			text = Sparkline(trend, c.Width)
		}
		cells[i] = pad(text, c.Width, c.Align)
	}
	return cells
}

// FormatRate renders an events/second rate.
func FormatRate(perSecond float64) string {
	if perSecond < 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		perSecond = 0
	}
	if perSecond < 1000 {
		return fmt.Sprintf("%.1f/s", perSecond)
	}
	return humanize.SIWithDigits(perSecond, 1, "/s")
}

// FormatErrors renders the cumulative error count with the latest increase.
func FormatErrors(total, delta int64) string {
	if delta > 0 {
		return fmt.Sprintf("%s (+%s)", humanize.Comma(total), humanize.Comma(delta))
	}
	return humanize.Comma(total)
}

// SortKey selects the table order.
type SortKey int

const (
	SortInsertion SortKey = iota
	SortName
	SortThroughput
	SortErrors
)

// String returns a human-readable label for the sort key.
func (s SortKey) String() string {
	switch s {
	case SortInsertion:
		return "topology"
	case SortName:
		return "name"
	case SortThroughput:
		return "throughput"
	case SortErrors:
		return "errors"
	default:
		return "topology"
	}
}

// Next cycles to the next sort key.
func (s SortKey) Next() SortKey {
	return SortKey((int(s) + 1) % 4)
}

// ParseSortKey maps a config value to a SortKey.
func ParseSortKey(s string) (SortKey, bool) {
	for k := SortInsertion; k <= SortErrors; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return SortInsertion, false
}

// SortRows returns a sorted copy of rows. Insertion order is kept for
// SortInsertion; the other keys sort descending by value and break ties by name.
func SortRows(rows []topology.Row, key SortKey) []topology.Row {
	out := make([]topology.Row, len(rows))
	copy(out, rows)

	switch key {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Name < out[j].Name
		})
	case SortThroughput:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Throughput != out[j].Throughput {
				return out[i].Throughput > out[j].Throughput
			}
			return out[i].Name < out[j].Name
		})
	case SortErrors:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Errors != out[j].Errors {
				return out[i].Errors > out[j].Errors
			}
			return out[i].Name < out[j].Name
		})
	}
	return out
}
