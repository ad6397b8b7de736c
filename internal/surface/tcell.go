package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

// keyNames maps tcell special keys onto the names the Bubble Tea backend
// reports, so both backends share one key map.
var keyNames = map[tcell.Key]string{
	tcell.KeyUp:        "up",
	tcell.KeyDown:      "down",
	tcell.KeyLeft:      "left",
	tcell.KeyRight:     "right",
	tcell.KeyHome:      "home",
	tcell.KeyEnd:       "end",
	tcell.KeyPgUp:      "pgup",
	tcell.KeyPgDn:      "pgdown",
	tcell.KeyEnter:     "enter",
	tcell.KeyEscape:    "esc",
	tcell.KeyTab:       "tab",
	tcell.KeyBackspace: "backspace",
	tcell.KeyCtrlC:     "ctrl+c",
}

// Tcell paints frames directly onto a tcell screen.
type Tcell struct {
	opts   Options
	screen tcell.Screen
	input  chan events.Input
	quit   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewTcell creates the tcell surface. The screen is opened in Start.
func NewTcell(opts Options) *Tcell {
	return &Tcell{
		opts:  opts,
		input: make(chan events.Input, inputBuffer),
		quit:  make(chan struct{}),
	}
}

// newTcellOnScreen uses an existing screen, such as a simulation screen.
func newTcellOnScreen(screen tcell.Screen, opts Options) *Tcell {
	t := NewTcell(opts)
	t.screen = screen
	return t
}

// Start initializes the screen and starts reading terminal events.
func (t *Tcell) Start(context.Context) error {
	if t.screen == nil {
		if err := checkTerminal(); err != nil {
			return err
		}
		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.HideCursor()
	t.screen.Clear()

	t.wg.Add(1)
	go t.poll()
	return nil
}

func (t *Tcell) poll() {
	defer t.wg.Done()

	w, h := t.screen.Size()
	if !t.send(events.Input{Resize: true, Width: w, Height: h}) {
		return
	}

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		var in events.Input
		switch ev := ev.(type) {
		case *tcell.EventKey:
			name, ok := KeyName(ev)
			if !ok {
				continue
			}
			in = events.Input{Key: name}
		case *tcell.EventResize:
			w, h := ev.Size()
			in = events.Input{Resize: true, Width: w, Height: h}
		default:
			continue
		}
		if !t.send(in) {
			return
		}
	}
}

func (t *Tcell) send(in events.Input) bool {
	select {
	case t.input <- in:
		return true
	case <-t.quit:
		return false
	}
}

// KeyName returns the Bubble Tea style name of a key event.
func KeyName(ev *tcell.EventKey) (string, bool) {
	if ev.Key() == tcell.KeyRune {
		name := string(ev.Rune())
		if ev.Modifiers()&tcell.ModAlt != 0 {
			name = "alt+" + name
		}
		return name, true
	}
	name, ok := keyNames[ev.Key()]
	return name, ok
}

// Draw paints the frame and shows it.
func (t *Tcell) Draw(f widgets.Frame) error {
	if t.screen == nil {
		return errors.New("surface not started")
	}
	select {
	case <-t.quit:
		return errors.New("surface closed")
	default:
	}

	t.screen.Clear()
	p := painter{screen: t.screen, width: f.Width, noColor: t.opts.NoColor}

	y := 0
	line := func(s string, style tcell.Style) {
		if y < f.Height {
			p.text(0, y, s, style)
			y++
		}
	}

	line(f.Title, p.style(tcell.ColorFuchsia).Bold(true))
	if f.Banner != "" {
		color := tcell.ColorYellow
		if f.BannerLevel == widgets.LevelError {
			color = tcell.ColorRed
		}
		line(f.Banner, p.style(color).Bold(true))
	}
	line(f.Header, tcell.StyleDefault.Bold(true).Underline(true))
	if f.Empty != "" {
		line(f.Empty, p.style(tcell.ColorGray).Italic(true))
	}
	for _, row := range f.Rows {
		style := tcell.StyleDefault
		if row.Selected {
			style = style.Reverse(true)
		}
		line(widgets.Line(row.Cells), style)
	}
	if f.Height > 1 {
		p.text(0, f.Height-1, f.Footer, p.style(tcell.ColorGray))
	}
	if f.ShowHelp {
		p.help(f)
	}

	t.screen.Show()
	return nil
}

// Input delivers keys and resizes. It is closed by Close.
func (t *Tcell) Input() <-chan events.Input {
	return t.input
}

// Close restores the terminal.
func (t *Tcell) Close() error {
	t.closeOnce.Do(func() {
		close(t.quit)
		if t.screen != nil {
			t.screen.Fini()
		}
		t.wg.Wait()
		close(t.input)
	})
	return nil
}

type painter struct {
	screen  tcell.Screen
	width   int
	noColor bool
}

func (p painter) style(fg tcell.Color) tcell.Style {
	if p.noColor {
		return tcell.StyleDefault
	}
	return tcell.StyleDefault.Foreground(fg)
}

// text writes s from column x, clipped to the frame width.
func (p painter) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > p.width {
			return
		}
		p.screen.SetContent(x, y, r, nil, style)
		x += w
	}
}

// help draws the key list in a box at the top left, over the table.
func (p painter) help(f widgets.Frame) {
	keyWidth := 0
	for _, h := range f.Help {
		if w := runewidth.StringWidth(h.Key); w > keyWidth {
			keyWidth = w
		}
	}
	style := p.style(tcell.ColorTeal)
	for i, h := range f.Help {
		y := i + 1
		if y >= f.Height-1 {
			return
		}
		entry := " " + runewidth.FillRight(h.Key, keyWidth) + "  " + h.Desc + " "
		p.text(1, y, runewidth.FillRight(entry, p.width-2), style.Reverse(true))
	}
}
