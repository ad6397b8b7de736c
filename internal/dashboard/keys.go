package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

// keyName adapts a surface key name to the fmt.Stringer key.Matches expects.
type keyName string

func (k keyName) String() string { return string(k) }

// keyMap holds every binding the dashboard reacts to.
type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Sort     key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Close    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home/g", "first stage"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "last stage"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "page down"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle sort"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
	}
}

func (k keyMap) all() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown, k.Sort, k.Refresh, k.Help, k.Close, k.Quit}
}

// helpLines lists every binding for the help overlay.
func (k keyMap) helpLines() []widgets.HelpLine {
	bindings := k.all()
	lines := make([]widgets.HelpLine, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, widgets.HelpLine{Key: h.Key, Desc: h.Desc})
	}
	return lines
}

// hints is the short footer version.
func (k keyMap) hints() []string {
	short := []key.Binding{k.Up, k.Sort, k.Refresh, k.Help, k.Quit}
	out := make([]string, 0, len(short))
	for _, b := range short {
		h := b.Help()
		out = append(out, h.Key+" "+h.Desc)
	}
	return out
}
