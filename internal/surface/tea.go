package surface

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

// frameMsg carries a frame from the controller into the program.
type frameMsg widgets.Frame

// model is the Bubble Tea side of the bridge. It owns no dashboard state:
// keys and resizes go out on input, frames come in as frameMsg.
type model struct {
	frame widgets.Frame
	input chan<- events.Input
	stop  <-chan struct{}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.forward(events.Input{Key: msg.String()})
	case tea.WindowSizeMsg:
		m.forward(events.Input{Resize: true, Width: msg.Width, Height: msg.Height})
	case frameMsg:
		m.frame = widgets.Frame(msg)
	}
	return m, nil
}

func (m model) View() string {
	return Render(m.frame)
}

func (m model) forward(in events.Input) {
	select {
	case m.input <- in:
	case <-m.stop:
	}
}

// Tea draws frames through a Bubble Tea program running on its own
// goroutine.
type Tea struct {
	opts    Options
	program *tea.Program
	input   chan events.Input
	stop    chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	runErr error

	closeOnce sync.Once
}

// NewTea creates the Bubble Tea surface. The program starts in Start.
func NewTea(opts Options) *Tea {
	return &Tea{
		opts:  opts,
		input: make(chan events.Input, inputBuffer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the program in the alternate screen.
func (t *Tea) Start(ctx context.Context) error {
	if t.opts.Output == nil {
		if err := checkTerminal(); err != nil {
			return err
		}
	}

	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithoutSignalHandler()}
	if t.opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(t.opts.Input))
	}
	if t.opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(t.opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	t.program = tea.NewProgram(model{input: t.input, stop: t.stop}, progOpts...)

	go func() {
		defer close(t.done)
		defer close(t.input)
		_, err := t.program.Run()
		t.mu.Lock()
		t.runErr = err
		t.mu.Unlock()
	}()
	return nil
}

// Draw hands the frame to the program. It fails once the program has exited.
func (t *Tea) Draw(f widgets.Frame) error {
	if t.program == nil {
		return errors.New("surface not started")
	}
	select {
	case <-t.done:
		if err := t.err(); err != nil {
			return err
		}
		return errors.New("terminal UI exited")
	default:
	}
	t.program.Send(frameMsg(f))
	return nil
}

// Input delivers keys and resizes. It is closed when the program exits.
func (t *Tea) Input() <-chan events.Input {
	return t.input
}

// Close quits the program and waits for the terminal to be restored.
func (t *Tea) Close() error {
	if t.program == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		close(t.stop)
		t.program.Quit()
		<-t.done
	})
	return t.err()
}

func (t *Tea) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if errors.Is(t.runErr, tea.ErrProgramKilled) || errors.Is(t.runErr, context.Canceled) {
		return nil
	}
	return t.runErr
}
