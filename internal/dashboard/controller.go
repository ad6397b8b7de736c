// Package dashboard runs a monitoring session: it connects to the pipeline
// API, seeds the topology from a snapshot and then drives a single event
// loop that applies metric updates, reacts to input and draws frames.
//
// The controller goroutine is the only writer of the topology state and the
// only caller of Surface.Draw. Everything else (input, the render clock and
// the metric feed) runs as a producer feeding the events multiplexer.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/rileyhilliard/pipetop/internal/api"
	perrors "github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/logger"
	"github.com/rileyhilliard/pipetop/internal/topology"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

// Transport is the pipeline API as the controller sees it.
type Transport interface {
	Health(ctx context.Context) error
	Topology(ctx context.Context) ([]topology.Row, error)
	Metrics(ctx context.Context) ([]topology.Update, error)
	Subscribe(ctx context.Context, interval time.Duration, fn func(api.Batch)) error
}

// Surface draws frames and reports terminal input.
type Surface interface {
	// Start takes over the terminal.
	Start(ctx context.Context) error
	Draw(frame widgets.Frame) error
	// Input delivers key presses and resizes until the surface is closed.
	Input() <-chan events.Input
	// Close restores the terminal.
	Close() error
}

// Phase is the controller lifecycle state.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseRunning
	PhaseDegraded
	PhaseTerminated
)

// String returns the label shown in the title line.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseRunning:
		return "running"
	case PhaseDegraded:
		return "degraded"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Metric feed modes.
const (
	ModePoll      = "poll"
	ModeSubscribe = "subscribe"
)

// Defaults applied to zero Config fields.
const (
	DefaultTitle           = "pipetop"
	DefaultTickInterval    = 250 * time.Millisecond
	DefaultRefreshInterval = time.Second
	DefaultTimeout         = 5 * time.Second
	DefaultLostAfter       = 3
)

// Config is the resolved session configuration.
type Config struct {
	Title string
	// URL is the API endpoint, used in diagnostics.
	URL             string
	TickInterval    time.Duration
	RefreshInterval time.Duration
	// Timeout bounds the startup queries and every refresh.
	Timeout time.Duration
	// Mode selects the metric feed: ModePoll or ModeSubscribe.
	Mode string
	// LostAfter is the number of consecutive failed polls that count as a
	// lost connection.
	LostAfter int
	Sort      widgets.SortKey
	TrendSize int
}

func (c Config) withDefaults() Config {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Mode == "" {
		c.Mode = ModePoll
	}
	if c.LostAfter <= 0 {
		c.LostAfter = DefaultLostAfter
	}
	if c.TrendSize <= 0 {
		c.TrendSize = DefaultTrendSize
	}
	return c
}

// Controller owns one monitoring session.
type Controller struct {
	cfg       Config
	transport Transport
	surface   Surface
	log       logger.Logger
	now       func() time.Time
	keys      keyMap

	phase   Phase
	state   *topology.State
	trends  *Trends
	mux     *events.Multiplexer
	refresh chan struct{}

	// UI-only state.
	selected int
	offset   int
	sort     widgets.SortKey
	showHelp bool
	width    int
	height   int

	lostErr   error
	transient string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithClock overrides the time source used to stamp the snapshot.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller. Nothing happens until Run.
func New(cfg Config, transport Transport, surface Surface, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:       cfg,
		transport: transport,
		surface:   surface,
		log:       logger.Noop(),
		now:       time.Now,
		keys:      defaultKeyMap(),
		phase:     PhaseConnecting,
		trends:    NewTrends(cfg.TrendSize),
		refresh:   make(chan struct{}, 1),
		sort:      cfg.Sort,
		selected:  -1,
		width:     80,
		height:    24,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase reports the current lifecycle state.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Run connects, then processes events until the user quits or ctx ends.
// Startup failures are returned as UNREACHABLE or SNAPSHOT errors without
// touching the terminal; surface failures as RENDER errors.
func (c *Controller) Run(ctx context.Context) error {
	rows, err := c.connect(ctx)
	if err != nil {
		c.phase = PhaseTerminated
		return err
	}
	c.state = topology.New(rows, c.now())
	c.clamp()

	if err := c.surface.Start(ctx); err != nil {
		c.phase = PhaseTerminated
		return perrors.WrapWithCode(err, perrors.ErrRender,
			"couldn't start the terminal UI",
			"Run pipetop in an interactive terminal, or try --renderer tcell")
	}
	c.phase = PhaseRunning
	c.log.Info("session started against %s with %d stages", c.cfg.URL, c.state.Len())

	mux := events.New(ctx, events.Options{})
	mux.Go(events.Forward(c.surface.Input()))
	mux.Go(events.Ticker(c.cfg.TickInterval))
	mux.Go(c.feed(rows))

	loopErr := c.loop(ctx, mux)
	c.phase = PhaseTerminated

	joinErr := mux.Close()
	closeErr := c.surface.Close()
	c.log.Info("session ended")

	switch {
	case loopErr != nil:
		return loopErr
	case joinErr != nil:
		return perrors.WrapWithCode(joinErr, perrors.ErrRefresh, "metric feed stopped", "")
	case closeErr != nil:
		return perrors.WrapWithCode(closeErr, perrors.ErrRender, "couldn't restore the terminal", "Run `reset` to restore your terminal")
	}
	return nil
}

func (c *Controller) connect(ctx context.Context) ([]topology.Row, error) {
	hctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	err := c.transport.Health(hctx)
	cancel()
	if err != nil {
		c.log.Error("health check failed: %v", err)
		return nil, perrors.WrapWithCode(err, perrors.ErrUnreachable,
			fmt.Sprintf("Can't reach the pipeline API at %s", c.cfg.URL),
			"Check the pipeline is running with its API enabled, or pass --url")
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	rows, err := c.transport.Topology(sctx)
	cancel()
	if err != nil {
		c.log.Error("topology snapshot failed: %v", err)
		return nil, perrors.WrapWithCode(err, perrors.ErrSnapshot,
			fmt.Sprintf("Couldn't load the pipeline topology from %s", c.cfg.URL),
			"The API answered the health check but not the components query; check the pipeline logs")
	}
	return rows, nil
}

func (c *Controller) feed(seed []topology.Row) events.Producer {
	if c.cfg.Mode == ModeSubscribe {
		return newSubscriber(c.transport, c.cfg, c.log).run
	}
	return newPoller(c.transport, c.cfg, seed, c.refresh, c.log).run
}

// loop consumes events until Shutdown.
func (c *Controller) loop(ctx context.Context, mux *events.Multiplexer) error {
	c.mux = mux
	if err := c.draw(); err != nil {
		return err
	}
	for {
		ev := mux.Next(ctx)
		if ev.Kind == events.KindShutdown {
			return nil
		}
		if err := c.handle(ev); err != nil {
			return err
		}
	}
}

func (c *Controller) handle(ev events.Event) error {
	switch ev.Kind {
	case events.KindTick:
		return c.draw()

	case events.KindMetricUpdate:
		for _, u := range ev.Batch {
			c.state.Apply(u)
			if row, ok := c.state.Get(u.Name); ok {
				c.trends.Push(u.Name, row.Throughput)
			}
		}
		c.transient = ""
		c.clamp()

	case events.KindRefreshFailed:
		c.transient = "refresh failed: " + perrors.Diagnostic(ev.Err)

	case events.KindConnectionLost:
		c.lostErr = ev.Err
		if c.phase == PhaseRunning {
			c.phase = PhaseDegraded
			c.log.Warn("degraded: %v", perrors.Diagnostic(ev.Err))
		}
		c.clamp()

	case events.KindConnectionRestored:
		c.lostErr = nil
		c.transient = ""
		if c.phase == PhaseDegraded {
			c.phase = PhaseRunning
			c.log.Info("running again")
		}
		c.clamp()

	case events.KindTopologyChanged:
		for _, name := range ev.Removed {
			c.state.Remove(name)
			c.trends.Remove(name)
		}
		c.clamp()

	case events.KindInput:
		c.handleInput(ev.Input)
	}
	return nil
}

func (c *Controller) handleInput(in events.Input) {
	if in.Resize {
		c.width, c.height = in.Width, in.Height
		c.clamp()
		return
	}

	k := keyName(in.Key)
	n := c.state.Len()
	page := widgets.VisibleRows(c.height, c.hasBanner())
	if page < 1 {
		page = 1
	}

	switch {
	case key.Matches(k, c.keys.Quit):
		c.mux.Shutdown()
		return
	case key.Matches(k, c.keys.Help):
		c.showHelp = !c.showHelp
	case key.Matches(k, c.keys.Close):
		c.showHelp = false
	case key.Matches(k, c.keys.Up):
		if c.selected > 0 {
			c.selected--
		}
	case key.Matches(k, c.keys.Down):
		if c.selected < n-1 {
			c.selected++
		}
	case key.Matches(k, c.keys.Top):
		c.selected = 0
	case key.Matches(k, c.keys.Bottom):
		c.selected = n - 1
	case key.Matches(k, c.keys.PageUp):
		c.selected -= page
	case key.Matches(k, c.keys.PageDown):
		c.selected += page
	case key.Matches(k, c.keys.Sort):
		name := c.selectedName()
		c.sort = c.sort.Next()
		c.selectName(name)
	case key.Matches(k, c.keys.Refresh):
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	default:
		return
	}
	c.clamp()
}

// clamp keeps the selection inside the table (or -1 when it is empty) and
// scrolls so it stays visible.
func (c *Controller) clamp() {
	n := c.state.Len()
	if n == 0 {
		c.selected, c.offset = -1, 0
		return
	}
	if c.selected < 0 {
		c.selected = 0
	}
	if c.selected > n-1 {
		c.selected = n - 1
	}
	c.offset = widgets.Viewport(n, c.selected, c.offset, widgets.VisibleRows(c.height, c.hasBanner()))
}

func (c *Controller) selectedName() string {
	rows := widgets.SortRows(c.state.Rows(), c.sort)
	if c.selected < 0 || c.selected >= len(rows) {
		return ""
	}
	return rows[c.selected].Name
}

func (c *Controller) selectName(name string) {
	for i, r := range widgets.SortRows(c.state.Rows(), c.sort) {
		if r.Name == name {
			c.selected = i
			return
		}
	}
}

func (c *Controller) banner() (string, widgets.Level) {
	if c.phase == PhaseDegraded {
		msg := "connection lost, showing last known values"
		if c.lostErr != nil {
			msg += ": " + perrors.Diagnostic(c.lostErr)
		}
		return msg, widgets.LevelError
	}
	if c.transient != "" {
		return c.transient, widgets.LevelWarn
	}
	return "", widgets.LevelNone
}

func (c *Controller) hasBanner() bool {
	b, _ := c.banner()
	return b != ""
}

func (c *Controller) view() widgets.View {
	banner, level := c.banner()
	return widgets.View{
		Title:       c.cfg.Title,
		Status:      c.phase.String(),
		Banner:      banner,
		BannerLevel: level,
		Selected:    c.selected,
		Offset:      c.offset,
		Sort:        c.sort,
		ShowHelp:    c.showHelp,
		Help:        c.keys.helpLines(),
		Hints:       c.keys.hints(),
		Trends:      c.trends.Snapshot(),
		Width:       c.width,
		Height:      c.height,
	}
}

// draw renders the current state. A failing surface ends the session.
func (c *Controller) draw() error {
	frame := widgets.Build(c.state.Rows(), c.view())
	if err := c.surface.Draw(frame); err != nil {
		c.log.Error("draw failed: %v", err)
		return perrors.WrapWithCode(err, perrors.ErrRender, "Terminal UI stopped working", "")
	}
	return nil
}
