package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default lane sizes.
const (
	DefaultInputBuffer = 64
	DefaultDataBuffer  = 256
)

// Options sizes the multiplexer lanes.
type Options struct {
	InputBuffer int
	DataBuffer  int
}

// Multiplexer merges producer events into one stream. Each event kind travels
// on its own lane:
//
//	control  Shutdown                          (capacity 1)
//	input    key presses and resizes           (FIFO)
//	tick     render clock                      (capacity 1, coalescing)
//	data     metric updates and feed status    (FIFO)
//
// Next must be called from a single goroutine.
type Multiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	control chan Event
	input   chan Event
	tick    chan Event
	data    chan Event

	shutdownOnce sync.Once

	// consumer-side state
	held    *Event
	stopped bool
}

// New creates a multiplexer whose producers stop when parent ends or Close is called.
func New(parent context.Context, opts Options) *Multiplexer {
	if opts.InputBuffer <= 0 {
		opts.InputBuffer = DefaultInputBuffer
	}
	if opts.DataBuffer <= 0 {
		opts.DataBuffer = DefaultDataBuffer
	}

	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)

	return &Multiplexer{
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		control: make(chan Event, 1),
		input:   make(chan Event, opts.InputBuffer),
		tick:    make(chan Event, 1),
		data:    make(chan Event, opts.DataBuffer),
	}
}

// Go starts a producer. A producer returning an error stops every other
// producer and ends the stream with Shutdown.
func (m *Multiplexer) Go(p Producer) {
	m.group.Go(func() error {
		return p(m.ctx, m.Emit)
	})
}

// Emit queues ev on its lane. Ticks never block: if a tick is already
// pending the new one is dropped. Shutdown is routed to Shutdown.
func (m *Multiplexer) Emit(ctx context.Context, ev Event) bool {
	var lane chan Event
	switch ev.Kind {
	case KindShutdown:
		m.Shutdown()
		return true
	case KindTick:
		select {
		case m.tick <- ev:
		default:
		}
		return true
	case KindInput:
		lane = m.input
	default:
		lane = m.data
	}

	select {
	case lane <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-m.ctx.Done():
		return false
	}
}

// Shutdown requests the end of the stream. The Shutdown event is delivered
// ahead of anything still queued. Safe to call from any goroutine.
func (m *Multiplexer) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.control <- Event{Kind: KindShutdown, At: time.Now()}
	})
}

// Next blocks until an event is ready. Once Shutdown has been returned every
// later call returns Shutdown again without blocking. Cancelling ctx, or the
// multiplexer's own context, also yields Shutdown.
func (m *Multiplexer) Next(ctx context.Context) Event {
	if m.stopped {
		return Event{Kind: KindShutdown, At: time.Now()}
	}

	if ev, ok := m.pendingPriority(); ok {
		return m.deliver(ev)
	}

	if m.held != nil {
		ev := *m.held
		m.held = nil
		return ev
	}

	var ev Event
	select {
	case ev = <-m.control:
	case ev = <-m.input:
	case ev = <-m.tick:
	case ev = <-m.data:
	case <-ctx.Done():
		ev = Event{Kind: KindShutdown, At: time.Now()}
	case <-m.ctx.Done():
		ev = Event{Kind: KindShutdown, At: time.Now()}
	}

	// An input or shutdown that became ready while we were waiting goes
	// first; the event we woke up with is held for the next call.
	if ev.Kind != KindShutdown && ev.Kind != KindInput {
		if prio, ok := m.pendingPriority(); ok {
			m.held = &ev
			return m.deliver(prio)
		}
	}

	return m.deliver(ev)
}

// pendingPriority returns a queued control or input event without blocking.
func (m *Multiplexer) pendingPriority() (Event, bool) {
	select {
	case ev := <-m.control:
		return ev, true
	default:
	}
	select {
	case ev := <-m.input:
		return ev, true
	default:
	}
	return Event{}, false
}

func (m *Multiplexer) deliver(ev Event) Event {
	if ev.Kind == KindShutdown {
		m.stopped = true
		m.held = nil
	}
	return ev
}

// Close stops every producer and waits for them to return.
func (m *Multiplexer) Close() error {
	m.cancel()
	err := m.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Ticker emits a Tick every period.
func Ticker(period time.Duration) Producer {
	return func(ctx context.Context, emit Emitter) error {
		t := time.NewTicker(period)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case at := <-t.C:
				emit(ctx, Tick(at))
			}
		}
	}
}

// Forward turns a channel of terminal input into Input events. It returns
// when src is closed or ctx ends.
func Forward(src <-chan Input) Producer {
	return func(ctx context.Context, emit Emitter) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case in, ok := <-src:
				if !ok {
					return nil
				}
				if !emit(ctx, Event{Kind: KindInput, At: time.Now(), Input: in}) {
					return nil
				}
			}
		}
	}
}
