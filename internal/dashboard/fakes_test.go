package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/pipetop/internal/api"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/topology"
	"github.com/rileyhilliard/pipetop/internal/widgets"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

// fakeTransport answers from canned values or hooks.
type fakeTransport struct {
	mu        sync.Mutex
	healthErr error
	rows      []topology.Row
	topoErr   error
	metrics   func() ([]topology.Update, error)
	subscribe func(ctx context.Context, fn func(api.Batch)) error
	polls     int
}

func (f *fakeTransport) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeTransport) Topology(context.Context) ([]topology.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topoErr != nil {
		return nil, f.topoErr
	}
	return append([]topology.Row(nil), f.rows...), nil
}

func (f *fakeTransport) Metrics(context.Context) ([]topology.Update, error) {
	f.mu.Lock()
	f.polls++
	hook := f.metrics
	f.mu.Unlock()
	if hook == nil {
		return nil, nil
	}
	return hook()
}

func (f *fakeTransport) Subscribe(ctx context.Context, _ time.Duration, fn func(api.Batch)) error {
	f.mu.Lock()
	hook := f.subscribe
	f.mu.Unlock()
	if hook == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return hook(ctx, fn)
}

// fakeSurface records every frame and lets tests inject input.
type fakeSurface struct {
	mu       sync.Mutex
	input    chan events.Input
	frames   []widgets.Frame
	startErr error
	drawErr  error
	started  bool
	closed   bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{input: make(chan events.Input, 16)}
}

func (s *fakeSurface) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSurface) Draw(f widgets.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawErr != nil {
		return s.drawErr
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSurface) Input() <-chan events.Input {
	return s.input
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSurface) press(key string) {
	s.input <- events.Input{Key: key}
}

func (s *fakeSurface) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSurface) last() (widgets.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return widgets.Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *fakeSurface) state() (started, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.closed
}

// recorder is an Emitter that keeps every event.
type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) emit(_ context.Context, ev events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return true
}

func (r *recorder) events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.evs...)
}

func (r *recorder) kinds() []events.Kind {
	evs := r.events()
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = nil
}
