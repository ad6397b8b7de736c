// Package events merges the dashboard's independent event sources (terminal
// input, the render ticker and the metric feed) into one ordered stream.
//
// Producers run on their own goroutines and only emit events. The consumer
// calls Next from a single goroutine. Pending Shutdown events are delivered
// first and pending input second, so a burst of metric updates can never hold
// a keystroke back behind the next Tick.
package events

import (
	"context"
	"time"

	"github.com/rileyhilliard/pipetop/internal/topology"
)

// Kind tags an Event.
type Kind int

const (
	KindInput Kind = iota
	KindTick
	KindMetricUpdate
	KindRefreshFailed
	KindConnectionLost
	KindConnectionRestored
	KindTopologyChanged
	KindShutdown
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTick:
		return "tick"
	case KindMetricUpdate:
		return "metric-update"
	case KindRefreshFailed:
		return "refresh-failed"
	case KindConnectionLost:
		return "connection-lost"
	case KindConnectionRestored:
		return "connection-restored"
	case KindTopologyChanged:
		return "topology-changed"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Input is a key press or a terminal resize.
type Input struct {
	// Key is the bubbletea-style key name ("q", "up", "ctrl+c"). Empty for resizes.
	Key    string
	Resize bool
	Width  int
	Height int
}

// Event is one tagged item of the merged stream. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind    Kind
	At      time.Time
	Input   Input
	Batch   []topology.Update // KindMetricUpdate
	Removed []string          // KindTopologyChanged
	Err     error             // KindRefreshFailed, KindConnectionLost
}

// Tick builds a tick event.
func Tick(at time.Time) Event {
	return Event{Kind: KindTick, At: at}
}

// KeyPress builds an input event for a key.
func KeyPress(key string) Event {
	return Event{Kind: KindInput, At: time.Now(), Input: Input{Key: key}}
}

// MetricUpdate builds a metric batch event.
func MetricUpdate(batch []topology.Update) Event {
	return Event{Kind: KindMetricUpdate, At: time.Now(), Batch: batch}
}

// RefreshFailed builds a transient failure event.
func RefreshFailed(err error) Event {
	return Event{Kind: KindRefreshFailed, At: time.Now(), Err: err}
}

// ConnectionLost builds a connection-lost event.
func ConnectionLost(err error) Event {
	return Event{Kind: KindConnectionLost, At: time.Now(), Err: err}
}

// ConnectionRestored builds a recovery event.
func ConnectionRestored() Event {
	return Event{Kind: KindConnectionRestored, At: time.Now()}
}

// TopologyChanged builds an explicit stage-removal event.
func TopologyChanged(removed []string) Event {
	return Event{Kind: KindTopologyChanged, At: time.Now(), Removed: removed}
}

// Emitter delivers an event to the multiplexer. It blocks until the event is
// queued or ctx ends, and reports whether the event was queued.
type Emitter func(ctx context.Context, ev Event) bool

// Producer is a long-running event source. It must return when ctx is done.
type Producer func(ctx context.Context, emit Emitter) error
