package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	perrors "github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/topology"
	"github.com/rileyhilliard/pipetop/internal/widgets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestController builds a controller past startup, with a seeded state
// and a live multiplexer, so handle can be driven directly.
func newTestController(t *testing.T, rows ...topology.Row) (*Controller, *fakeSurface) {
	t.Helper()
	surf := newFakeSurface()
	c := New(fastConfig(), &fakeTransport{}, surf)
	c.state = topology.New(rows, t0)
	c.phase = PhaseRunning
	c.mux = events.New(context.Background(), events.Options{})
	t.Cleanup(func() { _ = c.mux.Close() })
	c.width, c.height = 120, 30
	c.clamp()
	return c, surf
}

func stages(n int) []topology.Row {
	rows := make([]topology.Row, n)
	for i := range rows {
		rows[i] = topology.Row{Name: fmt.Sprintf("stage-%02d", i), Kind: "transform", EventsProcessed: int64(i * 10)}
	}
	return rows
}

func press(t *testing.T, c *Controller, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.handle(events.KeyPress(k)))
	}
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want int
	}{
		{"starts at first row", nil, 0},
		{"down", []string{"down"}, 1},
		{"j", []string{"j", "j"}, 2},
		{"up stops at top", []string{"up", "k"}, 0},
		{"down then up", []string{"down", "down", "up"}, 1},
		{"end", []string{"end"}, 4},
		{"G", []string{"G"}, 4},
		{"down stops at bottom", []string{"G", "down"}, 4},
		{"home", []string{"G", "home"}, 0},
		{"g", []string{"G", "g"}, 0},
		{"pgdown clamps", []string{"pgdown"}, 4},
		{"pgup clamps", []string{"G", "pgup"}, 0},
		{"unknown key", []string{"x"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, stages(5)...)
			press(t, c, tt.keys...)
			assert.Equal(t, tt.want, c.selected)
		})
	}
}

func TestNavigation_PagingScrolls(t *testing.T) {
	c, _ := newTestController(t, stages(50)...)
	c.height = 13 // 10 visible rows

	press(t, c, "pgdown")
	assert.Equal(t, 10, c.selected)
	assert.Equal(t, 1, c.offset)

	press(t, c, "G")
	assert.Equal(t, 49, c.selected)
	assert.Equal(t, 40, c.offset)

	press(t, c, "pgup")
	assert.Equal(t, 39, c.selected)
	assert.Equal(t, 39, c.offset)

	f := widgets.Build(c.state.Rows(), c.view())
	require.Len(t, f.Rows, 10)
	assert.True(t, f.Rows[0].Selected)
}

func TestNavigation_EmptyTable(t *testing.T) {
	c, _ := newTestController(t)
	press(t, c, "down", "G", "g", "pgdown")
	assert.Equal(t, -1, c.selected)
	assert.Equal(t, 0, c.offset)
}

func TestSortKeepsSelectedStage(t *testing.T) {
	c, _ := newTestController(t,
		topology.Row{Name: "zeta", Throughput: 1},
		topology.Row{Name: "alpha", Throughput: 3},
		topology.Row{Name: "mid", Throughput: 2},
	)
	press(t, c, "down") // alpha in insertion order
	require.Equal(t, "alpha", c.selectedName())

	press(t, c, "s")
	assert.Equal(t, widgets.SortName, c.sort)
	assert.Equal(t, 0, c.selected)
	assert.Equal(t, "alpha", c.selectedName())

	press(t, c, "s", "s")
	assert.Equal(t, widgets.SortErrors, c.sort)
	assert.Equal(t, "alpha", c.selectedName())
}

func TestHelpToggle(t *testing.T) {
	c, _ := newTestController(t, stages(2)...)

	press(t, c, "?")
	assert.True(t, c.showHelp)
	assert.True(t, c.view().ShowHelp)
	assert.NotEmpty(t, c.view().Help)

	press(t, c, "?")
	assert.False(t, c.showHelp)

	press(t, c, "?", "esc")
	assert.False(t, c.showHelp)
}

func TestRefreshKeyNeverBlocks(t *testing.T) {
	c, _ := newTestController(t, stages(1)...)
	press(t, c, "r", "r", "r")
	assert.Len(t, c.refresh, 1)
}

func TestQuitKeyRequestsShutdown(t *testing.T) {
	c, _ := newTestController(t, stages(1)...)
	press(t, c, "q")
	assert.Equal(t, events.KindShutdown, c.mux.Next(context.Background()).Kind)
}

func TestResizeClampsViewport(t *testing.T) {
	c, _ := newTestController(t, stages(20)...)
	press(t, c, "G")
	require.NoError(t, c.handle(events.Event{Kind: events.KindInput, Input: events.Input{Resize: true, Width: 60, Height: 8}}))

	assert.Equal(t, 60, c.width)
	assert.Equal(t, 19, c.selected)
	assert.Equal(t, 15, c.offset)
}

func TestRemovalClampsSelection(t *testing.T) {
	c, _ := newTestController(t, stages(5)...)
	press(t, c, "G")
	c.trends.Push("stage-04", 10)

	require.NoError(t, c.handle(events.TopologyChanged([]string{"stage-03", "stage-04"})))
	assert.Equal(t, 3, c.state.Len())
	assert.Equal(t, 2, c.selected)
	assert.Nil(t, c.trends.Get("stage-04"))

	require.NoError(t, c.handle(events.TopologyChanged([]string{"stage-00", "stage-01", "stage-02", "missing"})))
	assert.Equal(t, 0, c.state.Len())
	assert.Equal(t, -1, c.selected)

	require.NoError(t, c.handle(events.MetricUpdate([]topology.Update{{Name: "new", EventsProcessed: 1, ObservedAt: t0}})))
	assert.Equal(t, 0, c.selected, "selection comes back when rows appear")
}

func TestBannerLifecycle(t *testing.T) {
	c, _ := newTestController(t, stages(2)...)

	require.NoError(t, c.handle(events.RefreshFailed(perrors.WrapWithCode(errors.New("timeout"), perrors.ErrRefresh, "refresh failed", ""))))
	banner, level := c.banner()
	assert.Contains(t, banner, "timeout")
	assert.Equal(t, widgets.LevelWarn, level)
	assert.Equal(t, PhaseRunning, c.Phase())

	require.NoError(t, c.handle(events.MetricUpdate(nil)))
	banner, _ = c.banner()
	assert.Empty(t, banner, "transient banner cleared by a successful update")

	require.NoError(t, c.handle(events.ConnectionLost(errors.New("connection refused"))))
	assert.Equal(t, PhaseDegraded, c.Phase())
	banner, level = c.banner()
	assert.Contains(t, banner, "connection refused")
	assert.Equal(t, widgets.LevelError, level)

	require.NoError(t, c.handle(events.MetricUpdate(nil)))
	banner, _ = c.banner()
	assert.NotEmpty(t, banner, "degraded banner persists")

	require.NoError(t, c.handle(events.ConnectionRestored()))
	assert.Equal(t, PhaseRunning, c.Phase())
	banner, _ = c.banner()
	assert.Empty(t, banner)
}

func TestMetricUpdateFeedsTrends(t *testing.T) {
	c, surf := newTestController(t, topology.Row{Name: "in", EventsProcessed: 0})

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.handle(events.MetricUpdate([]topology.Update{
			{Name: "in", EventsProcessed: int64(i * 100), ObservedAt: t0.Add(time.Duration(i) * time.Second)},
		})))
	}
	assert.Equal(t, []float64{100, 100, 100}, c.trends.Get("in"))
	assert.Zero(t, surf.frameCount(), "updates never draw")

	require.NoError(t, c.handle(events.Tick(t0)))
	assert.Equal(t, 1, surf.frameCount())
}
