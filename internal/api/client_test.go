package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	apitesting "github.com/rileyhilliard/pipetop/internal/api/testing"
	"github.com/rileyhilliard/pipetop/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake(t *testing.T) *apitesting.Server {
	t.Helper()
	srv := apitesting.NewServer(
		apitesting.Component{Name: "in", Kind: "source", ProcessedEventsTotal: 100},
		apitesting.Component{Name: "out", Kind: "sink", ProcessedEventsTotal: 90, ErrorsTotal: 2},
	)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://127.0.0.1:8686/graphql", false},
		{"https", "https://pipeline.example.com/graphql", false},
		{"missing scheme", "127.0.0.1:8686", true},
		{"ws scheme", "ws://127.0.0.1:8686/graphql", true},
		{"no host", "http:///graphql", true},
		{"garbage", "http://[::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_WebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:8686/graphql", newClient(t, "http://127.0.0.1:8686/graphql").WebSocketURL())
	assert.Equal(t, "wss://example.com/graphql", newClient(t, "https://example.com/graphql").WebSocketURL())
}

func TestClient_Health(t *testing.T) {
	srv := newFake(t)
	c := newClient(t, srv.URL(), WithLogger(logger.NewBufferLogger()))

	require.NoError(t, c.Health(context.Background()))

	srv.SetHealthy(false)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy")
}

func TestClient_HealthUnreachable(t *testing.T) {
	srv := apitesting.NewServer()
	url := srv.URL()
	srv.Close()

	c := newClient(t, url)
	assert.Error(t, c.Health(context.Background()))
}

func TestClient_HealthServerDown(t *testing.T) {
	srv := newFake(t)
	srv.SetDown(true)

	err := newClient(t, srv.URL()).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_HealthTimeout(t *testing.T) {
	srv := newFake(t)
	srv.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newClient(t, srv.URL()).Health(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_Topology(t *testing.T) {
	srv := newFake(t)
	c := newClient(t, srv.URL())

	rows, err := c.Topology(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "in", rows[0].Name)
	assert.Equal(t, "source", rows[0].Kind)
	assert.Equal(t, int64(100), rows[0].EventsProcessed)
	assert.Equal(t, int64(2), rows[1].Errors)
	assert.Zero(t, rows[0].Throughput)
}

func TestClient_TopologyGraphQLError(t *testing.T) {
	srv := newFake(t)
	srv.SetTopologyFailure(true)

	_, err := newClient(t, srv.URL()).Topology(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topology unavailable")
}

func TestClient_Metrics(t *testing.T) {
	srv := newFake(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newClient(t, srv.URL(), WithClock(func() time.Time { return at }))

	srv.SetCounters("in", "source", 600, 1)
	updates, err := c.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, int64(600), updates[0].EventsProcessed)
	assert.Equal(t, int64(1), updates[0].Errors)
	assert.Equal(t, at, updates[0].ObservedAt)
}

func TestClient_CustomHTTPClient(t *testing.T) {
	srv := newFake(t)
	hc := &http.Client{Timeout: time.Second}
	c := newClient(t, srv.URL(), WithHTTPClient(hc))

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, 1, srv.Queries())
}

func TestClient_Subscribe(t *testing.T) {
	srv := newFake(t)
	c := newClient(t, srv.URL())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		batches []Batch
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, 20*time.Millisecond, func(b Batch) {
			mu.Lock()
			batches = append(batches, b)
			n := len(batches)
			mu.Unlock()
			if n == 1 {
				srv.Remove("out")
			}
			if n == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(batches), 3)
	assert.Len(t, batches[0].Updates, 2)
	assert.False(t, batches[0].Updates[0].ObservedAt.IsZero())

	var removed []string
	for _, b := range batches[1:] {
		removed = append(removed, b.Removed...)
	}
	assert.Contains(t, removed, "out")
	assert.Equal(t, 1, srv.Subscriptions())
}

func TestClient_SubscribeServerGone(t *testing.T) {
	srv := newFake(t)
	c := newClient(t, srv.URL())

	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(context.Background(), 20*time.Millisecond, func(Batch) {
			srv.SetDown(true)
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.NotErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end when the server dropped it")
	}
}

func TestClient_SubscribeDialFailure(t *testing.T) {
	srv := newFake(t)
	srv.SetDown(true)

	err := newClient(t, srv.URL()).Subscribe(context.Background(), time.Second, func(Batch) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe")
}

func TestClient_SubscribeSilentServer(t *testing.T) {
	tests := []struct {
		name   string
		before bool // silent before the handshake
		want   string
	}{
		{name: "no connection_ack", before: true, want: "awaiting connection_ack"},
		{name: "no data after subscribing", before: false, want: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFake(t)
			srv.SetSilent(tt.before)
			c := newClient(t, srv.URL(), WithTimeout(100*time.Millisecond))

			done := make(chan error, 1)
			go func() {
				done <- c.Subscribe(context.Background(), 20*time.Millisecond, func(Batch) {
					srv.SetSilent(true)
				})
			}()

			select {
			case err := <-done:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
				assert.NotErrorIs(t, err, context.Canceled)
			case <-time.After(5 * time.Second):
				t.Fatal("subscription kept waiting on a silent server")
			}
		})
	}
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultReadTimeout, newClient(t, "http://x/graphql", WithTimeout(0)).readTimeout)
	assert.Equal(t, time.Second, newClient(t, "http://x/graphql", WithTimeout(time.Second)).readTimeout)
}
