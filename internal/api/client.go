// Package api is the client for the monitored pipeline's GraphQL API.
//
// Queries (health, component listing) go over HTTP POST. Live metrics can be
// polled with Metrics or pushed through a graphql-ws subscription with
// Subscribe.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rileyhilliard/pipetop/internal/logger"
	"github.com/rileyhilliard/pipetop/internal/topology"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GraphQL documents sent to the server.
const (
	healthQuery = `query HealthQuery { health }`

	componentsQuery = `query ComponentsQuery {
  components { name kind processedEventsTotal errorsTotal }
}`
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// DefaultReadTimeout bounds every subscription read, on top of the push
// interval once the subscription is running.
const DefaultReadTimeout = 5 * time.Second

// Client talks to one API endpoint.
type Client struct {
	url    *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	log    logger.Logger
	now    func() time.Time

	readTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithTimeout bounds how long a subscription waits for the server. A
// non-positive d keeps DefaultReadTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithClock overrides the time source used to stamp polled samples.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient validates rawURL and returns a client for it.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse API URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API URL %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("API URL %q has no host", rawURL)
	}

	c := &Client{
		url:    u,
		http:   &http.Client{},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Subprotocols: []string{subprotocol}},
		log:    logger.Noop(),
		now:    time.Now,

		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the GraphQL endpoint.
func (c *Client) URL() string {
	return c.url.String()
}

// component is one entry of the components query and the subscription payload.
type component struct {
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	ProcessedEventsTotal int64  `json:"processedEventsTotal"`
	ErrorsTotal          int64  `json:"errorsTotal"`
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data   jsoniter.RawMessage `json:"data"`
	Errors []gqlError          `json:"errors"`
}

// Health runs the liveness query.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Health bool `json:"health"`
	}
	if err := c.query(ctx, healthQuery, nil, &out); err != nil {
		return err
	}
	if !out.Health {
		return fmt.Errorf("server at %s reported unhealthy", c.url.Host)
	}
	return nil
}

// Topology lists every component with its cumulative counters.
func (c *Client) Topology(ctx context.Context) ([]topology.Row, error) {
	comps, err := c.components(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]topology.Row, 0, len(comps))
	for _, comp := range comps {
		rows = append(rows, topology.Row{
			Name:            comp.Name,
			Kind:            comp.Kind,
			EventsProcessed: comp.ProcessedEventsTotal,
			Errors:          comp.ErrorsTotal,
		})
	}
	return rows, nil
}

// Metrics polls the current counters of every component, stamped with the
// time the response arrived.
func (c *Client) Metrics(ctx context.Context) ([]topology.Update, error) {
	comps, err := c.components(ctx)
	if err != nil {
		return nil, err
	}
	return toUpdates(comps, c.now()), nil
}

func (c *Client) components(ctx context.Context) ([]component, error) {
	var out struct {
		Components []component `json:"components"`
	}
	if err := c.query(ctx, componentsQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Components, nil
}

func toUpdates(comps []component, at time.Time) []topology.Update {
	updates := make([]topology.Update, 0, len(comps))
	for _, comp := range comps {
		updates = append(updates, topology.Update{
			Name:            comp.Name,
			Kind:            comp.Kind,
			EventsProcessed: comp.ProcessedEventsTotal,
			Errors:          comp.ErrorsTotal,
			ObservedAt:      at,
		})
	}
	return updates
}

// query POSTs a GraphQL document and decodes response.data into out.
func (c *Client) query(ctx context.Context, q string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(request{Query: q, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", c.url.Host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("graphql %s -> %d in %s", operationName(q), resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %s", c.url.Host, resp.Status)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return fmt.Errorf("graphql: response has no data")
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// operationName returns the name after the first "query"/"subscription"
// keyword, for logging.
func operationName(q string) string {
	fields := strings.Fields(q)
	if len(fields) >= 2 {
		return fields[1]
	}
	return "anonymous"
}
