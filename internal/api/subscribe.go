package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rileyhilliard/pipetop/internal/topology"
)

// graphql-ws (subscriptions-transport-ws) protocol.
const (
	subprotocol = "graphql-ws"

	msgConnectionInit  = "connection_init"
	msgConnectionAck   = "connection_ack"
	msgConnectionError = "connection_error"
	msgKeepAlive       = "ka"
	msgStart           = "start"
	msgData            = "data"
	msgError           = "error"
	msgComplete        = "complete"
)

const metricsSubscription = `subscription ComponentMetrics($interval: Int!) {
  componentMetrics(interval: $interval) {
    timestamp
    components { name kind processedEventsTotal errorsTotal }
    removed
  }
}`

// subscriptionID is the only operation a connection carries.
const subscriptionID = "1"

// ErrSubscriptionClosed is returned when the server completes the subscription.
var ErrSubscriptionClosed = errors.New("subscription closed by server")

// Batch is one pushed metrics message.
type Batch struct {
	Updates []topology.Update
	// Removed lists stages the server reports as gone from the topology.
	Removed []string
}

type wsMessage struct {
	ID      string              `json:"id,omitempty"`
	Type    string              `json:"type"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type metricsPayload struct {
	Data struct {
		ComponentMetrics struct {
			Timestamp  string      `json:"timestamp"`
			Components []component `json:"components"`
			Removed    []string    `json:"removed"`
		} `json:"componentMetrics"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// WebSocketURL maps the HTTP endpoint onto ws:// or wss://.
func (c *Client) WebSocketURL() string {
	u := *c.url
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// Subscribe opens a metrics subscription and calls fn for every pushed batch.
// It blocks until ctx ends (returning ctx.Err()), the server completes the
// subscription (ErrSubscriptionClosed) or the connection fails. A server that
// stays quiet longer than the read timeout (plus interval once subscribed)
// counts as a failed connection.
// fn runs on the calling goroutine.
func (c *Client) Subscribe(ctx context.Context, interval time.Duration, fn func(Batch)) error {
	wsURL, err := url.Parse(c.WebSocketURL())
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("subscribe %s: %w (status %s)", wsURL.Host, err, resp.Status)
		}
		return fmt.Errorf("subscribe %s: %w", wsURL.Host, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := c.handshake(conn); err != nil {
		return ctxErrOr(ctx, err)
	}

	start, err := json.Marshal(startPayload{
		Query:         metricsSubscription,
		Variables:     map[string]interface{}{"interval": interval.Milliseconds()},
		OperationName: "ComponentMetrics",
	})
	if err != nil {
		return err
	}
	if err := c.write(conn, wsMessage{ID: subscriptionID, Type: msgStart, Payload: start}); err != nil {
		return ctxErrOr(ctx, err)
	}
	c.log.Debug("subscribed to %s every %s", wsURL.Host, interval)

	for {
		msg, err := c.read(conn, c.readTimeout+interval)
		if err != nil {
			return ctxErrOr(ctx, err)
		}

		switch msg.Type {
		case msgKeepAlive:
			continue
		case msgData:
			batch, err := c.decodeBatch(msg.Payload)
			if err != nil {
				return err
			}
			fn(batch)
		case msgError, msgConnectionError:
			return fmt.Errorf("subscription error: %s", string(msg.Payload))
		case msgComplete:
			return ErrSubscriptionClosed
		default:
			c.log.Debug("ignoring %q message", msg.Type)
		}
	}
}

func (c *Client) handshake(conn *websocket.Conn) error {
	if err := c.write(conn, wsMessage{Type: msgConnectionInit, Payload: jsoniter.RawMessage("{}")}); err != nil {
		return err
	}
	for {
		msg, err := c.read(conn, c.readTimeout)
		if err != nil {
			return fmt.Errorf("awaiting connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgKeepAlive:
			continue
		case msgConnectionError:
			return fmt.Errorf("connection rejected: %s", string(msg.Payload))
		default:
			return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

func (c *Client) decodeBatch(payload []byte) (Batch, error) {
	var p metricsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Batch{}, fmt.Errorf("decode subscription payload: %w", err)
	}
	if len(p.Errors) > 0 {
		return Batch{}, fmt.Errorf("graphql: %s", p.Errors[0].Message)
	}

	m := p.Data.ComponentMetrics
	at := c.now()
	if m.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
			at = ts
		}
	}
	return Batch{Updates: toUpdates(m.Components, at), Removed: m.Removed}, nil
}

func (c *Client) write(conn *websocket.Conn, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// read waits at most wait for the next message.
func (c *Client) read(conn *websocket.Conn, wait time.Duration) (wsMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return wsMessage{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return wsMessage{}, err
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return wsMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// ctxErrOr prefers the context error when the failure was caused by cancellation.
func ctxErrOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
