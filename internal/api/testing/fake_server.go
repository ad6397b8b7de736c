// Package testing provides an in-process fake of the pipeline GraphQL API
// for tests. It answers the health and components queries over HTTP and
// serves the componentMetrics subscription over graphql-ws.
package testing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Component is one stage served by the fake.
type Component struct {
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	ProcessedEventsTotal int64  `json:"processedEventsTotal"`
	ErrorsTotal          int64  `json:"errorsTotal"`
}

// Server is a fake GraphQL endpoint. All setters are safe for concurrent use.
type Server struct {
	mu         sync.Mutex
	components []Component
	removed    []string
	healthy    bool
	down       bool
	failTopo   bool
	delay      time.Duration
	silent     bool
	queries    int
	subs       int

	httpServer *httptest.Server
	upgrader   websocket.Upgrader
	closing    chan struct{}
	closeOnce  sync.Once
}

// NewServer starts a fake serving the given components.
func NewServer(components ...Component) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		components: append([]Component(nil), components...),
		healthy:    true,
		closing:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"graphql-ws"},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/graphql", s.handleQuery)
	router.GET("/graphql", s.handleSubscription)

	s.httpServer = httptest.NewServer(router)
	return s
}

// URL is the GraphQL endpoint.
func (s *Server) URL() string {
	return s.httpServer.URL + "/graphql"
}

// Close shuts the server down, ending open subscriptions.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.httpServer.CloseClientConnections()
		s.httpServer.Close()
	})
}

// SetCounters updates one component's cumulative counters, adding it if new.
func (s *Server) SetCounters(name, kind string, events, errs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.components {
		if s.components[i].Name == name {
			s.components[i].ProcessedEventsTotal = events
			s.components[i].ErrorsTotal = errs
			return
		}
	}
	s.components = append(s.components, Component{Name: name, Kind: kind, ProcessedEventsTotal: events, ErrorsTotal: errs})
}

// Remove drops a component; the next subscription message reports it as removed.
func (s *Server) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.components {
		if s.components[i].Name == name {
			s.components = append(s.components[:i], s.components[i+1:]...)
			s.removed = append(s.removed, name)
			return
		}
	}
}

// SetHealthy controls the health query answer.
func (s *Server) SetHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = ok
}

// SetDown makes every request fail with 503 and drops open subscriptions.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetTopologyFailure makes the components query return a GraphQL error.
func (s *Server) SetTopologyFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTopo = fail
}

// SetSilent makes new subscriptions accept the socket and then never write,
// not even connection_ack. A silent subscription already past the handshake
// stops pushing data.
func (s *Server) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// SetDelay delays every HTTP answer.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Queries returns how many HTTP queries were answered.
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Subscriptions returns how many subscriptions were started.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs
}

type queryRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (s *Server) handleQuery(c *gin.Context) {
	s.mu.Lock()
	delay, down := s.delay, s.down
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		case <-s.closing:
			return
		}
	}
	if down {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": err.Error()}}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++

	switch {
	case strings.Contains(req.Query, "health"):
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"health": s.healthy}})
	case strings.Contains(req.Query, "components"):
		if s.failTopo {
			c.JSON(http.StatusOK, gin.H{"data": nil, "errors": []gin.H{{"message": "topology unavailable"}}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"components": s.snapshotLocked()}})
	default:
		c.JSON(http.StatusOK, gin.H{"errors": []gin.H{{"message": "unknown query"}}})
	}
}

func (s *Server) snapshotLocked() []Component {
	return append([]Component(nil), s.components...)
}

type wsMessage struct {
	ID      string                 `json:"id,omitempty"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (s *Server) handleSubscription(c *gin.Context) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var init wsMessage
	if err := conn.ReadJSON(&init); err != nil || init.Type != "connection_init" {
		return
	}
	if s.isSilent() {
		s.hang(conn)
		return
	}
	if err := conn.WriteJSON(wsMessage{Type: "connection_ack"}); err != nil {
		return
	}

	var start wsMessage
	if err := conn.ReadJSON(&start); err != nil || start.Type != "start" {
		return
	}

	interval := 100 * time.Millisecond
	if vars, ok := start.Payload["variables"].(map[string]interface{}); ok {
		if ms, ok := vars["interval"].(float64); ok && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}

	s.mu.Lock()
	s.subs++
	s.mu.Unlock()

	// Reader goroutine notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			return
		case at := <-ticker.C:
			s.mu.Lock()
			if s.down {
				s.mu.Unlock()
				return
			}
			if s.silent {
				s.mu.Unlock()
				continue
			}
			payload := map[string]interface{}{
				"data": map[string]interface{}{
					"componentMetrics": map[string]interface{}{
						"timestamp":  at.UTC().Format(time.RFC3339Nano),
						"components": s.snapshotLocked(),
						"removed":    s.removed,
					},
				},
			}
			s.removed = nil
			s.mu.Unlock()

			if err := conn.WriteJSON(wsMessage{ID: start.ID, Type: "data", Payload: payload}); err != nil {
				return
			}
		}
	}
}

func (s *Server) isSilent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silent
}

// hang holds the socket open without writing until the client leaves or the
// server closes.
func (s *Server) hang(conn *websocket.Conn) {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	select {
	case <-gone:
	case <-s.closing:
	}
}
