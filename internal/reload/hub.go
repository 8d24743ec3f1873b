// Package reload notifies connected dev clients over WebSocket after each
// generation pass so they can refetch the generated modules.
package reload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/pagegen/internal/logging"
	"github.com/conneroisu/pagegen/internal/templates"
)

// Path is where the hub is mounted by the dev command.
const Path = "/_pagegen/ws"

const (
	sendBuffer   = 16
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Message is sent to every client. Files are build-relative paths.
type Message struct {
	Type      string    `json:"type"`
	Files     []string  `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageUpdate announces that generated files changed.
const MessageUpdate = "update"

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks WebSocket clients and broadcasts messages to them.
type Hub struct {
	origins []string
	logger  logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub accepting connections from the given origin
// patterns. With no patterns only same-host origins are accepted.
func NewHub(logger logging.Logger, origins ...string) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		origins: origins,
		logger:  logger.WithComponent("reload"),
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until the
// connection closes or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the response.
		h.logger.Debug(r.Context(), "WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	h.logger.Debug(r.Context(), "Client connected", "remote", r.RemoteAddr, "clients", h.Clients())

	// Clients never send anything meaningful; CloseRead handles control
	// frames and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(h.ctx)
	h.writeLoop(ctx, c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Broadcast queues msg for every client. Clients whose buffer is full are
// dropped.
func (h *Hub) Broadcast(msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(h.ctx, nil, "Dropping slow reload client")
		h.unregister(c)
	}
	return nil
}

// OnGenerated broadcasts an update listing the files a pass wrote. Passes
// that wrote nothing are not announced.
func (h *Hub) OnGenerated(_ context.Context, result *templates.BatchResult) error {
	if result == nil {
		return nil
	}
	written := result.Written()
	if len(written) == 0 {
		return nil
	}
	return h.Broadcast(Message{Type: MessageUpdate, Files: written})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	var wg sync.WaitGroup
	for c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(c)
	}
	wg.Wait()
	h.cancel()
}
