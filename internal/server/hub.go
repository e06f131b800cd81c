package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/avatar"
	"github.com/patrickJVGH/FluentFlow/internal/bus"
	"github.com/patrickJVGH/FluentFlow/internal/logging"
	"github.com/patrickJVGH/FluentFlow/internal/metrics"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// AvatarMessage is one animation frame on the feed.
type AvatarMessage struct {
	Type string `json:"type"`
	avatar.Frame
}

// EventMessage relays a bus event on the feed.
type EventMessage struct {
	Type  string         `json:"type"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// LogMessage streams one log entry on the feed.
type LogMessage struct {
	Type string `json:"type"`
	logging.LogEntry
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans avatar frames and bus events out to websocket clients. A client
// that falls behind drops messages rather than stalling the others.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // local renderer
		},
		logger: logger.With().Str("component", "avatar-hub").Logger(),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastFrame sends an avatar frame to every client.
func (h *Hub) BroadcastFrame(f avatar.Frame) {
	h.Broadcast(AvatarMessage{Type: "avatar", Frame: f})
}

// SubscribeBus relays every bus event to the clients.
func (h *Hub) SubscribeBus(b *bus.EventBus) {
	if b == nil {
		return
	}
	b.SubscribeAll(func(e bus.Event) {
		h.Broadcast(EventMessage{Type: "event", Event: string(e.Type), Data: e.Data})
	})
}

// BroadcastLog sends a log entry to every client.
func (h *Hub) BroadcastLog(e logging.LogEntry) {
	h.Broadcast(LogMessage{Type: "log", LogEntry: e})
}

// Broadcast JSON-encodes msg and queues it for every client.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn().Err(err).Msg("feed message not encodable")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.AvatarClients.Inc()
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("avatar client connected")

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	metrics.AvatarClients.Dec()
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("avatar client disconnected")
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

// readLoop only services control frames; the feed is one-way.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
