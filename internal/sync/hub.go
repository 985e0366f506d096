// Package sync pushes pipeline status and idle-state frames to presentation
// clients over WebSocket. Rendering stays on the client side; this is only
// the state feed.
package sync

import (
	"encoding/json"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/signbridge/internal/status"
)

// Frame is one message on the wire.
type Frame struct {
	Type      string       `json:"type"` // "status" or "idle"
	Status    *status.Event `json:"status,omitempty"`
	IdleState string       `json:"idleState,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Hub tracks connected presentation clients and broadcasts frames to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      gosync.Mutex
	clients map[*websocket.Conn]struct{}
	done    chan struct{}
	once    gosync.Once
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The presentation layer may be served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "sync-hub").Logger(),
		clients: make(map[*websocket.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// HandleWS upgrades the request and registers the client until it
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", count).Msg("Presentation client connected")

	// Read loop only to detect disconnect; clients never send frames.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a frame to every connected client. Clients that fail a
// write are dropped.
func (h *Hub) Broadcast(frame Frame) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug().Err(err).Msg("Dropping client after write failure")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Forward relays status events from a subscription until the hub closes.
// Run it in its own goroutine.
func (h *Hub) Forward(sub *status.Subscription) {
	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			h.Broadcast(Frame{Type: "status", Status: &ev})
		}
	}
}

// BroadcastIdleState pushes an idle-state edge to clients. Wire it to the
// idle manager's callbacks at the composition root.
func (h *Hub) BroadcastIdleState(state string) {
	h.Broadcast(Frame{Type: "idle", IdleState: state})
}

func (h *Hub) drop(conn *websocket.Conn) {
	conn.Close()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Close disconnects every client and stops forwarding.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
