package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strefethen/victrola-bridge/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local-network bridge, clients come from the LAN UI.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan state.Snapshot
}

// Hub fans shadow snapshots out to connected websocket clients. Each state
// change batch becomes one message; slow clients drop intermediate snapshots
// rather than blocking the publishers.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	pingInterval time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*client]struct{}),
		pingInterval: 30 * time.Second,
	}
}

// RegisterRoutes wires the websocket endpoint to the router.
func (h *Hub) RegisterRoutes(router chi.Router, shadow *state.Shadow) {
	router.Get("/v1/ws/state", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS: upgrade failed: %v", err)
			return
		}
		h.serve(conn, shadow.Snapshot())
	})
}

// Publish queues a snapshot for every connected client. Implements the
// shadow's Listener signature.
func (h *Hub) Publish(snap state.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- snap:
		default:
			// Client is behind; it will get the next snapshot instead.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) serve(conn *websocket.Conn, initial state.Snapshot) {
	c := &client{conn: conn, send: make(chan state.Snapshot, 4)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("WS: client connected (%d total)", count)

	// Every client starts with the current state.
	c.send <- initial

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readLoop discards inbound frames; the endpoint is push-only. Its job is
// detecting the close handshake.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, exists := h.clients[c]
	if exists {
		delete(h.clients, c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if exists {
		c.conn.Close()
		log.Printf("WS: client disconnected (%d total)", count)
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
