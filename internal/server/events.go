package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Kiosk frontend connects from a local origin
	},
}

// TriggerEvent is pushed to connected clients when the palm trigger fires.
type TriggerEvent struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// EventHub broadcasts trigger events to WebSocket clients. Unlike a polled
// feed, events are pushed only when something happens.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// NewEventHub creates an EventHub with no clients.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends the event to every connected client. Write failures drop the
// message for that client; the read loop handles cleanup. The full lock
// serializes publishers, a connection supports only one concurrent writer.
func (h *EventHub) Publish(event TriggerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("event write failed")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
