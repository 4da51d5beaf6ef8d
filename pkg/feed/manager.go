package feed

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents one connected feed subscriber
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan any      // Channel to push events to this client
	Done chan struct{} // Signal to stop reading/writing
}

// Hub manages all active feed subscriptions and fans marketplace events
// out to them. Slow subscribers are dropped rather than allowed to block
// the orchestrator.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // client id -> Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a new subscriber connection
func (h *Hub) AddClient(id string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Replace an existing connection with the same id
	if existing, ok := h.clients[id]; ok {
		close(existing.Done)
		existing.Conn.Close()
	}

	client := &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan any, 32), // Buffered to absorb bursts
		Done: make(chan struct{}),
	}

	h.clients[id] = client
	return client
}

// RemoveClient unregisters a subscriber connection
func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[id]; ok {
		close(client.Done)
		delete(h.clients, id)
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Broadcast pushes an event to every connected subscriber. Subscribers with
// a full queue miss the event; the feed is advisory and clients resync via
// the read API.
func (h *Hub) Broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- v:
		case <-client.Done:
		default:
		}
	}
}
