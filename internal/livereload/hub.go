// Package livereload pushes reload events to connected browsers when files
// under the serving root change.
package livereload

import (
	"context"
	"sync"

	"github.com/dreschagin/devserve/internal/metrics"
	"github.com/dreschagin/devserve/pkg/logger"
)

// Event is the JSON message sent to reload clients.
type Event struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Hub manages reload websocket clients and fans events out to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
		metrics:    m,
	}
}

// Run owns the client set; start it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.ReloadClients.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.ReloadClients.Inc()
			h.logger.Debug("reload client connected", "client_id", client.id, "total_clients", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.ReloadClients.Dec()
			}
			h.mu.Unlock()
			h.logger.Debug("reload client disconnected", "client_id", client.id, "total_clients", h.ClientCount())

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Client can't keep up; drop it.
					close(client.send)
					delete(h.clients, client)
					h.metrics.ReloadClients.Dec()
					h.logger.Warn("reload client channel full, disconnected", "client_id", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client to the hub. It is a no-op once the hub has
// stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. It is a no-op once the hub has
// stopped; Run already closed every client's send channel by then.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for every connected client without blocking.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.logger.Warn("broadcast channel full, dropping reload event", "path", event.Path)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
