package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Recorder observes connection activity
type Recorder interface {
	RecordWebSocketConnect()
	RecordWebSocketDisconnect()
	RecordWebSocketMessage()
	RecordWebSocketError()
}

type nopRecorder struct{}

func (nopRecorder) RecordWebSocketConnect()    {}
func (nopRecorder) RecordWebSocketDisconnect() {}
func (nopRecorder) RecordWebSocketMessage()    {}
func (nopRecorder) RecordWebSocketError()      {}

// Hub maintains the set of connected consoles and pushes view updates to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound view updates
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Most recent message, sent to clients as they connect
	last []byte

	// Mutex to protect clients map and last
	mu sync.RWMutex

	recorder Recorder
	logger   zerolog.Logger
}

// NewHub creates a new Hub. recorder may be nil.
func NewHub(recorder Recorder, logger zerolog.Logger) *Hub {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		recorder:   recorder,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// Run starts the hub's main loop. On return every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.last != nil {
				select {
				case client.send <- h.last:
				default:
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.recorder.RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			h.last = message
			for client := range h.clients {
				select {
				case client.send <- message:
					h.recorder.RecordWebSocketMessage()
				default:
					// Client's send buffer is full, close and remove it
					h.drop(client)
					h.recorder.RecordWebSocketError()
					h.logger.Warn().
						Str("client_id", client.id).
						Msg("client send buffer full, closing connection")
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client; callers hold mu
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.recorder.RecordWebSocketDisconnect()
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
