// Package sse streams domain events to connected browsers over
// Server-Sent Events.
package sse

import (
	"sync"

	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

// Envelope is one SSE message: the event name plus a JSON-encodable payload.
type Envelope struct {
	Event   string
	Payload interface{}
}

// Client is a single connected browser.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	TeamID *uuid.UUID
	Roles  []string
	Ch     chan Envelope
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		log:     log,
	}
}

// Register adds a client connection. The channel is buffered; Broadcast
// drops messages for clients that cannot keep up.
func (h *Hub) Register(userID uuid.UUID, teamID *uuid.UUID, roles []string) *Client {
	client := &Client{
		ID:     uuid.New(),
		UserID: userID,
		TeamID: teamID,
		Roles:  roles,
		Ch:     make(chan Envelope, 16),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.log.Debug("sse client connected", "client_id", client.ID, "user_id", userID)
	return client
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID uuid.UUID) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if ok {
		close(client.Ch)
		h.log.Debug("sse client disconnected", "client_id", clientID)
	}
}

// Broadcast delivers the envelope to every client the filter accepts.
// A nil filter delivers to everyone.
func (h *Hub) Broadcast(envelope Envelope, filter func(*Client) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if filter != nil && !filter(client) {
			continue
		}
		select {
		case client.Ch <- envelope:
		default:
			h.log.Warn("sse client buffer full, dropping event",
				"client_id", client.ID, "event", envelope.Event)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
