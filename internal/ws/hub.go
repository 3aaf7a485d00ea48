package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/klubhuset/backend/internal/model"
)

// Hub maintains the set of live websocket clients and fans events out
// to them. Sends never block: a client whose buffer is full has the
// event dropped and the drop logged.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnectionID]*Client
	logger  *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnectionID]*Client),
		logger:  logger.With(slog.String("component", "ws")),
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		slog.String("conn_id", string(client.id)),
		slog.Int("total_clients", count))
}

func (h *Hub) remove(connID model.ConnectionID) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("client unregistered",
			slog.String("conn_id", string(connID)),
			slog.Int("total_clients", count))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode event payload",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return nil, false
	}
	message, err := json.Marshal(model.Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to encode envelope",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return nil, false
	}
	return message, true
}

func (h *Hub) deliver(client *Client, message []byte, event string) {
	select {
	case client.send <- message:
	default:
		h.logger.Warn("message dropped - client buffer full",
			slog.String("conn_id", string(client.id)),
			slog.String("event", event))
	}
}

// ToAll sends an event to every connected client
func (h *Hub) ToAll(event string, data any) {
	message, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, message, event)
	}
}

// ToConn sends an event to a single client. Unknown connection ids are
// ignored.
func (h *Hub) ToConn(conn model.ConnectionID, event string, data any) {
	message, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[conn]; ok {
		h.deliver(client, message, event)
	}
}

// ToConns sends an event to the given clients
func (h *Hub) ToConns(conns []model.ConnectionID, event string, data any) {
	message, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range conns {
		if client, ok := h.clients[conn]; ok {
			h.deliver(client, message, event)
		}
	}
}
