package notifications

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"flatnest/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const maxConnsPerUser = 5

// Hub tracks the websocket connections of each user and fans incoming Redis
// notifications out to them. Multiple connections per user are allowed.
type Hub struct {
	mu        sync.RWMutex
	userConns map[uint]map[*Client]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{userConns: make(map[uint]map[*Client]bool)}
}

// Register attaches a user's websocket connection.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = true
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// RegisterClient attaches an already constructed client. Used by tests that
// drive the hub without a real websocket connection.
func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.userConns[client.UserID] == nil {
		h.userConns[client.UserID] = make(map[*Client]bool)
	}
	h.userConns[client.UserID][client] = true
	observability.WebSocketConnectionsTotal.Inc()
}

// UnregisterClient detaches a connection and closes its send channel.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userConns[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.userConns, client.UserID)
	}
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// SendToUser delivers a raw payload to every connection of the user.
func (h *Hub) SendToUser(userID uint, payload []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userConns[userID]))
	for c := range h.userConns[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.TrySend(payload)
	}
}

// ConnectionCount reports the number of active connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

// HandleRedisMessage routes a payload from a `notifications:user:<id>` channel
// to the local connections of that user.
func (h *Hub) HandleRedisMessage(channel, payload string) {
	idStr, ok := strings.CutPrefix(channel, "notifications:user:")
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return
	}
	h.SendToUser(uint(userID), []byte(payload))
}

// Shutdown closes every connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for c := range clients {
			close(c.Send)
			if c.Conn != nil {
				_ = c.Conn.Close()
			}
			observability.WebSocketConnectionsTotal.Dec()
		}
		delete(h.userConns, userID)
	}
	return nil
}
