// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"projector-service/internal/model"
)

// Client types
const (
	ClientTypeEvents    = "events"
	ClientTypeProjector = "projector"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	Type        string          `json:"type"` // events, projector
	ProjectorID *string         `json:"projector_id,omitempty"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mu            sync.RWMutex
	subscriptions map[model.EventType]bool
}

// Subscribe restricts the client to eventType plus any earlier subscriptions
func (c *Client) Subscribe(eventType model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[model.EventType]bool)
	}
	c.subscriptions[eventType] = true
}

// Unsubscribe drops eventType. A client with no subscriptions receives everything.
func (c *Client) Unsubscribe(eventType model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, eventType)
}

// Accepts reports whether event should be pushed to the client
func (c *Client) Accepts(event *model.ProjectorEvent) bool {
	if c.Type == ClientTypeProjector && (c.ProjectorID == nil || *c.ProjectorID != event.ProjectorID) {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[event.EventType]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections
type ConnectionManager struct {
	clients map[string]*Client
	closed  bool
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client. A closed manager closes its Send channel at once.
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.closed {
		close(client.Send)
		return
	}
	cm.clients[client.ID] = client
}

// Unregister unregisters a client and closes its Send channel
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// Close disconnects every client
func (cm *ConnectionManager) Close() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.closed = true
	for id, client := range cm.clients {
		delete(cm.clients, id)
		close(client.Send)
	}
}

// Broadcast queues message on every client accepted by match.
// It returns the number of clients the message was queued for.
func (cm *ConnectionManager) Broadcast(match func(*Client) bool, message []byte) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	sent := 0
	for _, client := range cm.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
			sent++
		default:
			// Client is slow, skip
		}
	}
	return sent
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		ByType:           make(map[string]int),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		stats.ByType[client.Type]++
		stats.Clients = append(stats.Clients, client)
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByType           map[string]int `json:"by_type"`
	Clients          []*Client      `json:"clients"`
}
