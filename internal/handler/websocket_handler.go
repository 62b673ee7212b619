// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"projector-service/internal/model"
	"projector-service/internal/service"
	"projector-service/internal/utils"
)

const (
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	writeWait     = 10 * time.Second
	commandWindow = 90 * time.Second
)

// WebSocketHandler pushes projector events to WebSocket clients
type WebSocketHandler struct {
	upgrader         websocket.Upgrader
	connections      *ConnectionManager
	projectorService *service.ProjectorService
	eventBus         *service.EventBus
	subscription     *service.Subscription
	logger           *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler and starts forwarding bus events
func NewWebSocketHandler(
	projectorService *service.ProjectorService,
	eventBus *service.EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" ||
				len(allowedOrigins) == 0 ||
				slices.Contains(allowedOrigins, "*") ||
				slices.Contains(allowedOrigins, origin)
		},
	}

	handler := &WebSocketHandler{
		upgrader:         upgrader,
		connections:      NewConnectionManager(),
		projectorService: projectorService,
		eventBus:         eventBus,
		subscription:     eventBus.Subscribe(),
		logger:           utils.NewServiceLogger(logger, "websocket-handler"),
	}

	go handler.forwardEvents()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
	router.GET("/projectors/:id", h.HandleProjectorConnection)
}

// Close stops forwarding and disconnects every client
func (h *WebSocketHandler) Close() {
	h.eventBus.Unsubscribe(h.subscription)
	h.connections.Close()
}

// HandleProjectorConnection streams the events of one projector
func (h *WebSocketHandler) HandleProjectorConnection(c *gin.Context) {
	projectorID := c.Param("id")
	status, err := h.projectorService.GetStatus(projectorID)
	if err != nil {
		respondError(c, h.logger, "Projector not found", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := h.newClient(c, conn, ClientTypeProjector)
	client.ProjectorID = &projectorID

	h.connections.Register(client)
	h.logger.Info("Projector WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("projector_id", projectorID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      status,
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleEventConnection streams the events of every projector
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := h.newClient(c, conn, ClientTypeEvents)

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

func (h *WebSocketHandler) newClient(c *gin.Context, conn *websocket.Conn, clientType string) *Client {
	return &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
}

// forwardEvents relays bus events until the subscription closes
func (h *WebSocketHandler) forwardEvents() {
	for event := range h.subscription.C {
		message, err := json.Marshal(&WebSocketMessage{
			Type:      "projector_event",
			Data:      event,
			Timestamp: event.Timestamp,
		})
		if err != nil {
			h.logger.Error("Failed to marshal projector event", zap.Error(err))
			continue
		}

		h.connections.Broadcast(func(client *Client) bool {
			return client.Accepts(event)
		}, message)
	}
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		h.handleSubscription(client, message, true)
	case "unsubscribe":
		h.handleSubscription(client, message, false)
	case "status":
		h.handleStatus(client, message)
	case "command":
		h.handleCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// handleSubscription narrows or widens the event types pushed to client
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage, subscribe bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "topic is required")
		return
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		h.sendError(client, "topic is required")
		return
	}

	eventType := model.EventType(topic)
	if subscribe {
		client.Subscribe(eventType)
		h.sendMessage(client, &WebSocketMessage{
			Type:      "subscription_confirmed",
			Data:      map[string]interface{}{"topic": topic},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	} else {
		client.Unsubscribe(eventType)
	}

	h.logger.Debug("Client subscription changed",
		zap.String("client_id", client.ID),
		zap.String("topic", topic),
		zap.Bool("subscribed", subscribe),
	)
}

// handleStatus sends the cached status of the client's projector
func (h *WebSocketHandler) handleStatus(client *Client, message *WebSocketMessage) {
	if client.ProjectorID == nil {
		h.sendError(client, "status only available on projector connections")
		return
	}

	status, err := h.projectorService.GetStatus(*client.ProjectorID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	h.sendMessage(client, &WebSocketMessage{
		Type:      "status",
		Data:      status,
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

// handleCommand runs a catalog command on the client's projector
func (h *WebSocketHandler) handleCommand(client *Client, message *WebSocketMessage) {
	if client.ProjectorID == nil {
		h.sendError(client, "command only available on projector connections")
		return
	}

	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid command data")
		return
	}
	command, ok := data["command"].(string)
	if !ok || command == "" {
		h.sendError(client, "command is required")
		return
	}

	go h.executeCommand(client, *client.ProjectorID, command, message.RequestID)
}

// executeCommand executes a projector command and reports the outcome
func (h *WebSocketHandler) executeCommand(client *Client, projectorID, command, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandWindow)
	defer cancel()

	op, err := h.projectorService.ExecuteCommand(ctx, projectorID, command)

	result := map[string]interface{}{
		"command":   command,
		"success":   err == nil,
		"operation": op,
	}
	if err != nil {
		result["error"] = err.Error()
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      result,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	sent := h.connections.Broadcast(func(c *Client) bool {
		return c.ID == client.ID
	}, messageBytes)
	if sent == 0 {
		h.logger.Warn("Client gone or send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
