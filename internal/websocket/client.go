package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Time allowed for one chat.send to be stored
	handleTimeout = 5 * time.Second
)

// ChatSender stores a chat message for an identity (services.ChatService)
type ChatSender interface {
	SendMessage(ctx context.Context, id *models.Identity, req models.SendMessageRequest) (*models.ChatMessage, error)
}

// Limiter throttles chat.send per user (middleware.RateLimiter)
type Limiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string) bool
}

// Client represents a WebSocket client
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	userID      uuid.UUID
	identity    *models.Identity
	connectedAt time.Time

	chat    ChatSender
	limiter Limiter
	log     *logrus.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, identity *models.Identity, chat ChatSender, limiter Limiter, log *logrus.Logger) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		userID:      identity.UserID,
		identity:    identity,
		connectedAt: time.Now(),
		chat:        chat,
		limiter:     limiter,
		log:         log,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).WithField("user_id", c.userID).Warn("websocket read failed")
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inbound is a client frame; the payload is decoded per event
type inbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("Invalid message format", "bad_request")
		return
	}

	switch msg.Event {
	case models.EventChatSend:
		c.handleChatSend(msg.Payload)
	default:
		c.sendError("Unknown event type", "bad_request")
	}
}

// handleChatSend stores the message; delivery to everyone, the sender
// included, happens through the chat.message broadcast.
func (c *Client) handleChatSend(payload json.RawMessage) {
	var req models.WSChatSendPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("Invalid message payload", "bad_request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if c.limiter != nil && !c.limiter.Allow(ctx, c.userID, "ws_chat") {
		c.sendError("Rate limit exceeded", "rate_limited")
		return
	}

	_, err := c.chat.SendMessage(ctx, c.identity, models.SendMessageRequest{Message: req.Message, StreamID: req.StreamID})
	if err != nil {
		code := errorCode(err)
		if code == "internal" {
			c.log.WithError(err).WithField("user_id", c.userID).Error("chat send failed")
			c.sendError("Failed to send message", code)
			return
		}
		c.sendError(err.Error(), code)
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{apperr.ErrValidationFailed, "validation_failed"},
	{apperr.ErrMuted, "muted"},
	{apperr.ErrBanned, "banned"},
	{apperr.ErrSlowMode, "slow_mode"},
	{apperr.ErrNotAuthenticated, "not_authenticated"},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

// sendError sends an error message to the client
func (c *Client) sendError(message, code string) {
	errorMsg := models.WSMessage{
		Event: models.EventError,
		Payload: models.WSErrorPayload{
			Message: message,
			Code:    code,
		},
	}

	data, _ := json.Marshal(errorMsg)
	select {
	case c.send <- data:
	default:
	}
}
