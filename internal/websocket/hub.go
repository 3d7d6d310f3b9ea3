package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

// BroadcastTopics are forwarded from the event bus to every connection
var BroadcastTopics = []string{
	events.TopicStreamActive,
	events.TopicQuizActive,
	events.TopicChatMessage,
	events.TopicChatDeleted,
	events.TopicChatSettings,
}

// Hub maintains the set of active clients and broadcasts messages to clients
type Hub struct {
	// Registered clients; a user may hold several connections
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	bus events.Subscriber
	log *logrus.Logger

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(bus events.Subscriber, log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
		log:        log,
	}
}

// Run serves registrations and bus events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	feed, err := h.bus.Subscribe(ctx, BroadcastTopics...)
	if err != nil {
		return fmt.Errorf("hub subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.log.WithField("user_id", client.userID).Debug("client registered")

		case client := <-h.unregister:
			h.remove(client)
			h.log.WithField("user_id", client.userID).Debug("client unregistered")

		case ev, ok := <-feed:
			if !ok {
				h.closeAll()
				return nil
			}
			data, err := json.Marshal(models.WSMessage{Event: ev.Topic, Payload: ev.Payload})
			if err != nil {
				h.log.WithError(err).WithField("topic", ev.Topic).Warn("failed to encode event")
				continue
			}
			h.fanOut(data)
		}
	}
}

// fanOut sends to every client, dropping those whose buffer is full
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; after the hub has stopped it returns at once
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser sends a message to every connection of a user
func (h *Hub) SendToUser(userID uuid.UUID, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, skip
		}
	}

	return nil
}

// PushSession delivers a session snapshot to the user it describes
func (h *Hub) PushSession(snap services.SessionSnapshot) {
	err := h.SendToUser(snap.UserID, models.WSMessage{Event: models.EventSessionUpdated, Payload: snap})
	if err != nil {
		h.log.WithError(err).WithField("user_id", snap.UserID).Warn("failed to push session snapshot")
	}
}

// GetOnlineUsers returns the distinct connected user IDs
func (h *Hub) GetOnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool, len(h.clients))
	userIDs := make([]uuid.UUID, 0, len(h.clients))
	for client := range h.clients {
		if !seen[client.userID] {
			seen[client.userID] = true
			userIDs = append(userIDs, client.userID)
		}
	}

	return userIDs
}
