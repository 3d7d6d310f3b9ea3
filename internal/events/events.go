// Package events carries change notifications between services, the
// WebSocket hub and background workers.
package events

import (
	"context"
	"encoding/json"

	"github.com/streamania/backend/internal/models"
)

const (
	TopicStreamActive  = models.EventStreamActive
	TopicQuizActive    = models.EventQuizActive
	TopicChatMessage   = models.EventChatMessage
	TopicChatDeleted   = models.EventChatDeleted
	TopicChatSettings  = models.EventChatSettings
	TopicAuthState     = "auth.state"
	TopicWalletUpdated = "wallet.updated"
)

type Event struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Subscriber delivers events for topics until ctx is cancelled, then closes
// the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (<-chan Event, error)
}

type Bus interface {
	Publisher
	Subscriber
}

func NewEvent(topic string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Payload: data}, nil
}

// AuthState is published whenever a user's session or profile changes
type AuthState struct {
	UserID   string `json:"user_id"`
	SignedIn bool   `json:"signed_in"`
	Reason   string `json:"reason"`
}

// WalletUpdated is published after every wallet mutation
type WalletUpdated struct {
	UserID  string `json:"user_id"`
	Delta   int64  `json:"delta"`
	Balance int64  `json:"balance"`
	Reason  string `json:"reason"`
}

// Multi fans one publish out to several publishers; the first error wins
// but every publisher is attempted.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, payload any) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Mirror returns a Bus that subscribes on b and publishes to b and to every
// extra publisher.
func Mirror(b Bus, extra ...Publisher) Bus {
	if len(extra) == 0 {
		return b
	}
	return mirrored{Subscriber: b, pub: append(Multi{b}, extra...)}
}

type mirrored struct {
	Subscriber
	pub Multi
}

func (m mirrored) Publish(ctx context.Context, topic string, payload any) error {
	return m.pub.Publish(ctx, topic, payload)
}
