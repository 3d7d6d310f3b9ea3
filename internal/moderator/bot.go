// Package moderator runs the chat moderation bot: repeated-message spam
// timeouts and the expired mute sweeper.
package moderator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

const (
	spamWindow      = 10 * time.Second
	spamRepeats     = 3
	spamMuteMinutes = 5
	sweepInterval   = time.Minute
)

// ChatModerator is the part of services.ChatService the bot drives
type ChatModerator interface {
	MuteUser(ctx context.Context, by services.Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	LiftExpiredMutes(ctx context.Context) (int, error)
}

// Claimer grants a key to exactly one caller until ttl passes. Instances
// sharing a bus use it so only one of them acts on a spam burst.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Bot monitors messages and enforces moderation rules
type Bot struct {
	bus    events.Subscriber
	chat   ChatModerator
	claims Claimer
	log    *logrus.Logger
	now    func() time.Time

	// recent messages per user for spam detection
	recentMu sync.Mutex
	recent   map[uuid.UUID][]recentMsg
}

type recentMsg struct {
	id   uuid.UUID
	body string
	ts   time.Time
}

// NewBot creates a new moderation bot instance
func NewBot(bus events.Subscriber, chat ChatModerator, log *logrus.Logger) *Bot {
	return &Bot{
		bus:    bus,
		chat:   chat,
		log:    log,
		now:    time.Now,
		recent: make(map[uuid.UUID][]recentMsg),
	}
}

// WithClaimer makes the bot coordinate timeouts with other instances
func (b *Bot) WithClaimer(c Claimer) *Bot {
	b.claims = c
	return b
}

// Run listens for chat messages and sweeps expired mutes until ctx ends
func (b *Bot) Run(ctx context.Context) error {
	ch, err := b.bus.Subscribe(ctx, events.TopicChatMessage)
	if err != nil {
		return fmt.Errorf("moderation bot subscribe: %w", err)
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	b.log.Info("moderation bot started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.sweep(ctx)
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			var m models.ChatMessage
			if err := ev.Decode(&m); err != nil {
				b.log.WithError(err).Warn("moderation bot: bad chat payload")
				continue
			}
			b.processMessage(ctx, &m)
		}
	}
}

func (b *Bot) sweep(ctx context.Context) {
	n, err := b.chat.LiftExpiredMutes(ctx)
	if err != nil {
		b.log.WithError(err).Warn("failed to lift expired mutes")
		return
	}
	if n > 0 {
		b.log.WithField("count", n).Info("expired mutes lifted")
	}
}

// processMessage times out users who repeat the same message more than
// spamRepeats times within spamWindow, and removes the repeats.
func (b *Bot) processMessage(ctx context.Context, m *models.ChatMessage) {
	repeats := b.track(m)
	if len(repeats) < spamRepeats {
		return
	}
	if !b.claim(ctx, m.UserID) {
		b.log.WithField("user_id", m.UserID).Debug("spam timeout handled by another instance")
		return
	}

	_, err := b.chat.MuteUser(ctx, services.BotModerator, m.UserID, models.ModerateUserRequest{
		Username:        m.Username,
		Reason:          "spam: repeated messages",
		DurationMinutes: spamMuteMinutes,
	})
	if err != nil {
		b.log.WithError(err).WithField("user_id", m.UserID).Error("failed to time out spammer")
		return
	}

	for _, id := range append(repeats, m.ID) {
		if err := b.chat.DeleteMessage(ctx, id); err != nil {
			b.log.WithError(err).WithField("message_id", id).Warn("failed to delete spam message")
		}
	}

	b.log.WithFields(logrus.Fields{"user_id": m.UserID, "username": m.Username}).Info("spammer timed out")
}

// claim reports whether this instance owns the timeout for userID. Without a
// claimer, or when it fails, the bot acts alone.
func (b *Bot) claim(ctx context.Context, userID uuid.UUID) bool {
	if b.claims == nil {
		return true
	}
	ok, err := b.claims.Claim(ctx, "bot:spam:"+userID.String(), spamWindow)
	if err != nil {
		b.log.WithError(err).Warn("spam claim failed, acting locally")
		return true
	}
	return ok
}

// track records m and returns earlier identical messages still in the window.
// Once a user reaches the limit their history is reset.
func (b *Bot) track(m *models.ChatMessage) []uuid.UUID {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()

	now := b.now()
	body := strings.ToLower(strings.TrimSpace(m.Message))

	kept := []recentMsg{}
	repeats := []uuid.UUID{}
	for _, rm := range b.recent[m.UserID] {
		if now.Sub(rm.ts) > spamWindow {
			continue
		}
		kept = append(kept, rm)
		if rm.body == body {
			repeats = append(repeats, rm.id)
		}
	}

	if len(repeats) >= spamRepeats {
		delete(b.recent, m.UserID)
		return repeats
	}

	b.recent[m.UserID] = append(kept, recentMsg{id: m.ID, body: body, ts: now})
	return repeats
}
