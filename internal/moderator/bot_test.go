package moderator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

type fakeChat struct {
	mu      sync.Mutex
	muted   []models.ModerateUserRequest
	mutedBy []services.Moderator
	deleted []uuid.UUID
	sweeps  int
}

func (f *fakeChat) MuteUser(_ context.Context, by services.Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = append(f.muted, req)
	f.mutedBy = append(f.mutedBy, by)
	return &models.UserModerationStatus{UserID: userID, IsMuted: true}, nil
}

func (f *fakeChat) DeleteMessage(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeChat) LiftExpiredMutes(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 0, nil
}

func newTestBot() (*Bot, *fakeChat, *time.Time) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	chat := &fakeChat{}
	b := NewBot(events.NewMemoryBus(), chat, log)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, chat, &now
}

func msg(userID uuid.UUID, text string) *models.ChatMessage {
	return &models.ChatMessage{ID: uuid.New(), UserID: userID, Username: "spammer", Message: text}
}

func TestBot_TimesOutRepeatedMessages(t *testing.T) {
	b, chat, _ := newTestBot()
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		b.processMessage(ctx, msg(user, "BUY NOW"))
	}
	if len(chat.muted) != 0 {
		t.Fatalf("three identical messages should not trigger a timeout")
	}

	b.processMessage(ctx, msg(user, "buy now "))

	if len(chat.muted) != 1 {
		t.Fatalf("expected one timeout, got %d", len(chat.muted))
	}
	if chat.muted[0].DurationMinutes != spamMuteMinutes || chat.mutedBy[0].Username != models.BotUsername {
		t.Errorf("unexpected timeout %+v by %+v", chat.muted[0], chat.mutedBy[0])
	}
	if len(chat.deleted) != 4 {
		t.Errorf("expected all four repeats deleted, got %d", len(chat.deleted))
	}
}

func TestBot_WindowExpires(t *testing.T) {
	b, chat, now := newTestBot()
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		b.processMessage(ctx, msg(user, "hello"))
		*now = now.Add(6 * time.Second)
	}
	b.processMessage(ctx, msg(user, "hello"))

	if len(chat.muted) != 0 {
		t.Errorf("messages outside the window must not count, got %d timeouts", len(chat.muted))
	}
}

func TestBot_DistinctMessagesAllowed(t *testing.T) {
	b, chat, _ := newTestBot()
	ctx := context.Background()
	user := uuid.New()

	for _, text := range []string{"gg", "nice play", "lol", "gg wp", "what a goal"} {
		b.processMessage(ctx, msg(user, text))
	}
	if len(chat.muted) != 0 {
		t.Errorf("distinct messages should pass, got %d timeouts", len(chat.muted))
	}
}

// sharedClaims stands in for the Redis claim store shared by instances
type sharedClaims struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *sharedClaims) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

type failingClaims struct{}

func (failingClaims) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestBot_SingleTimeoutAcrossInstances(t *testing.T) {
	claims := &sharedClaims{keys: map[string]bool{}}
	first, firstChat, _ := newTestBot()
	second, secondChat, _ := newTestBot()
	first.WithClaimer(claims)
	second.WithClaimer(claims)

	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 4; i++ {
		m := msg(user, "spam")
		first.processMessage(ctx, m)
		second.processMessage(ctx, m)
	}

	if got := len(firstChat.muted) + len(secondChat.muted); got != 1 {
		t.Fatalf("expected exactly one timeout across instances, got %d", got)
	}
	if len(firstChat.deleted)+len(secondChat.deleted) != 4 {
		t.Errorf("expected repeats deleted once, got %d and %d", len(firstChat.deleted), len(secondChat.deleted))
	}
}

func TestBot_ClaimFailureActsLocally(t *testing.T) {
	b, chat, _ := newTestBot()
	b.WithClaimer(failingClaims{})

	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 4; i++ {
		b.processMessage(ctx, msg(user, "spam"))
	}
	if len(chat.muted) != 1 {
		t.Errorf("expected local timeout when claims are unavailable, got %d", len(chat.muted))
	}
}

func TestBot_RunConsumesBus(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	bus := events.NewMemoryBus()
	chat := &fakeChat{}
	b := NewBot(bus, chat, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	user := uuid.New()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(ctx, events.TopicChatMessage, msg(user, "spam"))
		time.Sleep(10 * time.Millisecond)

		chat.mu.Lock()
		n := len(chat.muted)
		chat.mu.Unlock()
		if n > 0 {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	chat.mu.Lock()
	defer chat.mu.Unlock()
	if len(chat.muted) == 0 {
		t.Error("expected the bot to time out the spammer")
	}
}
