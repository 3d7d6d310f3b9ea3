package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
)

func newTestClient(t *testing.T) *RedisClient {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	r, err := NewRedisClient("localhost:6379", "", 0, log)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisClient_Sessions(t *testing.T) {
	r := newTestClient(t)
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := r.CreateSession(ctx, sessionID, uuid.New(), time.Minute); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	ok, err := r.SessionExists(ctx, sessionID)
	if err != nil || !ok {
		t.Fatalf("SessionExists = %v, %v", ok, err)
	}
	if err := r.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession error: %v", err)
	}
	if ok, _ := r.SessionExists(ctx, sessionID); ok {
		t.Fatal("expected session to be gone")
	}
}

func TestRedisClient_ResetTokenSingleUse(t *testing.T) {
	r := newTestClient(t)
	ctx := context.Background()
	token := uuid.NewString()
	userID := uuid.New()

	_ = r.SaveResetToken(ctx, token, userID, time.Minute)

	got, err := r.ConsumeResetToken(ctx, token)
	if err != nil || got != userID {
		t.Fatalf("ConsumeResetToken = %s, %v", got, err)
	}
	if _, err := r.ConsumeResetToken(ctx, token); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestRedisClient_PubSub(t *testing.T) {
	r := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Subscribe(ctx, events.TopicChatMessage)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := r.Publish(ctx, events.TopicChatMessage, map[string]string{"message": "hi"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Topic != events.TopicChatMessage {
			t.Fatalf("unexpected topic %s", ev.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisClient_AllowAction(t *testing.T) {
	r := newTestClient(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		ok, err := r.AllowAction(ctx, userID, "test", 1, 3)
		if err != nil {
			t.Fatalf("AllowAction error: %v", err)
		}
		if !ok {
			t.Fatalf("expected request %d within burst to be allowed", i+1)
		}
	}
	if ok, _ := r.AllowAction(ctx, userID, "test", 1, 3); ok {
		t.Fatal("expected request beyond burst to be limited")
	}
}

func TestRedisClient_Claim(t *testing.T) {
	r := newTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, err := r.Claim(ctx, key, time.Second)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v; want true", ok, err)
	}
	if ok, _ := r.Claim(ctx, key, time.Second); ok {
		t.Fatal("second claim within ttl should be refused")
	}

	time.Sleep(1100 * time.Millisecond)
	if ok, _ := r.Claim(ctx, key, time.Second); !ok {
		t.Error("claim should be available again after ttl")
	}
}
