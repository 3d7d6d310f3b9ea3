package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicChatMessage)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := bus.Publish(ctx, TopicQuizActive, map[string]string{"ignored": "yes"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := bus.Publish(ctx, TopicChatMessage, map[string]string{"message": "hi"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Topic != TopicChatMessage {
			t.Fatalf("expected %s, got %s", TopicChatMessage, ev.Topic)
		}
		var got map[string]string
		if err := ev.Decode(&got); err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if got["message"] != "hi" {
			t.Fatalf("unexpected payload: %v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBus_ClosesOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := bus.Subscribe(ctx, TopicAuthState)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel was not closed after cancel")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, any) error {
	f.calls++
	return errors.New("down")
}

func TestMulti_PublishesToAll(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx, TopicWalletUpdated)

	failing := &failingPublisher{}
	m := Multi{failing, bus, nil}

	if err := m.Publish(ctx, TopicWalletUpdated, WalletUpdated{Delta: 5}); err == nil {
		t.Fatal("expected first error to be returned")
	}
	if failing.calls != 1 {
		t.Fatalf("expected failing publisher to be called once, got %d", failing.calls)
	}

	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("memory bus did not receive event after earlier failure")
	}
}

func TestMirror_SubscribesOnPrimary(t *testing.T) {
	bus := NewMemoryBus()
	if Mirror(bus) != Bus(bus) {
		t.Fatal("Mirror with no extras should return the bus itself")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extra := &failingPublisher{}
	mirrored := Mirror(bus, extra)
	ch, err := mirrored.Subscribe(ctx, TopicQuizActive)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	_ = mirrored.Publish(ctx, TopicQuizActive, map[string]string{"id": "q1"})
	if extra.calls != 1 {
		t.Errorf("expected the extra publisher to be called once, got %d", extra.calls)
	}
	select {
	case ev := <-ch:
		if ev.Topic != TopicQuizActive {
			t.Errorf("unexpected topic %s", ev.Topic)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("primary bus did not deliver event")
	}
}
