package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// MemoryBus is an in-process Bus used when Redis is not configured and in tests
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	topics map[string]bool
	ch     chan Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload any) error {
	ev, err := NewEvent(topic, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.topics[topic] {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (<-chan Event, error) {
	s := &memorySub{topics: make(map[string]bool, len(topics)), ch: make(chan Event, subscriberBuffer)}
	for _, t := range topics {
		s.topics[t] = true
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()

	return s.ch, nil
}
