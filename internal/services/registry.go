package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
)

// Registry manages a collection where at most one record is active at a
// time, and announces the active record on topic after every change.
type Registry[T any] struct {
	name  string
	store ActivationStore[T]
	bus   events.Bus
	topic string
	// view shapes the record before it is published
	view func(T) T
	now  func() time.Time
	log  *logrus.Logger
}

func NewRegistry[T any](name string, store ActivationStore[T], bus events.Bus, topic string, view func(T) T, log *logrus.Logger) *Registry[T] {
	if view == nil {
		view = func(t T) T { return t }
	}
	return &Registry[T]{
		name:  name,
		store: store,
		bus:   bus,
		topic: topic,
		view:  view,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log,
	}
}

// ListAll returns every record, newest first
func (r *Registry[T]) ListAll(ctx context.Context) ([]T, error) {
	return r.store.List(ctx)
}

func (r *Registry[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	return r.store.Get(ctx, id)
}

// Active returns the active record or nil
func (r *Registry[T]) Active(ctx context.Context) (*T, error) {
	return r.store.Active(ctx)
}

// SetActive makes id the only active record
func (r *Registry[T]) SetActive(ctx context.Context, id uuid.UUID) (*T, error) {
	item, err := r.store.Activate(ctx, id, r.now())
	if err != nil {
		return nil, apperr.WriteFailed("activate "+r.name, err)
	}

	r.log.WithFields(logrus.Fields{"registry": r.name, "id": id}).Info("record activated")
	r.publish(ctx, item)
	return item, nil
}

func (r *Registry[T]) Deactivate(ctx context.Context, id uuid.UUID) (*T, error) {
	item, err := r.store.Deactivate(ctx, id)
	if err != nil {
		return nil, apperr.WriteFailed("deactivate "+r.name, err)
	}

	r.log.WithFields(logrus.Fields{"registry": r.name, "id": id}).Info("record deactivated")
	r.PublishActive(ctx)
	return item, nil
}

// PublishActive reads the active record and announces it
func (r *Registry[T]) PublishActive(ctx context.Context) {
	active, err := r.store.Active(ctx)
	if err != nil {
		r.log.WithError(err).WithField("registry", r.name).Warn("failed to read active record")
		return
	}
	r.publish(ctx, active)
}

func (r *Registry[T]) publish(ctx context.Context, item *T) {
	var payload any
	if item != nil {
		v := r.view(*item)
		payload = &v
	}
	if err := r.bus.Publish(ctx, r.topic, payload); err != nil {
		r.log.WithError(err).WithField("registry", r.name).Warn("failed to publish active record")
	}
}

// Watch yields the active record (nil for none) now and after every change,
// until ctx is cancelled.
func (r *Registry[T]) Watch(ctx context.Context) (<-chan *T, error) {
	ch, err := r.bus.Subscribe(ctx, r.topic)
	if err != nil {
		return nil, err
	}

	current, err := r.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *T, 1)
	if current != nil {
		v := r.view(*current)
		current = &v
	}
	out <- current

	go func() {
		defer close(out)
		for ev := range ch {
			var item *T
			if err := json.Unmarshal(ev.Payload, &item); err != nil {
				r.log.WithError(err).WithField("registry", r.name).Warn("malformed active record event")
				continue
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
