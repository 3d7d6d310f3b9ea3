package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

// SessionSnapshot is what listeners see after an auth state change
type SessionSnapshot struct {
	UserID   uuid.UUID           `json:"user_id"`
	SignedIn bool                `json:"signed_in"`
	Profile  *models.UserProfile `json:"profile"`
}

// SessionObserver turns auth state and wallet events into fresh profile
// snapshots. It subscribes once in Run and stops when ctx is cancelled.
type SessionObserver struct {
	sub      events.Subscriber
	profiles ProfileStore
	log      *logrus.Logger

	mu        sync.RWMutex
	listeners []func(SessionSnapshot)
}

func NewSessionObserver(sub events.Subscriber, profiles ProfileStore, log *logrus.Logger) *SessionObserver {
	return &SessionObserver{sub: sub, profiles: profiles, log: log}
}

// OnChange registers fn for every snapshot; register before Run
func (o *SessionObserver) OnChange(fn func(SessionSnapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *SessionObserver) Run(ctx context.Context) error {
	ch, err := o.sub.Subscribe(ctx, events.TopicAuthState, events.TopicWalletUpdated)
	if err != nil {
		return err
	}

	for ev := range ch {
		snap, ok := o.snapshot(ctx, ev)
		if !ok {
			continue
		}
		o.emit(snap)
	}
	return nil
}

func (o *SessionObserver) snapshot(ctx context.Context, ev events.Event) (SessionSnapshot, bool) {
	var userID string
	signedIn := true

	switch ev.Topic {
	case events.TopicAuthState:
		var st events.AuthState
		if err := ev.Decode(&st); err != nil {
			o.log.WithError(err).Warn("malformed auth state event")
			return SessionSnapshot{}, false
		}
		userID, signedIn = st.UserID, st.SignedIn
	case events.TopicWalletUpdated:
		var w events.WalletUpdated
		if err := ev.Decode(&w); err != nil {
			o.log.WithError(err).Warn("malformed wallet event")
			return SessionSnapshot{}, false
		}
		userID = w.UserID
	default:
		return SessionSnapshot{}, false
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return SessionSnapshot{}, false
	}

	snap := SessionSnapshot{UserID: id, SignedIn: signedIn}
	if !signedIn {
		return snap, true
	}

	profile, err := o.profiles.GetProfile(ctx, id)
	if err != nil {
		o.log.WithError(err).WithField("user_id", id).Warn("failed to refresh profile")
		return SessionSnapshot{}, false
	}
	snap.Profile = profile
	return snap, true
}

func (o *SessionObserver) emit(snap SessionSnapshot) {
	o.mu.RLock()
	listeners := append([]func(SessionSnapshot){}, o.listeners...)
	o.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
