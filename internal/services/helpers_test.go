package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/memstore"
	"github.com/streamania/backend/internal/models"
)

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[email] = link
	return nil
}

func (m *captureMailer) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[email]
	if !ok {
		t.Fatalf("no reset link sent to %s", email)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("bad reset link %q: %v", link, err)
	}
	return u.Query().Get("token")
}

type fakeVideo struct {
	mu     sync.Mutex
	status *models.StreamStatus
	err    error
	calls  int
}

func (f *fakeVideo) Lookup(_ context.Context, ref string) (*models.StreamStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	st := *f.status
	return &st, nil
}

type testEnv struct {
	store    *memstore.Store
	bus      *events.MemoryBus
	mailer   *captureMailer
	video    *fakeVideo
	identity *IdentityService
	streams  *StreamService
	quizzes  *QuizService
	chat     *ChatService
	log      *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memstore.New()
	bus := events.NewMemoryBus()
	mailer := &captureMailer{}
	video := &fakeVideo{err: fmt.Errorf("%w: not configured", apperr.ErrVideoLookupFailed)}

	provider := auth.NewProvider(store, store, mailer, "http://localhost/reset", time.Hour, log)
	jwtService := auth.NewJWTService("test-secret", 1)

	return &testEnv{
		store:    store,
		bus:      bus,
		mailer:   mailer,
		video:    video,
		identity: NewIdentityService(store, provider, store, jwtService, bus, []string{"admin@example.com"}, log),
		streams:  NewStreamService(store.Streams(), video, bus, log),
		quizzes:  NewQuizService(store.Quizzes(), store, bus, 2, log),
		chat:     NewChatService(store, store, bus, log),
		log:      log,
	}
}

// signUp registers a user and returns the caller identity
func (e *testEnv) signUp(t *testing.T, username string) *models.Identity {
	t.Helper()
	resp, err := e.identity.SignUp(context.Background(), models.SignUpRequest{
		Email:    username + "@example.com",
		Password: "secret123",
		Username: username,
	})
	if err != nil {
		t.Fatalf("SignUp(%s) error: %v", username, err)
	}
	return &models.Identity{UserID: resp.Profile.ID, Email: resp.Profile.Email, SessionID: sessionOf(t, resp.Token)}
}

func sessionOf(t *testing.T, token string) string {
	t.Helper()
	claims, err := auth.NewJWTService("test-secret", 1).ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	return claims.SessionID
}

func subscribe(t *testing.T, bus events.Subscriber, topics ...string) <-chan events.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := bus.Subscribe(ctx, topics...)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	return ch
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func mustProfile(t *testing.T, e *testEnv, id uuid.UUID) *models.UserProfile {
	t.Helper()
	p, err := e.store.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	return p
}
