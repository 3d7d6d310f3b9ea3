package services

import (
	"context"
	"testing"
	"time"

	"github.com/streamania/backend/internal/models"
)

func TestSessionObserver_Snapshots(t *testing.T) {
	env := newTestEnv(t)
	obs := NewSessionObserver(env.bus, env.store, env.log)

	snaps := make(chan SessionSnapshot, 8)
	obs.OnChange(func(s SessionSnapshot) { snaps <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = obs.Run(ctx)
		close(done)
	}()
	// let Run subscribe before publishing
	time.Sleep(20 * time.Millisecond)

	next := func() SessionSnapshot {
		select {
		case s := <-snaps:
			return s
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
		return SessionSnapshot{}
	}

	id := env.signUp(t, "alice")
	s := next()
	if !s.SignedIn || s.Profile == nil || s.Profile.Username != "alice" {
		t.Fatalf("unexpected sign-up snapshot %+v", s)
	}

	if _, err := env.identity.TopUpUserWallet(context.Background(), id.UserID, 500); err != nil {
		t.Fatalf("TopUpUserWallet error: %v", err)
	}
	s = next()
	if s.Profile == nil || s.Profile.Wallet != models.StartingWalletBalance+500 {
		t.Fatalf("expected refreshed wallet in snapshot, got %+v", s.Profile)
	}

	_ = env.identity.Logout(context.Background(), id)
	s = next()
	if s.SignedIn || s.Profile != nil {
		t.Fatalf("expected signed-out snapshot without profile, got %+v", s)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop after cancel")
	}
}
