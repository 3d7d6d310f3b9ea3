package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

func TestSignUp_CreatesProfileAndSession(t *testing.T) {
	env := newTestEnv(t)
	authEvents := subscribe(t, env.bus, events.TopicAuthState)

	resp, err := env.identity.SignUp(context.Background(), models.SignUpRequest{
		Email:    "Viewer@Example.com",
		Password: "secret123",
		Username: "viewer",
	})
	if err != nil {
		t.Fatalf("SignUp error: %v", err)
	}

	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.Profile.Wallet != models.StartingWalletBalance {
		t.Errorf("wallet = %d, want %d", resp.Profile.Wallet, models.StartingWalletBalance)
	}
	if resp.Profile.Email != "viewer@example.com" {
		t.Errorf("email = %q, want normalized", resp.Profile.Email)
	}
	if resp.Profile.IsAdmin {
		t.Error("regular sign-up must not be admin")
	}

	ok, _ := env.store.SessionExists(context.Background(), sessionOf(t, resp.Token))
	if !ok {
		t.Error("expected session to exist after sign-up")
	}

	var st events.AuthState
	if err := nextEvent(t, authEvents).Decode(&st); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !st.SignedIn || st.UserID != resp.Profile.ID.String() {
		t.Errorf("unexpected auth state %+v", st)
	}
}

func TestSignUp_AdminEmail(t *testing.T) {
	env := newTestEnv(t)
	id := env.signUp(t, "admin")

	if !mustProfile(t, env, id.UserID).IsAdmin {
		t.Fatal("expected configured admin email to get the admin role")
	}
}

func TestSignUp_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	_, err := env.identity.SignUp(context.Background(), models.SignUpRequest{
		Email:    "other@example.com",
		Password: "secret123",
		Username: "alice",
	})
	if !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	users, _ := env.identity.GetAllUsers(context.Background())
	if len(users) != 1 {
		t.Fatalf("expected one profile, got %d", len(users))
	}
}

func TestSignUp_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  models.SignUpRequest
	}{
		{"short password", models.SignUpRequest{Email: "a@example.com", Password: "12345", Username: "alice"}},
		{"blank username", models.SignUpRequest{Email: "a@example.com", Password: "secret123", Username: "   "}},
		{"bad email", models.SignUpRequest{Email: "nope", Password: "secret123", Username: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.identity.SignUp(context.Background(), tt.req)
			if !errors.Is(err, apperr.ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "bob")
	ctx := context.Background()

	resp, err := env.identity.SignIn(ctx, models.SignInRequest{Email: "bob@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}
	if resp.Profile.Username != "bob" {
		t.Errorf("username = %q, want bob", resp.Profile.Username)
	}

	for _, req := range []models.SignInRequest{
		{Email: "bob@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret123"},
	} {
		if _, err := env.identity.SignIn(ctx, req); !errors.Is(err, apperr.ErrInvalidCredentials) {
			t.Errorf("SignIn(%s) expected ErrInvalidCredentials, got %v", req.Email, err)
		}
	}
}

func TestLogout_AnnouncesThenRevokes(t *testing.T) {
	env := newTestEnv(t)
	id := env.signUp(t, "carol")
	authEvents := subscribe(t, env.bus, events.TopicAuthState)

	if err := env.identity.Logout(context.Background(), id); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	var st events.AuthState
	_ = nextEvent(t, authEvents).Decode(&st)
	if st.SignedIn {
		t.Fatal("expected signed-out event")
	}

	ok, _ := env.store.SessionExists(context.Background(), id.SessionID)
	if ok {
		t.Fatal("expected session to be revoked")
	}

	if err := env.identity.Logout(context.Background(), nil); !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	id := env.signUp(t, "dave")
	ctx := context.Background()

	if err := env.identity.ChangePassword(ctx, nil, "newsecret"); !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if err := env.identity.ChangePassword(ctx, id, "12345"); !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if err := env.identity.ChangePassword(ctx, id, "newsecret"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	if _, err := env.identity.SignIn(ctx, models.SignInRequest{Email: "dave@example.com", Password: "newsecret"}); err != nil {
		t.Fatalf("SignIn with new password error: %v", err)
	}
}

func TestResetPassword_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "erin")
	ctx := context.Background()

	if err := env.identity.ResetPassword(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if err := env.identity.ResetPassword(ctx, "erin@example.com"); err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}

	token := env.mailer.token(t, "erin@example.com")
	if err := env.identity.ConfirmPasswordReset(ctx, token, "brandnew"); err != nil {
		t.Fatalf("ConfirmPasswordReset error: %v", err)
	}
	if err := env.identity.ConfirmPasswordReset(ctx, token, "another1"); !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected reused token to fail validation, got %v", err)
	}

	if _, err := env.identity.SignIn(ctx, models.SignInRequest{Email: "erin@example.com", Password: "brandnew"}); err != nil {
		t.Fatalf("SignIn after reset error: %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	env := newTestEnv(t)
	frank := env.signUp(t, "frank")
	env.signUp(t, "grace")
	ctx := context.Background()

	if _, err := env.identity.UpdateUserProfile(ctx, frank, "grace", "frank@example.com"); !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	// keeping one's own username is not a clash
	p, err := env.identity.UpdateUserProfile(ctx, frank, "frank", "frank2@example.com")
	if err != nil {
		t.Fatalf("UpdateUserProfile error: %v", err)
	}
	if p.Email != "frank2@example.com" {
		t.Errorf("email = %q, want frank2@example.com", p.Email)
	}

	if _, err := env.identity.SignIn(ctx, models.SignInRequest{Email: "frank2@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("expected login email to follow profile email, got %v", err)
	}
}

func TestTopUpUserWallet(t *testing.T) {
	env := newTestEnv(t)
	id := env.signUp(t, "heidi")
	ctx := context.Background()

	balance, err := env.identity.TopUpUserWallet(ctx, id.UserID, 250)
	if err != nil {
		t.Fatalf("TopUpUserWallet error: %v", err)
	}
	if balance != 1250 {
		t.Fatalf("balance = %d, want 1250", balance)
	}

	balance, _ = env.identity.TopUpUserWallet(ctx, id.UserID, -50)
	if balance != 1200 {
		t.Fatalf("balance = %d, want 1200 after negative adjustment", balance)
	}

	if _, err := env.identity.TopUpUserWallet(ctx, uuid.New(), 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestTopUpUserWallet_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	id := env.signUp(t, "ivan")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.identity.TopUpUserWallet(context.Background(), id.UserID, 10); err != nil {
				t.Errorf("TopUpUserWallet error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mustProfile(t, env, id.UserID).Wallet; got != 1500 {
		t.Fatalf("wallet = %d, want 1500", got)
	}
}

// flakyProfiles fails the next CreateProfile call once
type flakyProfiles struct {
	ProfileStore
	failNext bool
}

func (f *flakyProfiles) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	if f.failNext {
		f.failNext = false
		return errors.New("transient db error")
	}
	return f.ProfileStore.CreateProfile(ctx, p)
}

func TestSignUp_ProfileFailureReleasesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profiles := &flakyProfiles{ProfileStore: env.store, failNext: true}
	provider := auth.NewProvider(env.store, env.store, env.mailer, "http://localhost/reset", time.Hour, env.log)
	identity := NewIdentityService(profiles, provider, env.store, auth.NewJWTService("test-secret", 1), env.bus, nil, env.log)

	req := models.SignUpRequest{Email: "viewer@example.com", Password: "secret123", Username: "viewer"}
	if _, err := identity.SignUp(ctx, req); !errors.Is(err, apperr.ErrRemoteWriteFailed) {
		t.Fatalf("first SignUp error = %v, want write failure", err)
	}
	if _, err := env.store.GetCredentialsByEmail(ctx, "viewer@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("credential should be removed after failed sign-up, got %v", err)
	}
	if _, err := identity.SignIn(ctx, models.SignInRequest{Email: req.Email, Password: req.Password}); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("SignIn before retry error = %v, want invalid credentials", err)
	}

	resp, err := identity.SignUp(ctx, req)
	if err != nil {
		t.Fatalf("retry SignUp error: %v", err)
	}
	if _, err := identity.SignIn(ctx, models.SignInRequest{Email: req.Email, Password: req.Password}); err != nil {
		t.Fatalf("SignIn after retry error: %v", err)
	}
	if resp.Profile.Username != "viewer" {
		t.Errorf("unexpected profile %+v", resp.Profile)
	}
}

func TestSignUp_UsernameRaceReleasesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, "viewer")

	// simulate the race: the pre-check passes but the profile insert collides
	profiles := &racingProfiles{ProfileStore: env.store}
	provider := auth.NewProvider(env.store, env.store, env.mailer, "http://localhost/reset", time.Hour, env.log)
	identity := NewIdentityService(profiles, provider, env.store, auth.NewJWTService("test-secret", 1), env.bus, nil, env.log)

	_, err := identity.SignUp(ctx, models.SignUpRequest{Email: "late@example.com", Password: "secret123", Username: "viewer"})
	if !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Fatalf("SignUp error = %v, want duplicate username", err)
	}
	if _, err := env.store.GetCredentialsByEmail(ctx, "late@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("losing credential should be removed, got %v", err)
	}
}

// racingProfiles hides existing usernames from the pre-check
type racingProfiles struct {
	ProfileStore
}

func (racingProfiles) FindByUsername(context.Context, string) (*models.UserProfile, error) {
	return nil, apperr.ErrNotFound
}
