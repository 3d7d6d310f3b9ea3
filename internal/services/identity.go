package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

// CredentialProvider is the identity provider boundary (auth.Provider)
type CredentialProvider interface {
	CreateAccount(ctx context.Context, email, password string) (uuid.UUID, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Credentials, error)
	UpdateAccount(ctx context.Context, userID uuid.UUID, displayName, email string) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPassword string) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) (uuid.UUID, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// TokenIssuer signs access tokens bound to a session
type TokenIssuer interface {
	GenerateToken(userID uuid.UUID, email, sessionID string) (string, error)
	TTL() time.Duration
}

// IdentityService owns sign-up, sign-in, sessions and user profiles
type IdentityService struct {
	profiles    ProfileStore
	provider    CredentialProvider
	sessions    SessionStore
	tokens      TokenIssuer
	bus         events.Publisher
	adminEmails map[string]bool
	log         *logrus.Logger
}

func NewIdentityService(profiles ProfileStore, provider CredentialProvider, sessions SessionStore, tokens TokenIssuer, bus events.Publisher, adminEmails []string, log *logrus.Logger) *IdentityService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &IdentityService{
		profiles:    profiles,
		provider:    provider,
		sessions:    sessions,
		tokens:      tokens,
		bus:         bus,
		adminEmails: admins,
		log:         log,
	}
}

// SignUp creates the credential and profile and opens a session
func (s *IdentityService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := (&models.UserProfile{Email: email, Username: username}).Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := models.ValidatePassword(req.Password); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	taken, err := s.usernameTaken(ctx, username, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.ErrDuplicateUsername
	}

	userID, err := s.provider.CreateAccount(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.provider.UpdateAccount(ctx, userID, username, email); err != nil {
		s.dropAccount(ctx, userID)
		return nil, err
	}

	profile := &models.UserProfile{
		ID:        userID,
		Email:     email,
		Username:  username,
		IsAdmin:   s.adminEmails[email],
		Wallet:    models.StartingWalletBalance,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		s.dropAccount(ctx, userID)
		return nil, apperr.WriteFailed("create profile", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "username": username}).Info("user signed up")
	return s.openSession(ctx, profile, "sign_up")
}

// dropAccount undoes CreateAccount so the email can sign up again
func (s *IdentityService) dropAccount(ctx context.Context, userID uuid.UUID) {
	if err := s.provider.DeleteAccount(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to remove credential after incomplete sign-up")
	}
}

// SignIn verifies credentials and opens a session
func (s *IdentityService) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResponse, error) {
	creds, err := s.provider.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, creds.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// credential without profile: sign-up failed halfway
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}

	return s.openSession(ctx, profile, "sign_in")
}

func (s *IdentityService) openSession(ctx context.Context, profile *models.UserProfile, reason string) (*models.AuthResponse, error) {
	sessionID := uuid.NewString()
	if err := s.sessions.CreateSession(ctx, sessionID, profile.ID, s.tokens.TTL()); err != nil {
		return nil, apperr.WriteFailed("create session", err)
	}

	token, err := s.tokens.GenerateToken(profile.ID, profile.Email, sessionID)
	if err != nil {
		return nil, err
	}

	s.publishAuthState(ctx, profile.ID, true, reason)
	return &models.AuthResponse{Token: token, Profile: *profile}, nil
}

// Logout announces the sign-out before revoking the session so listeners
// drop the cached profile first.
func (s *IdentityService) Logout(ctx context.Context, id *models.Identity) error {
	if id == nil {
		return apperr.ErrNotAuthenticated
	}

	s.publishAuthState(ctx, id.UserID, false, "logout")

	if err := s.sessions.DeleteSession(ctx, id.SessionID); err != nil {
		return apperr.WriteFailed("delete session", err)
	}
	return nil
}

// ResetPassword requests a reset email; unknown emails succeed silently
func (s *IdentityService) ResetPassword(ctx context.Context, email string) error {
	if err := models.ValidateEmail(strings.TrimSpace(email)); err != nil {
		return apperr.Validation("%v", err)
	}
	return s.provider.SendPasswordReset(ctx, email)
}

func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	userID, err := s.provider.ConfirmPasswordReset(ctx, token, newPassword)
	if err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password reset completed")
	return nil
}

func (s *IdentityService) ChangePassword(ctx context.Context, id *models.Identity, newPassword string) error {
	if id == nil {
		return apperr.ErrNotAuthenticated
	}
	if err := models.ValidatePassword(newPassword); err != nil {
		return apperr.Validation("%v", err)
	}
	return s.provider.UpdatePassword(ctx, id.UserID, newPassword)
}

// UpdateUserProfile changes username and email. The profile is written
// before the provider record; a provider failure leaves the profile updated.
func (s *IdentityService) UpdateUserProfile(ctx context.Context, id *models.Identity, username, email string) (*models.UserProfile, error) {
	if id == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := (&models.UserProfile{ID: id.UserID, Email: email, Username: username}).Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	taken, err := s.usernameTaken(ctx, username, id.UserID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.ErrDuplicateUsername
	}

	if err := s.profiles.UpdateProfile(ctx, id.UserID, username, email); err != nil {
		return nil, apperr.WriteFailed("update profile", err)
	}
	if err := s.provider.UpdateAccount(ctx, id.UserID, username, email); err != nil {
		s.log.WithError(err).WithField("user_id", id.UserID).Error("profile updated but provider update failed")
		return nil, err
	}

	s.publishAuthState(ctx, id.UserID, true, "profile_updated")
	return s.profiles.GetProfile(ctx, id.UserID)
}

func (s *IdentityService) Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

func (s *IdentityService) GetAllUsers(ctx context.Context) ([]models.UserProfile, error) {
	return s.profiles.ListProfiles(ctx)
}

// TopUpUserWallet adds amount (any sign) to the wallet atomically
func (s *IdentityService) TopUpUserWallet(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	balance, err := s.profiles.IncrementWallet(ctx, userID, amount)
	if err != nil {
		return 0, apperr.WriteFailed("top up wallet", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "amount": amount, "balance": balance}).Info("wallet topped up")
	publishWallet(ctx, s.bus, s.log, userID, amount, balance, "top_up")
	return balance, nil
}

func (s *IdentityService) usernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	existing, err := s.profiles.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return existing.ID != exclude, nil
}

func (s *IdentityService) publishAuthState(ctx context.Context, userID uuid.UUID, signedIn bool, reason string) {
	err := s.bus.Publish(ctx, events.TopicAuthState, events.AuthState{
		UserID:   userID.String(),
		SignedIn: signedIn,
		Reason:   reason,
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to publish auth state")
	}
}

func publishWallet(ctx context.Context, bus events.Publisher, log *logrus.Logger, userID uuid.UUID, delta, balance int64, reason string) {
	err := bus.Publish(ctx, events.TopicWalletUpdated, events.WalletUpdated{
		UserID:  userID.String(),
		Delta:   delta,
		Balance: balance,
		Reason:  reason,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("failed to publish wallet update")
	}
}
