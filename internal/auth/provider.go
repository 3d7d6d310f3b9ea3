package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
)

// Credentials is the login record owned by the identity provider
type Credentials struct {
	UserID       uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialStore persists credentials. Lookups of unknown records return
// apperr.ErrNotFound; a duplicate email returns apperr.ErrConflict.
type CredentialStore interface {
	CreateCredentials(ctx context.Context, c *Credentials) error
	GetCredentials(ctx context.Context, userID uuid.UUID) (*Credentials, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
	UpdateCredentials(ctx context.Context, userID uuid.UUID, displayName, email string) error
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	DeleteCredentials(ctx context.Context, userID uuid.UUID) error
}

// ResetTokenStore keeps single-use password reset tokens
type ResetTokenStore interface {
	SaveResetToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// ConsumeResetToken returns apperr.ErrNotFound for unknown or expired tokens
	ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error)
}

// Mailer delivers password reset links out of band
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// Provider is the credential authority: it creates accounts, verifies
// passwords and runs the reset flow.
type Provider struct {
	store    CredentialStore
	tokens   ResetTokenStore
	mailer   Mailer
	resetURL string
	resetTTL time.Duration
	log      *logrus.Logger
}

func NewProvider(store CredentialStore, tokens ResetTokenStore, mailer Mailer, resetURL string, resetTTL time.Duration, log *logrus.Logger) *Provider {
	return &Provider{
		store:    store,
		tokens:   tokens,
		mailer:   mailer,
		resetURL: resetURL,
		resetTTL: resetTTL,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers a new credential and returns its user id
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (uuid.UUID, error) {
	email = normalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return uuid.Nil, apperr.Validation("%v", err)
	}
	if err := models.ValidatePassword(password); err != nil {
		return uuid.Nil, apperr.Validation("%v", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	c := &Credentials{
		UserID:       uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.CreateCredentials(ctx, c); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return uuid.Nil, fmt.Errorf("email already registered: %w", apperr.ErrConflict)
		}
		return uuid.Nil, apperr.WriteFailed("create account", err)
	}
	return c.UserID, nil
}

// DeleteAccount removes a credential. Unknown ids are not an error.
func (p *Provider) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	c, err := p.store.GetCredentials(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.store.DeleteCredentials(ctx, c.UserID); err != nil {
		return apperr.WriteFailed("delete account", err)
	}
	p.log.WithFields(logrus.Fields{"user_id": c.UserID, "email": c.Email}).Info("account removed")
	return nil
}

// Authenticate verifies email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*Credentials, error) {
	c, err := p.store.GetCredentialsByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := CheckPassword(c.PasswordHash, password); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return c, nil
}

// UpdateAccount sets the display name and login email
func (p *Provider) UpdateAccount(ctx context.Context, userID uuid.UUID, displayName, email string) error {
	if err := p.store.UpdateCredentials(ctx, userID, displayName, normalizeEmail(email)); err != nil {
		return apperr.WriteFailed("update account", err)
	}
	return nil
}

func (p *Provider) UpdatePassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if err := models.ValidatePassword(newPassword); err != nil {
		return apperr.Validation("%v", err)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := p.store.SetPasswordHash(ctx, userID, hash); err != nil {
		return apperr.WriteFailed("update password", err)
	}
	return nil
}

// SendPasswordReset mails a reset link when the email is registered and
// succeeds silently otherwise.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	c, err := p.store.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			p.log.WithField("email", email).Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := p.tokens.SaveResetToken(ctx, token, c.UserID, p.resetTTL); err != nil {
		return apperr.WriteFailed("save reset token", err)
	}

	link := p.resetURL + "?token=" + url.QueryEscape(token)
	if err := p.mailer.SendPasswordReset(ctx, c.Email, link); err != nil {
		return fmt.Errorf("failed to deliver reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset consumes token and sets the new password
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (uuid.UUID, error) {
	if err := models.ValidatePassword(newPassword); err != nil {
		return uuid.Nil, apperr.Validation("%v", err)
	}
	userID, err := p.tokens.ConsumeResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return uuid.Nil, apperr.Validation("reset token is invalid or expired")
		}
		return uuid.Nil, err
	}
	if err := p.UpdatePassword(ctx, userID, newPassword); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// LogMailer writes reset links to the log; used until an SMTP relay is configured
type LogMailer struct {
	Log *logrus.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.Log.WithFields(logrus.Fields{
		"email": email,
		"link":  link,
	}).Info("password reset link issued")
	return nil
}
