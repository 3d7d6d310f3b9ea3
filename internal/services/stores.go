// Package services holds the Streamania state facades: identity and
// sessions, the activation registries for streams and quizzes, and the chat
// and moderation ledger.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/models"
)

// ProfileStore persists user profiles. Unknown ids return apperr.ErrNotFound,
// a username clash returns apperr.ErrDuplicateUsername.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.UserProfile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	FindByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, username, email string) error
	ListProfiles(ctx context.Context) ([]models.UserProfile, error)
	// IncrementWallet adds delta in one storage-level operation and returns the new balance
	IncrementWallet(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
}

// SessionStore tracks live sessions so tokens can be revoked on logout
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ActivationStore is the storage side of a Registry. Activate must make the
// target the only active record in one atomic step.
type ActivationStore[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	Activate(ctx context.Context, id uuid.UUID, at time.Time) (*T, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*T, error)
	// Active returns nil when no record is active
	Active(ctx context.Context) (*T, error)
}

type StreamStore interface {
	ActivationStore[models.StreamConfig]
	CreateStream(ctx context.Context, s *models.StreamConfig) error
	UpdateLiveStatus(ctx context.Context, id uuid.UUID, status models.StreamStatus, checkedAt time.Time) error
	DeleteStream(ctx context.Context, id uuid.UUID) error
}

type QuizStore interface {
	ActivationStore[models.Quiz]
	CreateQuiz(ctx context.Context, q *models.Quiz) error
	// PlaceWager debits the bet when the wallet covers it and records the
	// answer, atomically. Returns the new wallet balance.
	PlaceWager(ctx context.Context, a *models.QuizAnswer) (int64, error)
	ListAnswers(ctx context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error)
	// SettleAnswers grades every unsettled answer and credits winners
	// bet*multiplier. Already settled answers are left alone.
	SettleAnswers(ctx context.Context, quizID uuid.UUID, correctOptionID string, multiplier int64) (*models.Settlement, error)
}

type ChatStore interface {
	CreateMessage(ctx context.Context, m *models.ChatMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	// ListMessages returns non-deleted messages newest first
	ListMessages(ctx context.Context, streamID *uuid.UUID, limit int) ([]models.ChatMessage, error)
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
	SoftDeleteUserMessages(ctx context.Context, userID uuid.UUID) (int64, error)

	CreateAction(ctx context.Context, a *models.ModerationAction) error
	// ListActions returns actions newest first; a nil userID lists all users
	ListActions(ctx context.Context, userID *uuid.UUID, limit int) ([]models.ModerationAction, error)

	GetStatus(ctx context.Context, userID uuid.UUID) (*models.UserModerationStatus, error)
	PatchStatus(ctx context.Context, userID uuid.UUID, patch models.ModerationStatusPatch) (*models.UserModerationStatus, error)
	ListRestricted(ctx context.Context) ([]models.UserModerationStatus, error)
	ListExpiredMutes(ctx context.Context, now time.Time) ([]models.UserModerationStatus, error)

	// GetSettings returns apperr.ErrNotFound when settings were never saved
	GetSettings(ctx context.Context) (*models.ChatSettings, error)
	SaveSettings(ctx context.Context, s models.ChatSettings) error
}

// VideoStatusClient looks up live details of a video reference
type VideoStatusClient interface {
	Lookup(ctx context.Context, videoRef string) (*models.StreamStatus, error)
}
