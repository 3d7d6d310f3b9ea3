package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

const defaultMessageLimit = 100

// Moderator identifies who performed a moderation action
type Moderator struct {
	ID       uuid.UUID
	Username string
}

// BotModerator is recorded for automatic actions
var BotModerator = Moderator{Username: models.BotUsername}

// ChatService is the chat and moderation ledger
type ChatService struct {
	store    ChatStore
	profiles ProfileStore
	bus      events.Publisher
	now      func() time.Time
	log      *logrus.Logger
}

func NewChatService(store ChatStore, profiles ProfileStore, bus events.Publisher, log *logrus.Logger) *ChatService {
	return &ChatService{
		store:    store,
		profiles: profiles,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// SendMessage stores a chat message after checking bans, mutes, slow mode
// and keyword filters.
func (s *ChatService) SendMessage(ctx context.Context, id *models.Identity, req models.SendMessageRequest) (*models.ChatMessage, error) {
	if id == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(text) > models.MaxChatMessageLength {
		return nil, apperr.Validation("message must be at most %d characters", models.MaxChatMessageLength)
	}

	profile, err := s.profiles.GetProfile(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status, err := s.store.GetStatus(ctx, id.UserID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if status != nil {
		if status.IsBanned {
			return nil, apperr.ErrBanned
		}
		if status.MutedAt(now) {
			return nil, apperr.ErrMuted
		}
		if status.IsMuted {
			s.clearMute(ctx, id.UserID)
		}
	}

	settings, err := s.GetChatSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.SlowMode && status != nil && status.LastMessageAt != nil {
		if now.Before(status.LastMessageAt.Add(time.Duration(settings.SlowModeDelay) * time.Second)) {
			return nil, apperr.ErrSlowMode
		}
	}
	if _, hit := models.MatchKeyword(text, settings.BannedKeywords); hit {
		return nil, apperr.Validation("message contains a banned keyword")
	}
	keyword, autoDelete := models.MatchKeyword(text, settings.AutoDeleteKeywords)

	msg := &models.ChatMessage{
		ID:        uuid.New(),
		UserID:    id.UserID,
		Username:  profile.Username,
		Message:   text,
		Timestamp: now,
		IsDeleted: autoDelete,
		StreamID:  req.StreamID,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.WriteFailed("send message", err)
	}

	username := profile.Username
	if _, err := s.store.PatchStatus(ctx, id.UserID, models.ModerationStatusPatch{Username: &username, LastMessageAt: &now}); err != nil {
		s.log.WithError(err).WithField("user_id", id.UserID).Warn("failed to record last message time")
	}

	if autoDelete {
		s.recordAutoDelete(ctx, msg, keyword)
		return msg, nil
	}

	if err := s.bus.Publish(ctx, events.TopicChatMessage, msg); err != nil {
		s.log.WithError(err).Warn("failed to publish chat message")
	}
	return msg, nil
}

func (s *ChatService) recordAutoDelete(ctx context.Context, msg *models.ChatMessage, keyword string) {
	action := &models.ModerationAction{
		ID:                uuid.New(),
		UserID:            msg.UserID,
		Username:          msg.Username,
		ActionType:        models.ActionAutoDelete,
		Reason:            "auto-delete keyword: " + keyword,
		ModeratorID:       BotModerator.ID,
		ModeratorUsername: BotModerator.Username,
		CreatedAt:         s.now(),
	}
	if err := s.store.CreateAction(ctx, action); err != nil {
		s.log.WithError(err).WithField("message_id", msg.ID).Warn("failed to log auto-delete")
	}
}

func (s *ChatService) clearMute(ctx context.Context, userID uuid.UUID) {
	unmuted := false
	if _, err := s.store.PatchStatus(ctx, userID, models.ModerationStatusPatch{IsMuted: &unmuted, ClearMuteExpiry: true}); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to clear expired mute")
	}
}

// GetMessages returns visible messages newest first
func (s *ChatService) GetMessages(ctx context.Context, streamID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}
	return s.store.ListMessages(ctx, streamID, limit)
}

func (s *ChatService) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	if err := s.store.SoftDeleteMessage(ctx, messageID); err != nil {
		return apperr.WriteFailed("delete message", err)
	}
	s.publishDeleted(ctx, models.MessageDeleted{MessageIDs: []uuid.UUID{messageID}})
	return nil
}

// BulkDeleteUserMessages hides every message of a user
func (s *ChatService) BulkDeleteUserMessages(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.SoftDeleteUserMessages(ctx, userID)
	if err != nil {
		return 0, apperr.WriteFailed("bulk delete messages", err)
	}
	s.publishDeleted(ctx, models.MessageDeleted{UserID: &userID})
	return n, nil
}

func (s *ChatService) publishDeleted(ctx context.Context, d models.MessageDeleted) {
	if err := s.bus.Publish(ctx, events.TopicChatDeleted, d); err != nil {
		s.log.WithError(err).Warn("failed to publish message deletion")
	}
}

// CreateModerationAction appends to the moderation log
func (s *ChatService) CreateModerationAction(ctx context.Context, by Moderator, req models.CreateModerationActionRequest) (*models.ModerationAction, error) {
	if !req.ActionType.Valid() {
		return nil, apperr.Validation("unknown action type %q", req.ActionType)
	}
	action := &models.ModerationAction{
		ID:                uuid.New(),
		UserID:            req.UserID,
		Username:          req.Username,
		ActionType:        req.ActionType,
		Reason:            req.Reason,
		Duration:          req.Duration,
		ModeratorID:       by.ID,
		ModeratorUsername: by.Username,
		CreatedAt:         s.now(),
		ExpiresAt:         req.ExpiresAt,
	}
	if err := s.store.CreateAction(ctx, action); err != nil {
		return nil, apperr.WriteFailed("create moderation action", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   action.UserID,
		"action":    action.ActionType,
		"moderator": by.Username,
	}).Info("moderation action recorded")
	return action, nil
}

func (s *ChatService) GetUserModerationHistory(ctx context.Context, userID uuid.UUID) ([]models.ModerationAction, error) {
	return s.store.ListActions(ctx, &userID, 0)
}

func (s *ChatService) ListModerationActions(ctx context.Context, limit int) ([]models.ModerationAction, error) {
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}
	return s.store.ListActions(ctx, nil, limit)
}

// GetUserModerationStatus returns the stored status, or an unrestricted one
// for users never moderated.
func (s *ChatService) GetUserModerationStatus(ctx context.Context, userID uuid.UUID) (*models.UserModerationStatus, error) {
	st, err := s.store.GetStatus(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &models.UserModerationStatus{UserID: userID}, nil
	}
	return st, err
}

// UpdateUserModerationStatus merges only the fields set in patch
func (s *ChatService) UpdateUserModerationStatus(ctx context.Context, userID uuid.UUID, patch models.ModerationStatusPatch) (*models.UserModerationStatus, error) {
	st, err := s.store.PatchStatus(ctx, userID, patch)
	if err != nil {
		return nil, apperr.WriteFailed("update moderation status", err)
	}
	return st, nil
}

func (s *ChatService) ListRestrictedUsers(ctx context.Context) ([]models.UserModerationStatus, error) {
	return s.store.ListRestricted(ctx)
}

func (s *ChatService) resolveUsername(ctx context.Context, userID uuid.UUID, given string) (string, error) {
	if given = strings.TrimSpace(given); given != "" {
		return given, nil
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return p.Username, nil
}

// MuteUser silences a user for req.DurationMinutes (default 10)
func (s *ChatService) MuteUser(ctx context.Context, by Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason is required")
	}
	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = models.DefaultMuteMinutes
	}
	if minutes < 0 {
		return nil, apperr.Validation("duration must be positive")
	}
	username, err := s.resolveUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(time.Duration(minutes) * time.Minute)
	if _, err := s.CreateModerationAction(ctx, by, models.CreateModerationActionRequest{
		UserID:     userID,
		Username:   username,
		ActionType: models.ActionMute,
		Reason:     req.Reason,
		Duration:   &minutes,
		ExpiresAt:  &expires,
	}); err != nil {
		return nil, err
	}

	muted, banned := true, false
	return s.UpdateUserModerationStatus(ctx, userID, models.ModerationStatusPatch{
		Username:      &username,
		IsMuted:       &muted,
		IsBanned:      &banned,
		MuteExpiresAt: &expires,
	})
}

// BanUser blocks a user from chat until unbanned
func (s *ChatService) BanUser(ctx context.Context, by Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason is required")
	}
	username, err := s.resolveUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, err
	}

	if _, err := s.CreateModerationAction(ctx, by, models.CreateModerationActionRequest{
		UserID:     userID,
		Username:   username,
		ActionType: models.ActionBan,
		Reason:     req.Reason,
	}); err != nil {
		return nil, err
	}

	muted, banned := false, true
	return s.UpdateUserModerationStatus(ctx, userID, models.ModerationStatusPatch{
		Username:        &username,
		IsMuted:         &muted,
		IsBanned:        &banned,
		ClearMuteExpiry: true,
	})
}

func (s *ChatService) UnmuteUser(ctx context.Context, by Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error) {
	username, err := s.resolveUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, err
	}
	if _, err := s.CreateModerationAction(ctx, by, models.CreateModerationActionRequest{
		UserID:     userID,
		Username:   username,
		ActionType: models.ActionUnmute,
		Reason:     req.Reason,
	}); err != nil {
		return nil, err
	}

	muted := false
	return s.UpdateUserModerationStatus(ctx, userID, models.ModerationStatusPatch{IsMuted: &muted, ClearMuteExpiry: true})
}

func (s *ChatService) UnbanUser(ctx context.Context, by Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.UserModerationStatus, error) {
	username, err := s.resolveUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, err
	}
	if _, err := s.CreateModerationAction(ctx, by, models.CreateModerationActionRequest{
		UserID:     userID,
		Username:   username,
		ActionType: models.ActionUnban,
		Reason:     req.Reason,
	}); err != nil {
		return nil, err
	}

	banned := false
	return s.UpdateUserModerationStatus(ctx, userID, models.ModerationStatusPatch{IsBanned: &banned})
}

// WarnUser records a warning without restricting the user
func (s *ChatService) WarnUser(ctx context.Context, by Moderator, userID uuid.UUID, req models.ModerateUserRequest) (*models.ModerationAction, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason is required")
	}
	username, err := s.resolveUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, err
	}
	return s.CreateModerationAction(ctx, by, models.CreateModerationActionRequest{
		UserID:     userID,
		Username:   username,
		ActionType: models.ActionWarning,
		Reason:     req.Reason,
	})
}

// LiftExpiredMutes clears mutes whose expiry has passed
func (s *ChatService) LiftExpiredMutes(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredMutes(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, st := range expired {
		s.clearMute(ctx, st.UserID)
	}
	return len(expired), nil
}

// GetChatSettings returns the stored settings or the defaults
func (s *ChatService) GetChatSettings(ctx context.Context) (*models.ChatSettings, error) {
	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		d := models.DefaultChatSettings()
		return &d, nil
	}
	return settings, err
}

// UpdateChatSettings replaces the whole settings record
func (s *ChatService) UpdateChatSettings(ctx context.Context, settings models.ChatSettings) (*models.ChatSettings, error) {
	if settings.BannedKeywords == nil {
		settings.BannedKeywords = []string{}
	}
	if settings.AutoDeleteKeywords == nil {
		settings.AutoDeleteKeywords = []string{}
	}
	if err := settings.Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, apperr.WriteFailed("update chat settings", err)
	}

	if err := s.bus.Publish(ctx, events.TopicChatSettings, settings); err != nil {
		s.log.WithError(err).Warn("failed to publish chat settings")
	}
	return &settings, nil
}
