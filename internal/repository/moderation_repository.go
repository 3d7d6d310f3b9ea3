package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/models"
)

// settingsRowID keys the single chat settings row
const settingsRowID = "global"

type ModerationRepository struct {
	db *database.DB
}

func NewModerationRepository(db *database.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// ChatRepository is the complete chat store: messages plus moderation
type ChatRepository struct {
	*MessageRepository
	*ModerationRepository
}

func NewChatRepository(db *database.DB) *ChatRepository {
	return &ChatRepository{
		MessageRepository:    NewMessageRepository(db),
		ModerationRepository: NewModerationRepository(db),
	}
}

const actionColumns = `id, user_id, username, action_type, reason, duration_minutes, moderator_id, moderator_username, created_at, expires_at`

// CreateAction appends to the moderation log
func (r *ModerationRepository) CreateAction(ctx context.Context, a *models.ModerationAction) error {
	query := `
		INSERT INTO chat_moderation_actions (id, user_id, username, action_type, reason, duration_minutes, moderator_id, moderator_username, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID,
		a.UserID,
		a.Username,
		a.ActionType,
		a.Reason,
		a.Duration,
		a.ModeratorID,
		a.ModeratorUsername,
		a.ExpiresAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert moderation action: %w", err)
	}
	return nil
}

// ListActions returns the log newest first; a nil userID lists everyone
func (r *ModerationRepository) ListActions(ctx context.Context, userID *uuid.UUID, limit int) ([]models.ModerationAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + actionColumns + `
		FROM chat_moderation_actions
		WHERE ($1::uuid IS NULL OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation actions: %w", err)
	}
	defer rows.Close()

	res := []models.ModerationAction{}
	for rows.Next() {
		var a models.ModerationAction
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Username,
			&a.ActionType,
			&a.Reason,
			&a.Duration,
			&a.ModeratorID,
			&a.ModeratorUsername,
			&a.CreatedAt,
			&a.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan moderation action: %w", err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const statusColumns = `user_id, username, is_muted, is_banned, mute_expires_at, last_message_at, updated_at`

func scanStatus(row rowScanner) (*models.UserModerationStatus, error) {
	s := &models.UserModerationStatus{}
	err := row.Scan(&s.UserID, &s.Username, &s.IsMuted, &s.IsBanned, &s.MuteExpiresAt, &s.LastMessageAt, &s.UpdatedAt)
	return s, err
}

func (r *ModerationRepository) GetStatus(ctx context.Context, userID uuid.UUID) (*models.UserModerationStatus, error) {
	s, err := scanStatus(r.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM user_moderation_status WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, "moderation status")
	}
	return s, nil
}

// PatchStatus upserts the status row, changing only the fields the patch sets
func (r *ModerationRepository) PatchStatus(ctx context.Context, userID uuid.UUID, patch models.ModerationStatusPatch) (*models.UserModerationStatus, error) {
	query := `
		INSERT INTO user_moderation_status AS s (user_id, username, is_muted, is_banned, mute_expires_at, last_message_at, updated_at)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::boolean, false), COALESCE($4::boolean, false),
		        CASE WHEN $7::boolean THEN NULL ELSE $5::timestamptz END, $6::timestamptz, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = COALESCE($2::text, s.username),
			is_muted = COALESCE($3::boolean, s.is_muted),
			is_banned = COALESCE($4::boolean, s.is_banned),
			mute_expires_at = CASE WHEN $7::boolean THEN NULL ELSE COALESCE($5::timestamptz, s.mute_expires_at) END,
			last_message_at = COALESCE($6::timestamptz, s.last_message_at),
			updated_at = NOW()
		RETURNING ` + statusColumns

	s, err := scanStatus(r.db.QueryRowContext(ctx, query,
		userID,
		patch.Username,
		patch.IsMuted,
		patch.IsBanned,
		patch.MuteExpiresAt,
		patch.LastMessageAt,
		patch.ClearMuteExpiry,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update moderation status: %w", err)
	}
	return s, nil
}

func (r *ModerationRepository) listStatuses(ctx context.Context, query string, args ...any) ([]models.UserModerationStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation status: %w", err)
	}
	defer rows.Close()

	res := []models.UserModerationStatus{}
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan moderation status: %w", err)
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// ListRestricted returns muted or banned users, most recently changed first
func (r *ModerationRepository) ListRestricted(ctx context.Context) ([]models.UserModerationStatus, error) {
	return r.listStatuses(ctx,
		`SELECT `+statusColumns+` FROM user_moderation_status WHERE is_muted OR is_banned ORDER BY updated_at DESC`)
}

func (r *ModerationRepository) ListExpiredMutes(ctx context.Context, now time.Time) ([]models.UserModerationStatus, error) {
	return r.listStatuses(ctx,
		`SELECT `+statusColumns+` FROM user_moderation_status WHERE is_muted AND mute_expires_at IS NOT NULL AND mute_expires_at <= $1`,
		now)
}

func (r *ModerationRepository) GetSettings(ctx context.Context) (*models.ChatSettings, error) {
	s := &models.ChatSettings{}
	err := r.db.QueryRowContext(ctx, `
		SELECT slow_mode, slow_mode_delay, banned_keywords, auto_delete_keywords
		FROM chat_settings WHERE id = $1
	`, settingsRowID).Scan(
		&s.SlowMode,
		&s.SlowModeDelay,
		pq.Array(&s.BannedKeywords),
		pq.Array(&s.AutoDeleteKeywords),
	)
	if err != nil {
		return nil, notFound(err, "chat settings")
	}
	if s.BannedKeywords == nil {
		s.BannedKeywords = []string{}
	}
	if s.AutoDeleteKeywords == nil {
		s.AutoDeleteKeywords = []string{}
	}
	return s, nil
}

func (r *ModerationRepository) SaveSettings(ctx context.Context, s models.ChatSettings) error {
	query := `
		INSERT INTO chat_settings (id, slow_mode, slow_mode_delay, banned_keywords, auto_delete_keywords, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			slow_mode = EXCLUDED.slow_mode,
			slow_mode_delay = EXCLUDED.slow_mode_delay,
			banned_keywords = EXCLUDED.banned_keywords,
			auto_delete_keywords = EXCLUDED.auto_delete_keywords,
			updated_at = NOW()
	`
	banned := s.BannedKeywords
	if banned == nil {
		banned = []string{}
	}
	autoDelete := s.AutoDeleteKeywords
	if autoDelete == nil {
		autoDelete = []string{}
	}
	if _, err := r.db.ExecContext(ctx, query,
		settingsRowID,
		s.SlowMode,
		s.SlowModeDelay,
		pq.Array(banned),
		pq.Array(autoDelete),
	); err != nil {
		return fmt.Errorf("failed to save chat settings: %w", err)
	}
	return nil
}
