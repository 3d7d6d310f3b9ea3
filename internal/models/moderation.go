package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ModerationActionType string

const (
	ActionMute    ModerationActionType = "mute"
	ActionBan     ModerationActionType = "ban"
	ActionWarning ModerationActionType = "warning"
	ActionUnmute  ModerationActionType = "unmute"
	ActionUnban   ModerationActionType = "unban"
	// recorded by the moderation bot
	ActionAutoDelete ModerationActionType = "auto_delete"
)

func (a ModerationActionType) Valid() bool {
	switch a {
	case ActionMute, ActionBan, ActionWarning, ActionUnmute, ActionUnban, ActionAutoDelete:
		return true
	}
	return false
}

// ModerationAction is one entry of the append-only moderation log
type ModerationAction struct {
	ID                uuid.UUID            `json:"id" db:"id"`
	UserID            uuid.UUID            `json:"user_id" db:"user_id"`
	Username          string               `json:"username" db:"username"`
	ActionType        ModerationActionType `json:"action_type" db:"action_type"`
	Reason            string               `json:"reason" db:"reason"`
	Duration          *int                 `json:"duration,omitempty" db:"duration_minutes"` // minutes
	ModeratorID       uuid.UUID            `json:"moderator_id" db:"moderator_id"`
	ModeratorUsername string               `json:"moderator_username" db:"moderator_username"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty" db:"expires_at"`
}

// UserModerationStatus is the per-user projection of moderation actions
type UserModerationStatus struct {
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	Username      string     `json:"username" db:"username"`
	IsMuted       bool       `json:"is_muted" db:"is_muted"`
	IsBanned      bool       `json:"is_banned" db:"is_banned"`
	MuteExpiresAt *time.Time `json:"mute_expires_at,omitempty" db:"mute_expires_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// MutedAt reports whether the mute is still in force at t. A mute without an
// expiry lasts until it is lifted.
func (s *UserModerationStatus) MutedAt(t time.Time) bool {
	if s == nil || !s.IsMuted {
		return false
	}
	return s.MuteExpiresAt == nil || t.Before(*s.MuteExpiresAt)
}

// ModerationStatusPatch updates only the fields that are set
type ModerationStatusPatch struct {
	Username        *string    `json:"username,omitempty"`
	IsMuted         *bool      `json:"is_muted,omitempty"`
	IsBanned        *bool      `json:"is_banned,omitempty"`
	MuteExpiresAt   *time.Time `json:"mute_expires_at,omitempty"`
	ClearMuteExpiry bool       `json:"clear_mute_expiry,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

// Apply merges the patch into s
func (p ModerationStatusPatch) Apply(s *UserModerationStatus) {
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.IsMuted != nil {
		s.IsMuted = *p.IsMuted
	}
	if p.IsBanned != nil {
		s.IsBanned = *p.IsBanned
	}
	if p.ClearMuteExpiry {
		s.MuteExpiresAt = nil
	} else if p.MuteExpiresAt != nil {
		t := *p.MuteExpiresAt
		s.MuteExpiresAt = &t
	}
	if p.LastMessageAt != nil {
		t := *p.LastMessageAt
		s.LastMessageAt = &t
	}
}

// DefaultMuteMinutes applies when a mute request names no duration
const DefaultMuteMinutes = 10

// BotUsername is recorded as moderator for automatic actions
const BotUsername = "StreamaniaBot"

const (
	DefaultSlowModeDelay = 10
	MaxSlowModeDelay     = 300
)

type ChatSettings struct {
	SlowMode           bool     `json:"slow_mode" db:"slow_mode"`
	SlowModeDelay      int      `json:"slow_mode_delay" db:"slow_mode_delay"` // seconds
	BannedKeywords     []string `json:"banned_keywords" db:"banned_keywords"`
	AutoDeleteKeywords []string `json:"auto_delete_keywords" db:"auto_delete_keywords"`
}

func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		SlowMode:           false,
		SlowModeDelay:      DefaultSlowModeDelay,
		BannedKeywords:     []string{},
		AutoDeleteKeywords: []string{},
	}
}

func (s *ChatSettings) Validate() error {
	if s.SlowModeDelay < 1 || s.SlowModeDelay > MaxSlowModeDelay {
		return fmt.Errorf("slow mode delay must be between 1 and %d seconds", MaxSlowModeDelay)
	}
	for _, k := range append(append([]string{}, s.BannedKeywords...), s.AutoDeleteKeywords...) {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("keywords must not be empty")
		}
	}
	return nil
}

// MatchKeyword returns the first keyword contained in text, ignoring case
func MatchKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}

type ModerateUserRequest struct {
	Username        string `json:"username"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CreateModerationActionRequest struct {
	UserID     uuid.UUID            `json:"user_id" binding:"required"`
	Username   string               `json:"username" binding:"required"`
	ActionType ModerationActionType `json:"action_type" binding:"required"`
	Reason     string               `json:"reason"`
	Duration   *int                 `json:"duration,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
}
