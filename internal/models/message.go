package models

import (
	"time"

	"github.com/google/uuid"
)

const MaxChatMessageLength = 500

type ChatMessage struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Username  string     `json:"username" db:"username"`
	Message   string     `json:"message" db:"message"`
	Timestamp time.Time  `json:"timestamp" db:"created_at"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	StreamID  *uuid.UUID `json:"stream_id,omitempty" db:"stream_id"`
}

type SendMessageRequest struct {
	Message  string     `json:"message" binding:"required,max=500"`
	StreamID *uuid.UUID `json:"stream_id,omitempty"`
}

type GetMessagesRequest struct {
	StreamID string `form:"stream_id"`
	Limit    int    `form:"limit"`
}

// MessageDeleted is published when messages are hidden by moderation
type MessageDeleted struct {
	MessageIDs []uuid.UUID `json:"message_ids,omitempty"`
	UserID     *uuid.UUID  `json:"user_id,omitempty"`
}
