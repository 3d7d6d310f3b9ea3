package models

import "github.com/google/uuid"

// WebSocket event types
const (
	EventChatSend       = "chat.send"
	EventChatMessage    = "chat.message"
	EventChatDeleted    = "chat.deleted"
	EventChatSettings   = "chat.settings"
	EventStreamActive   = "stream.active"
	EventQuizActive     = "quiz.active"
	EventSessionUpdated = "session.updated"
	EventError          = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type WSChatSendPayload struct {
	Message  string     `json:"message"`
	StreamID *uuid.UUID `json:"stream_id,omitempty"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
