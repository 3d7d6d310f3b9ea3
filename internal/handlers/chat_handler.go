package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

type ChatHandler struct {
	chat     *services.ChatService
	identity *services.IdentityService
	log      *logrus.Logger
}

func NewChatHandler(chat *services.ChatService, identity *services.IdentityService, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, identity: identity, log: log}
}

// GetMessages returns visible messages, newest first
func (h *ChatHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var streamID *uuid.UUID
	if req.StreamID != "" {
		id, err := uuid.Parse(req.StreamID)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid stream_id")
			return
		}
		streamID = &id
	}

	messages, err := h.chat.GetMessages(c.Request.Context(), streamID, req.Limit)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage sends a new message (REST endpoint)
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), middleware.Identity(c), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) GetSettings(c *gin.Context) {
	settings, err := h.chat.GetChatSettings(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *ChatHandler) UpdateSettings(c *gin.Context) {
	var req models.ChatSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.chat.UpdateChatSettings(c.Request.Context(), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), id); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) BulkDeleteUserMessages(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	n, err := h.chat.BulkDeleteUserMessages(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// moderator resolves the calling admin for the audit log
func (h *ChatHandler) moderator(c *gin.Context) (services.Moderator, error) {
	id := middleware.Identity(c)
	if id == nil {
		return services.Moderator{}, apperr.ErrNotAuthenticated
	}
	profile, err := h.identity.Profile(c.Request.Context(), id.UserID)
	if err != nil {
		return services.Moderator{}, err
	}
	return services.Moderator{ID: profile.ID, Username: profile.Username}, nil
}

func (h *ChatHandler) ListActions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	actions, err := h.chat.ListModerationActions(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, actions)
}

func (h *ChatHandler) CreateAction(c *gin.Context) {
	var req models.CreateModerationActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	by, err := h.moderator(c)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	action, err := h.chat.CreateModerationAction(c.Request.Context(), by, req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, action)
}

func (h *ChatHandler) UserHistory(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	actions, err := h.chat.GetUserModerationHistory(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, actions)
}

func (h *ChatHandler) GetStatus(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	st, err := h.chat.GetUserModerationStatus(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// PatchStatus merges the given fields into the user's status
func (h *ChatHandler) PatchStatus(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var patch models.ModerationStatusPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.chat.UpdateUserModerationStatus(c.Request.Context(), userID, patch)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *ChatHandler) ListRestricted(c *gin.Context) {
	list, err := h.chat.ListRestrictedUsers(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type moderateFunc func(ctx context.Context, by services.Moderator, userID uuid.UUID, req models.ModerateUserRequest) (any, error)

// Moderate builds the handler for one user moderation action
func (h *ChatHandler) Moderate(action models.ModerationActionType) gin.HandlerFunc {
	var run moderateFunc
	switch action {
	case models.ActionMute:
		run = func(ctx context.Context, by services.Moderator, id uuid.UUID, req models.ModerateUserRequest) (any, error) {
			return h.chat.MuteUser(ctx, by, id, req)
		}
	case models.ActionBan:
		run = func(ctx context.Context, by services.Moderator, id uuid.UUID, req models.ModerateUserRequest) (any, error) {
			return h.chat.BanUser(ctx, by, id, req)
		}
	case models.ActionUnmute:
		run = func(ctx context.Context, by services.Moderator, id uuid.UUID, req models.ModerateUserRequest) (any, error) {
			return h.chat.UnmuteUser(ctx, by, id, req)
		}
	case models.ActionUnban:
		run = func(ctx context.Context, by services.Moderator, id uuid.UUID, req models.ModerateUserRequest) (any, error) {
			return h.chat.UnbanUser(ctx, by, id, req)
		}
	case models.ActionWarning:
		run = func(ctx context.Context, by services.Moderator, id uuid.UUID, req models.ModerateUserRequest) (any, error) {
			return h.chat.WarnUser(ctx, by, id, req)
		}
	default:
		panic("handlers: no moderation handler for " + string(action))
	}

	return func(c *gin.Context) {
		userID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var req models.ModerateUserRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				ErrorResponse(c, http.StatusBadRequest, err.Error())
				return
			}
		}

		by, err := h.moderator(c)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}

		result, err := run(c.Request.Context(), by, userID, req)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
