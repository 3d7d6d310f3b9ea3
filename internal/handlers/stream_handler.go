package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

type StreamHandler struct {
	streams *services.StreamService
	log     *logrus.Logger
}

func NewStreamHandler(streams *services.StreamService, log *logrus.Logger) *StreamHandler {
	return &StreamHandler{streams: streams, log: log}
}

func views(list []models.StreamConfig) []models.StreamView {
	out := make([]models.StreamView, len(list))
	for i, st := range list {
		out[i] = services.View(st)
	}
	return out
}

// ListStreams returns all configured streams, newest first
func (h *StreamHandler) ListStreams(c *gin.Context) {
	list, err := h.streams.ListAll(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, views(list))
}

// GetActive returns the active stream or null
func (h *StreamHandler) GetActive(c *gin.Context) {
	st, err := h.streams.Active(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	if st == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, services.View(*st))
}

func (h *StreamHandler) GetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.streams.CheckStatus(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StreamHandler) GetEmbed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	st, err := h.streams.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"embed_url": st.EmbedURL()})
}

func (h *StreamHandler) CreateStream(c *gin.Context) {
	var req models.CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.streams.Create(c.Request.Context(), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, services.View(*st))
}

func (h *StreamHandler) DeleteStream(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.streams.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) Activate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	st, err := h.streams.SetActive(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, services.View(*st))
}

func (h *StreamHandler) Deactivate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	st, err := h.streams.Deactivate(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, services.View(*st))
}
