package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

// UserHandler serves the admin user directory and wallet top-ups
type UserHandler struct {
	identity *services.IdentityService
	log      *logrus.Logger
}

func NewUserHandler(identity *services.IdentityService, log *logrus.Logger) *UserHandler {
	return &UserHandler{identity: identity, log: log}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.identity.GetAllUsers(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// TopUp credits a user's wallet; only positive amounts are accepted here
func (h *UserHandler) TopUp(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		RespondError(c, h.log, apperr.Validation("amount must be positive"))
		return
	}

	balance, err := h.identity.TopUpUserWallet(c.Request.Context(), userID, req.Amount)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.TopUpResponse{UserID: userID, Wallet: balance})
}
