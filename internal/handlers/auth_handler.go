package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

type AuthHandler struct {
	identity *services.IdentityService
	log      *logrus.Logger
}

func NewAuthHandler(identity *services.IdentityService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		log:      log,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.identity.SignUp(c.Request.Context(), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.identity.SignIn(c.Request.Context(), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes the caller's session
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.identity.Logout(c.Request.Context(), middleware.Identity(c)); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestPasswordReset always answers 202 so callers cannot discover which emails exist
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.identity.ResetPassword(c.Request.Context(), req.Email); err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "If the email is registered, a reset link has been sent"})
}

func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req models.ConfirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.identity.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.identity.ChangePassword(c.Request.Context(), middleware.Identity(c), req.NewPassword); err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(c *gin.Context) {
	id := middleware.Identity(c)
	if id == nil {
		RespondError(c, h.log, apperr.ErrNotAuthenticated)
		return
	}

	profile, err := h.identity.Profile(c.Request.Context(), id.UserID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.identity.UpdateUserProfile(c.Request.Context(), middleware.Identity(c), req.Username, req.Email)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
