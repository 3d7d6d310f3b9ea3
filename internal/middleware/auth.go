package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/models"
)

const (
	ctxUserID    = "user_id"
	ctxIdentity  = "identity"
	ctxIsAdmin   = "is_admin"
	ctxSessionID = "session_id"
)

// SessionChecker reports whether a session is still live
type SessionChecker interface {
	SessionExists(ctx context.Context, sessionID string) (bool, error)
}

// ProfileGetter loads the caller's profile for role checks
type ProfileGetter interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
}

// TokenFromRequest reads a bearer token from the Authorization header or
// the token query parameter (used by WebSocket clients).
func TokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	token := c.Query("token")
	return token, token != ""
}

// AuthMiddleware validates the access token and its session
func AuthMiddleware(jwtService *auth.JWTService, sessions SessionChecker, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := TokenFromRequest(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		live, err := sessions.SessionExists(c.Request.Context(), claims.SessionID)
		if err != nil {
			log.WithError(err).Error("session lookup failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
			c.Abort()
			return
		}
		if !live {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session has ended"})
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxSessionID, claims.SessionID)
		c.Set(ctxIdentity, &models.Identity{
			UserID:    claims.UserID,
			Email:     claims.Email,
			SessionID: claims.SessionID,
		})

		c.Next()
	}
}

// AdminMiddleware lets only profiles with the admin role through. It must run
// after AuthMiddleware.
func AdminMiddleware(profiles ProfileGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity(c)
		if id == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			c.Abort()
			return
		}

		profile, err := profiles.Profile(c.Request.Context(), id.UserID)
		if err != nil || !profile.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Set(ctxIsAdmin, true)
		c.Next()
	}
}

// Identity returns the authenticated caller, or nil
func Identity(c *gin.Context) *models.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*models.Identity)
	return id
}

// IsAdmin reports whether AdminMiddleware admitted the request
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}
