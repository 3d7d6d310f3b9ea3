package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/models"
)

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	jwtService *auth.JWTService
	sessions   middleware.SessionChecker
	chat       ChatSender
	limiter    Limiter
	upgrader   websocket.Upgrader
	log        *logrus.Logger
}

// NewHandler creates a new WebSocket handler. With no allowed origins every
// origin is accepted.
func NewHandler(
	hub *Hub,
	jwtService *auth.JWTService,
	sessions middleware.SessionChecker,
	chat ChatSender,
	limiter Limiter,
	allowedOrigins []string,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		sessions:   sessions,
		chat:       chat,
		limiter:    limiter,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		for _, pattern := range allowedOrigins {
			if matchOrigin(pattern, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket authenticates the token and session, then upgrades
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token, ok := middleware.TokenFromRequest(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	live, err := h.sessions.SessionExists(c.Request.Context(), claims.SessionID)
	if err != nil || !live {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session has ended"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	identity := &models.Identity{UserID: claims.UserID, Email: claims.Email, SessionID: claims.SessionID}
	client := NewClient(h.hub, conn, identity, h.chat, h.limiter, h.log)

	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetOnlineUsers returns the connected users (admin)
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	onlineUsers := h.hub.GetOnlineUsers()
	c.JSON(http.StatusOK, gin.H{
		"online_users": onlineUsers,
		"count":        len(onlineUsers),
	})
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == "*" || pattern == origin {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		patHost := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(originHost, patHost) {
			return true
		}
	}
	return false
}
