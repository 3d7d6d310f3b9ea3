package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
	"github.com/streamania/backend/internal/websocket"
)

// RouterDeps is everything the HTTP surface is built from
type RouterDeps struct {
	JWT            *auth.JWTService
	Sessions       middleware.SessionChecker
	Identity       *services.IdentityService
	Streams        *services.StreamService
	Quizzes        *services.QuizService
	Chat           *services.ChatService
	RateLimiter    *middleware.RateLimiter
	WS             *websocket.Handler
	AllowedOrigins []string
	Log            *logrus.Logger
}

// NewRouter registers every route on a fresh gin engine
func NewRouter(d RouterDeps) *gin.Engine {
	authHandler := NewAuthHandler(d.Identity, d.Log)
	userHandler := NewUserHandler(d.Identity, d.Log)
	streamHandler := NewStreamHandler(d.Streams, d.Log)
	quizHandler := NewQuizHandler(d.Quizzes, d.Log)
	chatHandler := NewChatHandler(d.Chat, d.Identity, d.Log)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log))
	router.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/password/reset", authHandler.RequestPasswordReset)
		authRoutes.POST("/password/confirm", authHandler.ConfirmPasswordReset)
	}

	if d.WS != nil {
		router.GET("/ws", d.WS.HandleWebSocket)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(d.JWT, d.Sessions, d.Log))
	{
		api.GET("/me", authHandler.GetMe)
		api.PUT("/me", authHandler.UpdateMe)
		api.POST("/logout", authHandler.Logout)
		api.POST("/password", authHandler.ChangePassword)

		api.GET("/streams", streamHandler.ListStreams)
		api.GET("/streams/active", streamHandler.GetActive)
		api.GET("/streams/:id/status", streamHandler.GetStatus)
		api.GET("/streams/:id/embed", streamHandler.GetEmbed)

		api.GET("/quizzes", quizHandler.ListQuizzes)
		api.GET("/quizzes/active", quizHandler.GetActive)
		api.POST("/quizzes/:id/answers", quizHandler.SubmitAnswer)

		api.GET("/chat/messages", chatHandler.GetMessages)
		send := []gin.HandlerFunc{chatHandler.SendMessage}
		if d.RateLimiter != nil {
			send = append([]gin.HandlerFunc{middleware.RateLimitMiddleware(d.RateLimiter, "chat_send")}, send...)
		}
		api.POST("/chat/messages", send...)
		api.GET("/chat/settings", chatHandler.GetSettings)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminMiddleware(d.Identity))
	{
		admin.GET("/users", userHandler.ListUsers)
		admin.POST("/users/:id/wallet", userHandler.TopUp)

		admin.POST("/streams", streamHandler.CreateStream)
		admin.DELETE("/streams/:id", streamHandler.DeleteStream)
		admin.POST("/streams/:id/activate", streamHandler.Activate)
		admin.POST("/streams/:id/deactivate", streamHandler.Deactivate)

		admin.GET("/quizzes", quizHandler.ListQuizzes)
		admin.POST("/quizzes", quizHandler.CreateQuiz)
		admin.POST("/quizzes/:id/activate", quizHandler.Activate)
		admin.POST("/quizzes/:id/deactivate", quizHandler.Deactivate)
		admin.GET("/quizzes/:id/answers", quizHandler.ListAnswers)

		admin.DELETE("/chat/messages/:id", chatHandler.DeleteMessage)
		admin.DELETE("/chat/users/:id/messages", chatHandler.BulkDeleteUserMessages)
		admin.GET("/chat/actions", chatHandler.ListActions)
		admin.POST("/chat/actions", chatHandler.CreateAction)
		admin.GET("/chat/users/:id/history", chatHandler.UserHistory)
		admin.GET("/chat/users/:id/status", chatHandler.GetStatus)
		admin.PATCH("/chat/users/:id/status", chatHandler.PatchStatus)
		admin.GET("/chat/restricted", chatHandler.ListRestricted)
		admin.POST("/chat/users/:id/mute", chatHandler.Moderate(models.ActionMute))
		admin.POST("/chat/users/:id/ban", chatHandler.Moderate(models.ActionBan))
		admin.POST("/chat/users/:id/unmute", chatHandler.Moderate(models.ActionUnmute))
		admin.POST("/chat/users/:id/unban", chatHandler.Moderate(models.ActionUnban))
		admin.POST("/chat/users/:id/warn", chatHandler.Moderate(models.ActionWarning))
		admin.PUT("/chat/settings", chatHandler.UpdateSettings)

		if d.WS != nil {
			admin.GET("/online-users", d.WS.GetOnlineUsers)
		}
	}

	return router
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}
