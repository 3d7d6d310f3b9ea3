package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/config"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/cache"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/handlers"
	"github.com/streamania/backend/internal/logger"
	"github.com/streamania/backend/internal/memstore"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/moderator"
	"github.com/streamania/backend/internal/repository"
	"github.com/streamania/backend/internal/services"
	"github.com/streamania/backend/internal/websocket"
	"github.com/streamania/backend/internal/youtube"
)

// backend is the storage side the services are built on
type backend struct {
	profiles    services.ProfileStore
	credentials auth.CredentialStore
	resetTokens auth.ResetTokenStore
	sessions    services.SessionStore
	streams     services.StreamStore
	quizzes     services.QuizStore
	chat        services.ChatStore
	bus         events.Bus
	limiter     middleware.ActionLimiter
	claims      moderator.Claimer
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var b *backend
	switch cfg.Storage.Driver {
	case "memory":
		b = memoryBackend()
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		b, err = postgresBackend(ctx, cfg, log)
		if err != nil {
			log.WithError(err).Fatal("failed to initialise storage")
		}
	}
	defer b.close()

	bus := b.bus
	if cfg.RabbitMQ.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log,
			events.TopicWalletUpdated, events.TopicQuizActive, events.TopicStreamActive)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, events stay in-process")
		} else {
			defer amqpPub.Close()
			bus = events.Mirror(bus, amqpPub)
		}
	}

	var video services.VideoStatusClient = youtube.Unconfigured{}
	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.NewClient(ctx, cfg.YouTube.APIKey)
		if err != nil {
			log.WithError(err).Fatal("failed to create YouTube client")
		}
		video = yt
	} else {
		log.Warn("YOUTUBE_API_KEY not set, stream status checks will fail")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	provider := auth.NewProvider(b.credentials, b.resetTokens, auth.LogMailer{Log: log},
		cfg.Auth.PasswordResetURL, cfg.Auth.ResetTokenTTL, log)

	identity := services.NewIdentityService(b.profiles, provider, b.sessions, jwtService, bus, cfg.Auth.AdminEmails, log)
	streams := services.NewStreamService(b.streams, video, bus, log)
	quizzes := services.NewQuizService(b.quizzes, b.profiles, bus, cfg.Quiz.PayoutMultiplier, log)
	chat := services.NewChatService(b.chat, b.profiles, bus, log)

	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitMessagesPerSec, b.limiter, log)
	go rateLimiter.Cleanup(ctx, 10*time.Minute)

	hub := websocket.NewHub(bus, log)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.WithError(err).Error("websocket hub stopped")
		}
	}()

	observer := services.NewSessionObserver(bus, b.profiles, log)
	observer.OnChange(hub.PushSession)
	go func() {
		if err := observer.Run(ctx); err != nil {
			log.WithError(err).Error("session observer stopped")
		}
	}()

	go services.NewStatusPoller(streams, cfg.YouTube.PollInterval, log).Run(ctx)

	bot := moderator.NewBot(bus, chat, log)
	if b.claims != nil {
		bot.WithClaimer(b.claims)
	}
	go func() {
		if err := bot.Run(ctx); err != nil {
			log.WithError(err).Error("moderation bot stopped")
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		JWT:            jwtService,
		Sessions:       b.sessions,
		Identity:       identity,
		Streams:        streams,
		Quizzes:        quizzes,
		Chat:           chat,
		RateLimiter:    rateLimiter,
		WS:             websocket.NewHandler(hub, jwtService, b.sessions, chat, rateLimiter, cfg.CORS.AllowedOrigins, log),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Server.Env}).Info("starting Streamania server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func memoryBackend() *backend {
	store := memstore.New()
	return &backend{
		profiles:    store,
		credentials: store,
		resetTokens: store,
		sessions:    store,
		streams:     store.Streams(),
		quizzes:     store.Quizzes(),
		chat:        store,
		bus:         events.NewMemoryBus(),
		close:       func() {},
	}
}

// postgresBackend keeps records in PostgreSQL and sessions, reset tokens,
// rate limits and events in Redis.
func postgresBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	log.Info("running database migrations")
	if err := database.RunMigrations(ctx, db.DB, log); err != nil {
		db.Close()
		return nil, err
	}

	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	users := repository.NewUserRepository(db)
	return &backend{
		profiles:    users,
		credentials: users,
		resetTokens: redis,
		sessions:    redis,
		streams:     repository.NewStreamRepository(db),
		quizzes:     repository.NewQuizRepository(db),
		chat:        repository.NewChatRepository(db),
		bus:         redis,
		limiter:     redis,
		claims:      redis,
		close: func() {
			redis.Close()
			db.Close()
		},
	}, nil
}
