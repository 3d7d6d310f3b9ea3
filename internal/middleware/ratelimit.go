package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ActionLimiter is a limiter shared between instances (cache.RedisClient)
type ActionLimiter interface {
	AllowAction(ctx context.Context, userID uuid.UUID, action string, rate int, burst int) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits per-user request rates. It asks the shared limiter
// first and falls back to a local token bucket when that is unset or fails.
type RateLimiter struct {
	limiters map[uuid.UUID]*limiterEntry
	mu       sync.Mutex
	rps      int
	burst    int
	shared   ActionLimiter
	log      *logrus.Logger
}

func NewRateLimiter(rps int, shared ActionLimiter, log *logrus.Logger) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	return &RateLimiter{
		limiters: make(map[uuid.UUID]*limiterEntry),
		rps:      rps,
		burst:    rps * 2,
		shared:   shared,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(userID uuid.UUID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[userID]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.limiters[userID] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// Allow reports whether userID may perform action now
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID, action string) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowAction(ctx, userID, action, rl.rps, rl.burst)
		if err == nil {
			return ok
		}
		rl.log.WithError(err).Warn("shared rate limiter failed, using local limiter")
	}
	return rl.getLimiter(userID).Allow()
}

// Cleanup drops limiters idle for longer than maxIdle until ctx is cancelled
func (rl *RateLimiter) Cleanup(ctx context.Context, maxIdle time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune(time.Now().Add(-maxIdle))
		}
	}
}

func (rl *RateLimiter) prune(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
		}
	}
}

// RateLimitMiddleware limits requests per user
func RateLimitMiddleware(rl *RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get(ctxUserID)
		if !exists {
			c.Next()
			return
		}

		uid, ok := userID.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid, action) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
