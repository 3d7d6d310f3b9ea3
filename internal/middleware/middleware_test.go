package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessions struct {
	live map[string]bool
	err  error
}

func (f fakeSessions) SessionExists(_ context.Context, id string) (bool, error) {
	return f.live[id], f.err
}

type fakeProfiles map[uuid.UUID]*models.UserProfile

func (f fakeProfiles) Profile(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func serve(r *gin.Engine, method, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 1)
	userID := uuid.New()
	token, err := jwtService.GenerateToken(userID, "viewer@example.com", "sess-1")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	foreign, _ := auth.NewJWTService("other-secret", 1).GenerateToken(userID, "viewer@example.com", "sess-1")

	tests := []struct {
		name     string
		header   string
		query    string
		sessions fakeSessions
		want     int
	}{
		{"missing token", "", "", fakeSessions{}, http.StatusUnauthorized},
		{"not bearer", "Basic abc", "", fakeSessions{}, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", fakeSessions{live: map[string]bool{"sess-1": true}}, http.StatusUnauthorized},
		{"ended session", "Bearer " + token, "", fakeSessions{live: map[string]bool{}}, http.StatusUnauthorized},
		{"store down", "Bearer " + token, "", fakeSessions{err: errors.New("redis down")}, http.StatusServiceUnavailable},
		{"valid", "Bearer " + token, "", fakeSessions{live: map[string]bool{"sess-1": true}}, http.StatusOK},
		{"query token", "", "?token=" + token, fakeSessions{live: map[string]bool{"sess-1": true}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			var got *models.Identity
			r.GET("/", AuthMiddleware(jwtService, tt.sessions, quietLog()), func(c *gin.Context) {
				got = Identity(c)
				c.Status(http.StatusOK)
			})

			w := serve(r, http.MethodGet, "/"+tt.query, tt.header)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && (got == nil || got.UserID != userID || got.SessionID != "sess-1") {
				t.Errorf("unexpected identity %+v", got)
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	admin, viewer := uuid.New(), uuid.New()
	profiles := fakeProfiles{
		admin:  {ID: admin, IsAdmin: true},
		viewer: {ID: viewer},
	}

	tests := []struct {
		name string
		id   *models.Identity
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer", &models.Identity{UserID: viewer}, http.StatusForbidden},
		{"unknown user", &models.Identity{UserID: uuid.New()}, http.StatusForbidden},
		{"admin", &models.Identity{UserID: admin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				if tt.id != nil {
					c.Set(ctxIdentity, tt.id)
				}
			}, AdminMiddleware(profiles), func(c *gin.Context) {
				if !IsAdmin(c) {
					t.Error("IsAdmin should be set after AdminMiddleware")
				}
				c.Status(http.StatusOK)
			})

			if w := serve(r, http.MethodGet, "/", ""); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

type fakeShared struct {
	allow bool
	err   error
	calls int
}

func (f *fakeShared) AllowAction(context.Context, uuid.UUID, string, int, int) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func TestRateLimiter_LocalBucket(t *testing.T) {
	rl := NewRateLimiter(1, nil, quietLog())
	ctx := context.Background()
	user := uuid.New()

	// burst is twice the rate
	for i := 0; i < 2; i++ {
		if !rl.Allow(ctx, user, "chat_send") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow(ctx, user, "chat_send") {
		t.Error("third immediate request should be limited")
	}
	if !rl.Allow(ctx, uuid.New(), "chat_send") {
		t.Error("limits are per user")
	}
}

func TestRateLimiter_SharedDecides(t *testing.T) {
	shared := &fakeShared{allow: false}
	rl := NewRateLimiter(5, shared, quietLog())

	if rl.Allow(context.Background(), uuid.New(), "chat_send") {
		t.Error("shared limiter denial should win")
	}
	if shared.calls != 1 {
		t.Errorf("expected one shared call, got %d", shared.calls)
	}
}

func TestRateLimiter_FallsBackWhenSharedFails(t *testing.T) {
	shared := &fakeShared{err: errors.New("redis down")}
	rl := NewRateLimiter(1, shared, quietLog())
	ctx := context.Background()
	user := uuid.New()

	allowed := 0
	for i := 0; i < 5; i++ {
		if rl.Allow(ctx, user, "chat_send") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("local fallback should allow the burst of 2, allowed %d", allowed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, nil, quietLog())
	user := uuid.New()

	r := gin.New()
	r.POST("/", func(c *gin.Context) { c.Set(ctxUserID, user) }, RateLimitMiddleware(rl, "chat_send"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, http.MethodPost, "/", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.streamania.tv"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.streamania.tv")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.streamania.tv" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not be allowed")
	}
}
