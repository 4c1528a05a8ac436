package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/handler"
	"github.com/stemsi/exam-conduct/internal/middleware"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/service"
)

type stubValidator map[string]*service.Claims

func (s stubValidator) ValidateToken(tokenStr string) (*service.Claims, error) {
	if c, ok := s[tokenStr]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

// exhaustedCounter reports every key as far over any limit.
type exhaustedCounter struct{ keys []string }

func (e *exhaustedCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	e.keys = append(e.keys, key)
	return 1 << 20, nil
}

func newTestRouter(counter middleware.WindowCounter) *gin.Engine {
	tokens := stubValidator{
		"student": {TokenType: service.TokenTypeStudent, UserID: 7},
		"admin":   {TokenType: service.TokenTypeAdmin, UserID: 1, Permissions: []string{string(model.PermissionExamsConduct)}},
	}
	limiter := middleware.NewRateLimiter(counter, "assembly", 10, time.Minute, zerolog.Nop())
	handlers := &Handlers{
		Session: handler.NewSessionHandler(nil, zerolog.Nop()),
	}
	cfg := &config.Config{GinMode: gin.TestMode, RequestTimeout: time.Second}
	return SetupRouter(tokens, limiter, handlers, cfg, zerolog.Nop())
}

func do(r *gin.Engine, method, target, token string) int {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestSessionStartsAreNeverRateLimited(t *testing.T) {
	counter := &exhaustedCounter{}
	r := newTestRouter(counter)

	// An invalid id stops in the handler, so any 429 could only come from
	// middleware in front of it.
	for i := 1; i <= 100; i++ {
		if code := do(r, http.MethodPost, "/api/v1/student/student-exams/abc/sessions", "student"); code != http.StatusBadRequest {
			t.Fatalf("session start %d: status = %d, want 400", i, code)
		}
	}
	for _, k := range counter.keys {
		if strings.Contains(k, "user:7") {
			t.Fatalf("session start consulted the rate limiter: %s", k)
		}
	}
}

func TestAssemblyRoutesAreRateLimited(t *testing.T) {
	routes := []string{
		"/api/v1/admin/exams/0b7c9a4e-3f0e-4c2a-9d4e-1d2f3a4b5c6d/student-exams/generate",
		"/api/v1/admin/exams/0b7c9a4e-3f0e-4c2a-9d4e-1d2f3a4b5c6d/student-exams/generate-missing",
		"/api/v1/admin/exams/0b7c9a4e-3f0e-4c2a-9d4e-1d2f3a4b5c6d/student-exams/users/5/generate",
		"/api/v1/admin/exams/0b7c9a4e-3f0e-4c2a-9d4e-1d2f3a4b5c6d/test-runs",
	}

	for _, target := range routes {
		t.Run(target, func(t *testing.T) {
			counter := &exhaustedCounter{}
			if code := do(newTestRouter(counter), http.MethodPost, target, "admin"); code != http.StatusTooManyRequests {
				t.Fatalf("status = %d, want 429", code)
			}
			if len(counter.keys) != 1 || counter.keys[0] != "ratelimit:assembly:user:1" {
				t.Fatalf("counter keys = %v", counter.keys)
			}
		})
	}
}
