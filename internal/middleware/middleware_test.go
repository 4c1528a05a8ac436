package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
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

var tokens = stubValidator{
	"student": {TokenType: service.TokenTypeStudent, UserID: 7},
	"proctor": {TokenType: service.TokenTypeAdmin, UserID: 1, Permissions: []string{string(model.PermissionExamsMonitor)}},
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handlers []gin.HandlerFunc, target, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.GET("/x", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetClaims(c).UserID})
	})...)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireTokenType(t *testing.T) {
	tests := []struct {
		name       string
		handler    gin.HandlerFunc
		target     string
		header     string
		wantStatus int
	}{
		{"student token on student route", RequireStudentJWT(tokens), "/x", "Bearer student", http.StatusOK},
		{"lowercase scheme", RequireStudentJWT(tokens), "/x", "bearer student", http.StatusOK},
		{"missing token", RequireStudentJWT(tokens), "/x", "", http.StatusUnauthorized},
		{"unknown token", RequireStudentJWT(tokens), "/x", "Bearer nope", http.StatusUnauthorized},
		{"admin token on student route", RequireStudentJWT(tokens), "/x", "Bearer proctor", http.StatusForbidden},
		{"student token on admin route", RequireAdminJWT(tokens), "/x", "Bearer student", http.StatusForbidden},
		{"admin token from query", RequireAdminJWT(tokens), "/x?token=proctor", "", http.StatusOK},
		{"ws auth from query", RequireStudentWSAuth(tokens), "/x?token=student", "", http.StatusOK},
		{"ws auth ignores header", RequireStudentWSAuth(tokens), "/x", "Bearer student", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, []gin.HandlerFunc{tt.handler}, tt.target, tt.header)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	auth := RequireAdminJWT(tokens)

	w := serve(t, []gin.HandlerFunc{auth, RequirePermission(model.PermissionExamsMonitor)}, "/x", "Bearer proctor")
	if w.Code != http.StatusOK {
		t.Fatalf("granted permission: status = %d", w.Code)
	}

	w = serve(t, []gin.HandlerFunc{auth, RequirePermission(model.PermissionExamsDelete)}, "/x", "Bearer proctor")
	if w.Code != http.StatusForbidden {
		t.Fatalf("missing permission: status = %d", w.Code)
	}

	w = serve(t, []gin.HandlerFunc{auth, RequirePermission(model.PermissionExamsDelete, model.PermissionExamsMonitor)}, "/x", "Bearer proctor")
	if w.Code != http.StatusOK {
		t.Fatalf("any of several permissions: status = %d", w.Code)
	}
}

type memCounter struct {
	hits map[string]int64
	err  error
}

func (m *memCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.hits[key]++
	return m.hits[key], nil
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{hits: map[string]int64{}}
	limiter := NewRateLimiter(counter, "assembly", 2, time.Minute, zerolog.Nop())
	handlers := []gin.HandlerFunc{RequireAdminJWT(tokens), limiter.Middleware()}

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		w := serve(t, handlers, "/x", "Bearer proctor")
		if w.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
	if _, ok := counter.hits["ratelimit:assembly:user:1"]; !ok {
		t.Fatalf("limit not keyed by user: %v", counter.hits)
	}

	counter.err = errors.New("redis down")
	if w := serve(t, handlers, "/x", "Bearer proctor"); w.Code != http.StatusOK {
		t.Fatalf("counter failure should let requests through, got %d", w.Code)
	}
}
