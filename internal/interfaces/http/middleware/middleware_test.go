package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLimiter struct {
	allowed bool
	err     error
	limit   int
	keys    []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	s.limit = limit
	return s.allowed, s.err
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecoveryReturnsDetail(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"terjadi kesalahan internal"}`, w.Body.String())
}

func TestRequestIDPropagation(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		limiter  *stubLimiter
		wantCode int
	}{
		{"allowed", &stubLimiter{allowed: true}, http.StatusOK},
		{"denied", &stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter down fails open", &stubLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			cfg := RateLimitConfig{Enabled: true, RequestsPerSecond: 10, Burst: 5}
			r.POST("/predict", RateLimit(cfg, tt.limiter, func(c *gin.Context) string { return "k:" + c.ClientIP() }),
				func(c *gin.Context) { c.Status(http.StatusOK) })

			w := serve(r, httptest.NewRequest(http.MethodPost, "/predict", nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, 15, tt.limiter.limit)
			assert.Len(t, tt.limiter.keys, 1)
			if tt.wantCode == http.StatusTooManyRequests {
				assert.JSONEq(t, `{"detail":"terlalu banyak permintaan"}`, w.Body.String())
			}
		})
	}
}

func TestRateLimitDisabled(t *testing.T) {
	lim := &stubLimiter{}
	r := gin.New()
	r.GET("/", RateLimit(RateLimitConfig{Enabled: false}, lim, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, lim.keys)
}
