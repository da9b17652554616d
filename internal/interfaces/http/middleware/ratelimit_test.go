package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubRateCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (c *stubRateCounter) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func newRateLimitRouter(counter *stubRateCounter, limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(counter, RateLimitConfig{
		Limit:  limit,
		Window: time.Minute,
	}, zap.NewNop()))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestRateLimit(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		counter := &stubRateCounter{counts: make(map[string]int64)}
		router := newRateLimitRouter(counter, 3)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("rejects requests over the limit", func(t *testing.T) {
		counter := &stubRateCounter{counts: make(map[string]int64)}
		router := newRateLimitRouter(counter, 2)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		counter := &stubRateCounter{counts: make(map[string]int64)}
		router := newRateLimitRouter(counter, 10)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("fails open when the counter is unavailable", func(t *testing.T) {
		counter := &stubRateCounter{counts: make(map[string]int64), err: errors.New("redis down")}
		router := newRateLimitRouter(counter, 1)

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("custom key function separates clients", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		counter := &stubRateCounter{counts: make(map[string]int64)}
		router := gin.New()
		router.Use(RateLimit(counter, RateLimitConfig{
			Limit:  1,
			Window: time.Minute,
			KeyFunc: func(c *gin.Context) string {
				return c.GetHeader("X-Client-ID")
			},
		}, zap.NewNop()))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		send := func(clientID string) int {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("X-Client-ID", clientID)
			router.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, send("client-a"))
		assert.Equal(t, http.StatusTooManyRequests, send("client-a"))
		assert.Equal(t, http.StatusOK, send("client-b"))
	})
}
