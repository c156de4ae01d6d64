package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"rpg-nexus/backend/pkg/errors"
	"rpg-nexus/backend/pkg/logger"
)

func newLimitedRouter(opts RateLimiterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.Use(NewRateLimiter(logger.New(logger.DefaultConfig()), opts).Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}

func TestRateLimiterHonorsConfiguredBurst(t *testing.T) {
	opts := DefaultRateLimiterOptions()
	opts.Limit = 0.0001
	opts.Burst = 1
	r := newLimitedRouter(opts)

	first := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	opts := DefaultRateLimiterOptions()
	opts.Limit = 0.0001
	opts.Burst = 3
	r := newLimitedRouter(opts)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	opts := DefaultRateLimiterOptions()
	opts.Limit = 0.0001
	opts.Burst = 1
	opts.ExpiryDuration = time.Hour
	opts.KeyFunc = func(c *gin.Context) string {
		return c.GetHeader("X-Client")
	}
	r := newLimitedRouter(opts)

	for _, who := range []string{"alice", "bob"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Client", who)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
