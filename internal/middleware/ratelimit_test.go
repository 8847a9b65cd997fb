package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docexam/docexam-backend/internal/response"
	"github.com/docexam/docexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limiterRouter(rl *RateLimiter, ownerID int) *gin.Engine {
	r := gin.New()
	r.POST("/limited", func(c *gin.Context) {
		if ownerID != 0 {
			c.Set(ContextKeyClaims, &service.Claims{OwnerID: ownerID, TokenType: service.TokenTypeOwner})
		}
		c.Next()
	}, rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/limited", nil))
	return w.Code
}

func TestRateLimiterExhaustsBucket(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	r := limiterRouter(rl, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestRateLimiterKeysByOwner(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	// Two owners behind the same client IP (httptest requests share one)
	// must not drain each other's bucket.
	first := limiterRouter(rl, 1)
	second := limiterRouter(rl, 2)

	assert.Equal(t, http.StatusOK, hit(first))
	assert.Equal(t, http.StatusOK, hit(second))
	assert.Equal(t, http.StatusTooManyRequests, hit(first))
}

func TestRateLimiterFallsBackToIPWithoutClaims(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	r := limiterRouter(rl, 0)

	assert.Equal(t, http.StatusOK, hit(r))
	assert.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestRateLimiterResponseCode(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	r := limiterRouter(rl, 1)
	hit(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/limited", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrRateLimitExceeded))
}
