package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowRespectsBurst(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("client-a"), "第 %d 次请求应在突发容量内", i+1)
	}
	require.False(t, rl.Allow("client-a"))

	// 别的调用方有独立的桶
	require.True(t, rl.Allow("client-b"))
}

func TestRateLimitMiddleware_RejectsWith429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		router.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, do())
	require.Equal(t, http.StatusOK, do())
	require.Equal(t, http.StatusTooManyRequests, do())
}

func TestRateLimitMiddleware_KeysByUserWhenAuthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer rl.Stop()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
	})
	router.Use(RateLimitMiddleware(rl))
	router.GET("/data", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(userID string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/data", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		req.Header.Set("X-Test-User", userID)
		router.ServeHTTP(w, req)
		return w.Code
	}

	// 同一 IP 上的不同用户各有配额
	require.Equal(t, http.StatusOK, do("user-1"))
	require.Equal(t, http.StatusOK, do("user-2"))
	require.Equal(t, http.StatusTooManyRequests, do("user-1"))
}
