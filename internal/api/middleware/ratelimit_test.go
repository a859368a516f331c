package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax/reboot-hackathon-2025/internal/api/middleware"
	"github.com/parallax/reboot-hackathon-2025/internal/auth"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
)

const testSecret = "test-secret"

func setupTestEngine(t *testing.T, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg)
	r.Use(middleware.OptionalAuthMiddleware(testSecret))
	r.Use(rateLimiter.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func doGet(r *gin.Engine, remoteAddr, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterMiddleware_HardLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 1,
		RateLimitHardBucketSize: 1,
		RateLimitSoftRefillRate: 10,
		RateLimitSoftBucketSize: 10,
	}
	router := setupTestEngine(t, cfg)

	assert.Equal(t, http.StatusOK, doGet(router, "1.2.3.4:12345", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "1.2.3.4:12345", "").Code)

	// Other clients have their own buckets.
	assert.Equal(t, http.StatusOK, doGet(router, "4.3.2.1:12345", "").Code)
}

func TestRateLimiterMiddleware_SoftLimitAppliesToGuests(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 10,
		RateLimitHardBucketSize: 10,
		RateLimitSoftRefillRate: 1,
		RateLimitSoftBucketSize: 1,
	}
	router := setupTestEngine(t, cfg)

	assert.Equal(t, http.StatusOK, doGet(router, "5.6.7.8:12345", "").Code)

	w := doGet(router, "5.6.7.8:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/sign-in", body["redirect"])
}

func TestRateLimiterMiddleware_SignedInSkipsSoftLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 10,
		RateLimitHardBucketSize: 10,
		RateLimitSoftRefillRate: 1,
		RateLimitSoftBucketSize: 1,
	}
	router := setupTestEngine(t, cfg)

	token, err := auth.GenerateJWT(models.Identity{UserID: "U1"}, testSecret, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "9.1.2.3:12345", token).Code)
	}
}
