package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/parallax/reboot-hackathon-2025/internal/api"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:               "testsecret",
		AllowedOrigins:          []string{"*"},
		RateLimitSoftBucketSize: 100,
		RateLimitSoftRefillRate: 100,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 100,
	}
}

func postService(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_Ping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := api.SetupRouter(ctx, testConfig(), api.Dependencies{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/ping", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestSetupRouter_ItemOffersRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := api.SetupRouter(ctx, testConfig(), api.Dependencies{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/item/0000000001/offer", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/sign-in"`)
}

func TestServiceRouter_Shutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := api.SetupServiceRouter(testConfig(), nil, shutdown)

	w := postService(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown was not signalled")
	}

	// A second request must not block on the full channel.
	shutdown <- struct{}{}
	w = postService(r, `{"method":"shutdown"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRouter_GetTestEmail_BadArguments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := api.SetupServiceRouter(testConfig(), nil, make(chan struct{}, 1))

	w := postService(r, `{"method":"getTestEmail","arguments":["offer_received"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postService(r, `{"method":"getTestEmail","arguments":["offer_received","a@example.com"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServiceRouter_UnknownMethodAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := api.SetupServiceRouter(testConfig(), nil, make(chan struct{}, 1))

	w := postService(r, `{"method":"reindex"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
