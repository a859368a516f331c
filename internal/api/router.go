package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/api/handlers"
	"github.com/parallax/reboot-hackathon-2025/internal/api/middleware"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/email"
	"github.com/parallax/reboot-hackathon-2025/internal/logging"
	"github.com/parallax/reboot-hackathon-2025/internal/metrics"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/storage"
	"github.com/parallax/reboot-hackathon-2025/internal/tasks"
)

// Dependencies are the services the public API is built from.
type Dependencies struct {
	TaskClient tasks.IAsynqClient
	Users      services.IUserService
	Items      services.IItemService
	Offers     services.IOfferService
	Tags       services.ITagService
	Storage    storage.IS3Storage
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the
// rate limiter's cleanup loop.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg)

	// Order matters: identity must be known before rate limiting.
	r.Use(logging.GinLogger(), gin.Recovery(), metrics.GinMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))
	r.Use(rateLimiter.Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, deps.TaskClient, deps.Offers, deps.Items, deps.Users, deps.Storage)
	restItemHandler := handlers.NewRestItemHandler(deps.Items, deps.Users, deps.Offers)
	restTagHandler := handlers.NewRestTagHandler(deps.Tags)
	restUserHandler := handlers.NewRestUserHandler(deps.Users, deps.Items)

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)

		v1.GET("/tag", restTagHandler.ListTags)

		v1.GET("/item/browse", restItemHandler.BrowseItems)
		v1.GET("/item/:id", restItemHandler.GetItemByID)

		v1.GET("/user/:id", restUserHandler.GetUserByID)
		v1.GET("/user/:id/item", restItemHandler.ListUserItems)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/item/:id/offer", restItemHandler.ListItemOffers)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine: shutdown,
// captured test emails and metrics.
func SetupServiceRouter(cfg *config.Config, rdb redis.Cmdable, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(), gin.Recovery())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info().Msg("Received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Warn().Msg("Shutdown already signalled")
			}
		case "getTestEmail":
			getTestEmail(c, rdb, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail polls for an email captured by the Redis sender. Arguments are
// [templateID, email].
func getTestEmail(c *gin.Context, rdb redis.Cmdable, rawArgs json.RawMessage) {
	var args []string
	if err := json.Unmarshal(rawArgs, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
		return
	}
	if rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis is not configured"})
		return
	}
	redisKey := email.MockEmailKey(args[1], args[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var emailJSON string
	found := false
	for i := 0; i < 10; i++ {
		data, err := rdb.Get(ctx, redisKey).Result()
		if err == nil {
			emailJSON = data
			found = true
			rdb.Del(ctx, redisKey)
			break
		}
		if !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Str("key", redisKey).Msg("Service API: failed to read test email")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
		return
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(emailJSON), &emailData); err != nil {
		log.Error().Err(err).Str("key", redisKey).Msg("Service API: stored email is not valid JSON")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}
