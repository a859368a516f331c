package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/parallax/reboot-hackathon-2025/internal/config"
)

const (
	cleanupInterval = 10 * time.Minute
	clientIdleTTL   = 30 * time.Minute
)

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware keeps two token buckets per client. Every request
// draws from the hard bucket; only guests also draw from the soft one.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	cfg     *config.Config
	now     func() time.Time
}

// NewRateLimiterMiddleware creates the limiter and starts evicting idle
// clients until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		now:     time.Now,
	}
	go rm.cleanupClients(ctx)
	return rm
}

func clientIdentifier(c *gin.Context) string {
	if identity, ok := IdentityFromContext(c); ok {
		return "user:" + identity.UserID
	}
	return "ip:" + c.ClientIP()
}

func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(rm.cfg.RateLimitSoftRefillRate), rm.cfg.RateLimitSoftBucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(rm.cfg.RateLimitHardRefillRate), rm.cfg.RateLimitHardBucketSize),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = rm.now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.evictIdle(); n > 0 {
				log.Debug().Int("removed", n).Msg("Rate limiter cleanup")
			}
		}
	}
}

func (rm *RateLimiterMiddleware) evictIdle() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	cutoff := rm.now().Add(-clientIdleTTL)
	for id, client := range rm.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the Gin middleware handler. OptionalAuthMiddleware must run first.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := clientIdentifier(c)
		limiter := rm.getClientLimiter(clientKey)

		if !limiter.hardLimiter.Allow() {
			log.Warn().Str("client", clientKey).Str("path", c.FullPath()).Msg("Hard rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Rate limit exceeded"})
			return
		}

		_, signedIn := IdentityFromContext(c)
		if !signedIn && !limiter.softLimiter.Allow() {
			log.Info().Str("client", clientKey).Str("path", c.FullPath()).Msg("Guest rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":  false,
				"error":    "Rate limit exceeded, sign in to continue",
				"redirect": SignInPath,
			})
			return
		}

		c.Next()
	}
}
