package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/auth"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyIdentity holds the caller's models.Identity.
	ContextKeyIdentity = "identity"
)

// SignInPath is where unauthenticated callers are sent.
const SignInPath = "/sign-in"

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextKeyUserID, claims.Subject)
	c.Set(ContextKeyIdentity, claims.Identity())
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok && identity.UserID != ""
}

// UnauthenticatedBody is the response for requests that need a signed-in caller.
func UnauthenticatedBody() gin.H {
	err := apperr.Unauthenticated()
	return gin.H{
		"success":  false,
		"error":    err.Message,
		"code":     string(err.Kind),
		"redirect": SignInPath,
	}
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, UnauthenticatedBody())
			return
		}

		claims, err := auth.ValidateJWT(token, jwtSecret)
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("Rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, UnauthenticatedBody())
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware records the caller when a valid bearer token is
// present and otherwise lets the request through as a guest.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			claims, err := auth.ValidateJWT(token, jwtSecret)
			if err == nil {
				setIdentity(c, claims)
			} else {
				log.Debug().Err(err).Msg("Ignoring invalid optional bearer token")
			}
		}
		c.Next()
	}
}
