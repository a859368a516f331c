package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parallax/reboot-hackathon-2025/internal/models"
)

// Claims carried by identity-provider session tokens. The subject is the
// provider's user id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the token.
func (c *Claims) Identity() models.Identity {
	return models.Identity{
		UserID: c.Subject,
		Name:   c.Name,
		Email:  c.Email,
	}
}

// GenerateJWT signs a session token for identity. The identity provider
// issues real tokens; this is used by tests and local development.
func GenerateJWT(identity models.Identity, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:  identity.Name,
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   identity.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid JWT")
	}
	if claims.Subject == "" {
		return nil, errors.New("JWT has no subject")
	}

	return claims, nil
}
