package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opsflow/backend/internal/infrastructure/auth"
	"github.com/opsflow/backend/internal/interfaces/http/dto"
)

// Auth context keys
const (
	AuthClaimsKey   = "auth_claims"
	AuthUserIDKey   = "auth_user_id"
	AuthUsernameKey = "auth_username"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// AuthConfig holds configuration for the authentication middleware
type AuthConfig struct {
	Verifier *auth.TokenVerifier
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// AllowHeaderFallback accepts a bare X-User-ID header instead of a
	// token. Development only; never enable in production.
	AllowHeaderFallback bool
}

// DefaultAuthConfig returns the default authentication configuration
func DefaultAuthConfig(verifier *auth.TokenVerifier) AuthConfig {
	return AuthConfig{
		Verifier: verifier,
		SkipPaths: []string{
			"/health",
			"/ready",
			"/api/v1/health",
		},
	}
}

// AuthMiddleware validates the bearer token issued by the chat platform and
// stores the caller's identity in the request context
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" && cfg.AllowHeaderFallback {
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				c.Set(AuthUserIDKey, userID)
				c.Next()
				return
			}
		}
		if authHeader == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := cfg.Verifier.Verify(tokenString)
		if err != nil {
			code := dto.ErrCodeTokenInvalid
			if errors.Is(err, auth.ErrExpiredToken) {
				code = dto.ErrCodeTokenExpired
			}
			abortUnauthorized(c, code, "Token validation failed")
			return
		}

		c.Set(AuthClaimsKey, claims)
		c.Set(AuthUserIDKey, claims.UserID)
		c.Set(AuthUsernameKey, claims.Username)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
		code, message, c.GetString(RequestIDKey)))
}

// GetAuthUserID returns the authenticated user's id from the context
func GetAuthUserID(c *gin.Context) string {
	return c.GetString(AuthUserIDKey)
}

// GetAuthClaims returns the verified claims from the context, if present
func GetAuthClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(AuthClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
