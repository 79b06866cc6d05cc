package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstats/internal/entities"
)

// ContextKeyUserID holds the resolved user's ID in the gin context.
const ContextKeyUserID = "user_id"

// GetUserID returns the user resolved by IdentityMiddleware, or 0.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

// UserProvisioner finds or creates a user by name.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, username string) (*entities.User, error)
}

// IdentityConfig decides who a request acts for. Authentication itself
// happens upstream: either a reverse proxy sets Header to the username, or
// the single default user is assumed.
type IdentityConfig struct {
	Header        string
	Users         UserProvisioner
	DefaultUserID uint
}

var publicPaths = map[string]bool{
	"/health": true,
	"/ping":   true,
}

// IdentityMiddleware puts the acting user's ID in the context. API requests
// without a resolvable user are rejected with 401.
func IdentityMiddleware(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if cfg.Header != "" && cfg.Users != nil {
			if name := strings.TrimSpace(c.GetHeader(cfg.Header)); name != "" {
				user, err := cfg.Users.EnsureUser(c.Request.Context(), name)
				if err != nil {
					respondInternalError(c, err, "resolve user")
					c.Abort()
					return
				}
				c.Set(ContextKeyUserID, user.ID)
				c.Next()
				return
			}
		}

		if cfg.DefaultUserID != 0 {
			c.Set(ContextKeyUserID, cfg.DefaultUserID)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	}
}

// SecurityHeadersMiddleware adds headers suitable for a JSON-only API.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// RequestLogger logs one line per request through slog.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"user_id", GetUserID(c),
		)
	}
}
