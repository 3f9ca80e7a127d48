package middleware

import (
	"net/http"
	"strings"

	"cinematch/backend/internal/api/token"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserIDKey   = "user_id"
	ctxUsernameKey = "username"
)

// RequireAuth rejects requests without a valid Bearer token and binds
// the caller's identity to the request context.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		payload, err := token.Parse(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token or expired"})
			return
		}

		c.Set(ctxUserIDKey, payload.UserID)
		c.Set(ctxUsernameKey, payload.Username)
		c.Next()
	}
}

// CurrentUser returns the identity RequireAuth bound to the request.
func CurrentUser(c *gin.Context) (userID, username string) {
	return c.GetString(ctxUserIDKey), c.GetString(ctxUsernameKey)
}
