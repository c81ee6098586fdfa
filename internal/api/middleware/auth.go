package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lepss/rent-simulator/internal/auth"
)

const (
	// ContextKeySessionID holds the key for the session subject in Gin context.
	ContextKeySessionID = "sessionID"
)

// AuthMiddleware creates a Gin middleware for JWT session authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		tokenString := parts[1]
		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		// Set session info in context for handlers to use
		c.Set(ContextKeySessionID, claims.SessionID)

		c.Next()
	}
}

// AdminAPIKeyMiddleware guards admin endpoints with the X-Admin-Key header,
// checked against the configured bcrypt hash. An empty hash disables the
// endpoints entirely.
func AdminAPIKeyMiddleware(adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKeyHash == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		key := c.GetHeader("X-Admin-Key")
		if key == "" || !auth.CheckAPIKey(key, adminKeyHash) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
