package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// devUserID is the fallback identity when no auth tokens are
// configured, matching the seeded development user.
const devUserID = "00000000-0000-0000-0000-000000000001"

const userIDKey = "user_id"

// authMiddleware resolves the requesting user from a bearer token.
// With an empty token map every request runs as the development user;
// otherwise requests without a known token are rejected.
func authMiddleware(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(tokens) == 0 {
			c.Set(userIDKey, devUserID)
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, ok := tokens[token]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUserID returns the authenticated user for the request.
func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
