package middleware

import (
	"log"
	"net/http"
	"strings"

	"memories/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuth.
const (
	UserIDKey    = "userId"
	UserEmailKey = "userEmail"
	UserNameKey  = "userName"
)

// JWTAuth rejects requests without a valid session token. The token is read
// from the Authorization header, falling back to the token query parameter.
func JWTAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip middleware for OPTIONS requests (CORS preflight)
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			token := c.Query("token")
			if token == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "Authentication required",
					"message": "No authorization token provided",
				})
				return
			}
			authHeader = "Bearer " + token
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid authorization header",
				"message": "Format should be: Bearer <token>",
			})
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			log.Printf("[Auth] %s: JWT validation error: %v", c.GetString(RequestIDKey), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserNameKey, claims.Name)
		c.Next()
	}
}
