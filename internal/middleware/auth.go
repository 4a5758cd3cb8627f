package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/identity"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware validates the bearer token and stores the caller's user id.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := identity.TokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if identity.IsReserved(userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "reserved identity"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
