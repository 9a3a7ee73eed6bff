package delivery

import (
	"net/http"
	"strings"

	accountdomain "pixeltrace/internal/account/domain"
	"pixeltrace/internal/account/usecase"

	"github.com/gin-gonic/gin"
)

const accountContextKey = "account"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		account, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the caller's account when a bearer
// token is present but lets anonymous requests through. The resolver
// endpoints serve both regimes; a malformed token is still rejected so
// a caller never silently degrades to anonymous scoping.
func OptionalAuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		account, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// CallerAccount returns the authenticated account, or nil for anonymous.
func CallerAccount(c *gin.Context) *accountdomain.Account {
	value, exists := c.Get(accountContextKey)
	if !exists {
		return nil
	}
	account, ok := value.(*accountdomain.Account)
	if !ok {
		return nil
	}
	return account
}
