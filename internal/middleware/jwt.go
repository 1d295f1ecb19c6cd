package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beetopic/backend/internal/auth"
	"github.com/beetopic/backend/pkg/response"
)

const (
	// ContextUserID is the key for the identity-provider user id in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the verified user email in gin context.
	ContextUserEmail = "user_email"
)

// TokenValidator verifies a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT returns a middleware that validates the bearer token and sets user claims in context.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := validator.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserID, claims.SubscriberID())
		c.Set(ContextUserEmail, strings.ToLower(strings.TrimSpace(claims.Email)))
		c.Next()
	}
}

// UserID returns the authenticated user id set by JWT.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// UserEmail returns the verified email set by JWT.
func UserEmail(c *gin.Context) string {
	return c.GetString(ContextUserEmail)
}
