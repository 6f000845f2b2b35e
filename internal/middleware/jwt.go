package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/auth"
	"github.com/yatri-app/backend/pkg/response"
)

const (
	// ContextUserID is the key for the viewer's uuid.UUID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextClaims is the key for the token claims.
	ContextClaims = auth.ContextClaims
)

// JWT returns a middleware that validates the bearer token, rejects signed-out
// tokens, and sets user claims in context.
func JWT(authn *auth.Authenticator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := authn.Authenticate(c.Request.Context(), parts[1])
		switch {
		case errors.Is(err, auth.ErrRevokedToken):
			response.Unauthorized(c, "token has been signed out")
			c.Abort()
			return
		case errors.Is(err, auth.ErrInvalidToken):
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		case err != nil:
			logger.Warn("token revocation check failed", zap.Error(err))
			response.ServiceUnavailable(c, "authentication temporarily unavailable")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}
