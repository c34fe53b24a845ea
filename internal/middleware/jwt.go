package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/workshop-access/internal/auth"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/pkg/response"
)

const (
	// ContextIdentity is the key for the caller's models.Identity in gin context.
	ContextIdentity = "identity"
	// ContextUserRole is the key for the caller's platform role in gin context.
	ContextUserRole = "user_role"
)

// JWT returns a middleware that validates the bearer token and stores the caller's identity.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
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
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, claims.Identity())
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// IdentityFrom returns the identity set by JWT. It panics if JWT did not run, like c.MustGet.
func IdentityFrom(c *gin.Context) models.Identity {
	return c.MustGet(ContextIdentity).(models.Identity)
}
