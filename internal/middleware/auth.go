package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mediastore/internal/pkg/jwt"
	"mediastore/internal/pkg/response"
)

// JWTAuth validates the bearer token and stores the user and organization on
// the request context for downstream handlers.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}
		if claims.OrgID <= 0 {
			response.Error(c, http.StatusForbidden, "NO_ORGANIZATION", "Token carries no organization")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("org_id", claims.OrgID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// MustOrgID returns the authenticated organization id, writing a 401 and
// returning 0 when the request was not authenticated. Callers must return on
// a zero result.
func MustOrgID(c *gin.Context) int64 {
	orgID := c.GetInt64("org_id")
	if orgID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		c.Abort()
	}
	return orgID
}

// UserID returns the authenticated user id, or 0 for service tokens that act
// on behalf of the organization as a whole.
func UserID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}
