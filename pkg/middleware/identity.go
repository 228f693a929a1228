package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/movaride/negotiation/pkg/common"
)

// Identity headers set by the API gateway after authentication.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
	UserNameHeader = "X-User-Name"

	userIDKey   = "user_id"
	userRoleKey = "user_role"
	userNameKey = "user_name"
)

var errNoIdentity = errors.New("missing user identity")

// Identity extracts the authenticated party from gateway headers and
// rejects requests without one. Token verification happens upstream.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(UserIDHeader)
		role := c.GetHeader(UserRoleHeader)

		if id == "" || (role != "client" && role != "driver") {
			common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		c.Set(userIDKey, id)
		c.Set(userRoleKey, role)
		c.Set(userNameKey, c.GetHeader(UserNameHeader))

		c.Next()
	}
}

// GetUserID returns the authenticated user's id
func GetUserID(c *gin.Context) (string, error) {
	if id, ok := c.Get(userIDKey); ok {
		if s, ok := id.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", errNoIdentity
}

// GetUserRole returns the authenticated user's role ("client" or "driver")
func GetUserRole(c *gin.Context) (string, error) {
	if role, ok := c.Get(userRoleKey); ok {
		if s, ok := role.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", errNoIdentity
}

// GetUserName returns the authenticated user's display name, if forwarded
func GetUserName(c *gin.Context) string {
	if name, ok := c.Get(userNameKey); ok {
		if s, ok := name.(string); ok {
			return s
		}
	}
	return ""
}
