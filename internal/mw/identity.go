package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/parse"
)

const (
	userIDKey      = "workshop.userID"
	rawIdentityKey = "workshop.rawIdentity"
)

// Identity reads the caller's user ID from a header set by the upstream
// authentication proxy. Requests without a valid ID are rejected.
func Identity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthenticated", "message": "missing " + header + " header"})
			return
		}
		id, err := parse.ID(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthenticated", "message": "invalid " + header + " header"})
			return
		}
		c.Set(userIDKey, id)
		c.Set(rawIdentityKey, raw)
		c.Next()
	}
}

// UserID returns the caller set by Identity.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
