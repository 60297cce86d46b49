package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voicehub/backend/pkg/response"
)

// GatewayAuth returns a middleware that checks the shared-secret bearer token
// the bot gateway sends on interaction callbacks.
func GatewayAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Unauthorized(c, "gateway auth is not configured")
			c.Abort()
			return
		}
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			response.Unauthorized(c, "invalid gateway token")
			c.Abort()
			return
		}
		c.Next()
	}
}
