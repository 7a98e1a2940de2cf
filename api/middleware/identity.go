package middleware

import (
	"net/http"

	"feelings/models"

	"github.com/gin-gonic/gin"
)

// IdentityMiddleware extracts the caller's (identity, role) attribution from
// the X-Identity / X-Role headers. Verification belongs to the identity
// service in front of this one; here the pair is attribution only.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetHeader("X-Identity")
		role := models.Role(c.GetHeader("X-Role"))

		if identity == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "X-Identity header is required",
			})
			c.Abort()
			return
		}
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "X-Role header must be child or parent",
			})
			c.Abort()
			return
		}

		c.Set("identity", identity)
		c.Set("role", role)
		c.Next()
	}
}

// OptionalIdentityMiddleware sets the attribution when present and lets the
// request through either way. The websocket endpoint uses it: a session is
// attributed lazily from its first acted event.
func OptionalIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetHeader("X-Identity")
		role := models.Role(c.GetHeader("X-Role"))
		if identity != "" && role.Valid() {
			c.Set("identity", identity)
			c.Set("role", role)
		}
		c.Next()
	}
}
