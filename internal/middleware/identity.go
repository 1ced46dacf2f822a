package middleware

import (
	"net/http"
	"strings"

	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/gin-gonic/gin"
)

// ClientIdentity resolves the caller's durable opaque id from X-Client-ID,
// issuing and persisting a fresh one when none is presented. The id is echoed
// back so the client can keep it.
func ClientIdentity(resolver *service.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := strings.TrimSpace(c.GetHeader("X-Client-ID"))

		identity, err := resolver.Resolve(c.Request.Context(), presented)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve client identity",
			})
			c.Abort()
			return
		}

		c.Set("client_id", identity.ID)
		c.Header("X-Client-ID", identity.ID)

		c.Next()
	}
}
