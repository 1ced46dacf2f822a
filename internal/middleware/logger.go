package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		requestID := c.GetString("request_id")
		clientID := c.GetString("client_id")
		tier := c.GetString("tier")

		log.Printf("[%s] %s %s - %d - %v - client=%s tier=%s - %s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			clientID,
			tier,
			c.ClientIP(),
		)
	}
}
