package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"codegate/internal/logging"
	"codegate/internal/reqid"
)

const requestIDKey = "request_id"

// requestIDMiddleware assigns each request a correlation id, honoring one
// supplied by the client.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = reqid.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// accessLogMiddleware logs one structured line per request.
func accessLogMiddleware() gin.HandlerFunc {
	logger := logging.NewComponentLogger("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s status=%d duration=%s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), requestID(c))
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
