// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"projector-service/internal/utils"
)

var probePaths = map[string]bool{
	"/live":  true,
	"/ready": true,
}

// LoggingMiddleware logs every served request with its request id
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.LogAPIRequest(utils.APIRequestLog{
			Method:     c.Request.Method,
			Path:       path,
			RequestID:  c.GetString(utils.RequestIDKey),
			ClientIP:   c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			Size:       c.Writer.Size(),
			Duration:   time.Since(startTime),
			Probe:      probePaths[path],
		})
	}
}
