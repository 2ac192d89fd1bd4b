package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

// requestLogger attaches a request scoped logger to the request context
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()

		logger := logging.From(c.Request.Context()).With(
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), logger))
		c.Header("X-Request-Id", reqID)

		c.Next()

		logger.Info("request",
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
