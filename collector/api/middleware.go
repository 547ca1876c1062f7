package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"remote":   c.ClientIP(),
		}).Debug("Request")
	}
}

// withMetrics records request counts and durations per route.
func (m *Server) withMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if len(endpoint) == 0 {
			endpoint = "unmatched"
		}
		m.metrics.RecordHTTPRequest(c.Request.Method, endpoint,
			strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
