package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medicure-api/pkg/metrics"
)

// Metrics records request count, latency and errors per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		m.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			kind := "client"
			if c.Writer.Status() >= 500 {
				kind = "server"
			}
			m.ErrorTotal.WithLabelValues(c.Request.Method, path, kind).Inc()
		}
	}
}
