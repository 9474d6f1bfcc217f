package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records served requests, e.g. a Prometheus recorder.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RequestMetrics reports every request to the observer, labelled by route pattern.
func RequestMetrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observer.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
