package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// CustomLogger logs one line per request with latency and status.
func CustomLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}
		log.Printf("%s %s -> %d (%v)", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
