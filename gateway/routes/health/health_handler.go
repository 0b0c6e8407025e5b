package health

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler reports liveness plus database reachability.
func Handler(conn *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := conn.PingContext(c.Request.Context()); err != nil {
			status = "degraded: database unreachable"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status})
	}
}
