package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// accessLogger is a dedicated structured logger for the control
// surface's access log, kept separate from the engine's zerolog-based
// internal/logging so the two concerns (wire-format access logs,
// core-engine diagnostics) don't share one call surface.
var accessLogger = logrus.New()

func accessFields(c *gin.Context, elapsed time.Duration) logrus.Fields {
	return logrus.Fields{
		"method":   c.Request.Method,
		"path":     c.Request.URL.Path,
		"status":   c.Writer.Status(),
		"duration": elapsed.String(),
		"client_ip": c.ClientIP(),
	}
}
