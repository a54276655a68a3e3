package slogging

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware returns a Gin middleware for logging requests
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get()

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		statusCode := c.Writer.Status()

		switch {
		case statusCode >= 500:
			logger.Error("Request completed with server error method=%s path=%s status=%d duration=%s",
				c.Request.Method, c.Request.URL.Path, statusCode, latency)
		case statusCode >= 400:
			logger.Warn("Request completed with client error method=%s path=%s status=%d duration=%s",
				c.Request.Method, c.Request.URL.Path, statusCode, latency)
		default:
			logger.Info("Request completed method=%s path=%s status=%d duration=%s",
				c.Request.Method, c.Request.URL.Path, statusCode, latency)
		}
	}
}

// Recoverer creates middleware for recovering from panics
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger := Get()

				buf := make([]byte, 2048)
				n := runtime.Stack(buf, false)

				logger.Error("Panic recovered panic=%v method=%s path=%s stack=%s",
					err, c.Request.Method, c.Request.URL.Path, string(buf[:n]))

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
